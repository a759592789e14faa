package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/gox/slicex"
	"github.com/urfave/cli/v2"

	"github.com/filings-ops/notebook-deployer/internal/config"
	"github.com/filings-ops/notebook-deployer/internal/dao/rundao"
	"github.com/filings-ops/notebook-deployer/internal/di"
)

// StatusCommand returns the status command showing the latest run per environment
func StatusCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the latest run for each environment",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: func(c *cli.Context) error {
			container, err := di.New(c.String("config"))
			if err != nil {
				return err
			}

			cfg := di.MustGet[*config.Config](container)
			dao := di.MustGet[*rundao.DAO](container)
			defer func() { _ = dao.Close() }()

			records, err := dao.QueryLatest(c.Context, cfg.AppName)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				logger.Info().Msg("No runs recorded")
				return nil
			}

			rows := slicex.Map(records, recordRow)
			fmt.Fprintln(c.App.Writer, renderTable(historyHeaders, rows))
			return nil
		},
	}
}
