package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/gox/slicex"
	"github.com/urfave/cli/v2"

	"github.com/filings-ops/notebook-deployer/internal/config"
	"github.com/filings-ops/notebook-deployer/internal/dao/rundao"
	"github.com/filings-ops/notebook-deployer/internal/di"
)

var historyHeaders = []string{"CREATED", "ENV", "EVENT", "STATUS", "ERROR"}

// HistoryCommand returns the history command for listing recorded runs
func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded runs for an environment",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment tag to list",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			container, err := di.New(c.String("config"))
			if err != nil {
				return err
			}

			cfg := di.MustGet[*config.Config](container)
			dao := di.MustGet[*rundao.DAO](container)
			defer func() { _ = dao.Close() }()

			records, err := dao.QueryByEnv(c.Context, cfg.AppName, c.String("env"))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				logger.Info().Str("env", c.String("env")).Msg("No runs recorded")
				return nil
			}

			rows := slicex.Map(records, recordRow)
			fmt.Fprintln(c.App.Writer, renderTable(historyHeaders, rows))
			return nil
		},
	}
}

func recordRow(record rundao.Record) []string {
	errorMsg := ""
	if record.ErrorMsg != nil {
		errorMsg = *record.ErrorMsg
	}
	return []string{
		time.Unix(record.CreatedAt, 0).UTC().Format(time.RFC3339),
		record.Env,
		record.EventType,
		string(record.Status),
		errorMsg,
	}
}
