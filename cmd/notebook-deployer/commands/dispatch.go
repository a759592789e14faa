package commands

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/filings-ops/notebook-deployer/internal/constants"
	"github.com/filings-ops/notebook-deployer/internal/trigger"
)

// DispatchCommand returns the dispatch command for manual runs
func DispatchCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "Process a manual dispatch",
		Description: `Runs the pipeline with an operator-supplied environment tag. A non-empty
tag is forwarded verbatim; the default is "` + constants.DefaultEnvironment + `".

Examples:
  notebook-deployer dispatch --repository bcgov/lear --environment test`,
		Flags: []cli.Flag{
			configFlag(),
			repositoryFlag(),
			&cli.StringFlag{
				Name:    "environment",
				Aliases: []string{"e"},
				Usage:   "Target environment tag (free text)",
				Value:   constants.DefaultEnvironment,
			},
		},
		Action: func(c *cli.Context) error {
			event := trigger.Event{
				Type:        trigger.EventDispatch,
				Repository:  c.String("repository"),
				Environment: c.String("environment"),
			}
			return runEvent(c, logger, event)
		},
	}
}
