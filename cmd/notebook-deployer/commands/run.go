package commands

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/filings-ops/notebook-deployer/internal/dao/rundao"
	"github.com/filings-ops/notebook-deployer/internal/di"
	"github.com/filings-ops/notebook-deployer/internal/orchestrator"
	"github.com/filings-ops/notebook-deployer/internal/trigger"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the deployer YAML config",
		Value:   "deployer.yaml",
		EnvVars: []string{"NOTEBOOK_DEPLOYER_CONFIG"},
	}
}

func repositoryFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "repository",
		Aliases:  []string{"r"},
		Usage:    "owner/name identity of the triggering repository",
		Required: true,
		EnvVars:  []string{"GITHUB_REPOSITORY"},
	}
}

// RunCommand returns the run command for processing a push event
func RunCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Process a push event",
		Description: `Runs the pipeline for a git push. The environment tag resolves to "dev"
for pushes to the master ref and stays empty otherwise. Push events only
deploy when at least one changed path is under the watched prefix.

Examples:
  # Push to master touching the job directory
  notebook-deployer run --repository bcgov/lear \
    --ref refs/heads/master --path jobs/notebook-report/report.py`,
		Flags: []cli.Flag{
			configFlag(),
			repositoryFlag(),
			&cli.StringFlag{
				Name:    "ref",
				Usage:   "Git ref of the push",
				Value:   "refs/heads/master",
				EnvVars: []string{"GITHUB_REF"},
			},
			&cli.StringSliceFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Changed file path (can be specified multiple times)",
			},
		},
		Action: func(c *cli.Context) error {
			event := trigger.Event{
				Type:       trigger.EventPush,
				Repository: c.String("repository"),
				Ref:        c.String("ref"),
				Paths:      c.StringSlice("path"),
			}
			return runEvent(c, logger, event)
		},
	}
}

func runEvent(c *cli.Context, logger *zerolog.Logger, event trigger.Event) error {
	container, err := di.New(c.String("config"))
	if err != nil {
		return err
	}

	dao := di.MustGet[*rundao.DAO](container)
	defer func() { _ = dao.Close() }()

	orch := di.MustGet[*orchestrator.Orchestrator](container)

	result, err := orch.Run(c.Context, event)
	if err != nil {
		return err
	}

	if result.Skipped {
		logger.Info().Str("reason", result.Reason).Msg("Run skipped")
		return nil
	}

	logger.Info().
		Str("run_id", result.RunID.String()).
		Str("env", result.Environment).
		Str("status", string(result.Status)).
		Msg("Run finished")
	return nil
}
