package main

import (
	"context"
	"os"

	"github.com/filings-ops/notebook-deployer/cmd/notebook-deployer/commands"
	"github.com/filings-ops/notebook-deployer/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "notebook-deployer",
		Usage: "Continuous deployment runner for the Filings Notebook Report job",
		Description: `Executes the notebook report deployment pipeline outside the hosting
platform: resolves the environment tag from the trigger, invokes the
external deploy action with the job's fixed parameter set, records the
run, and reports failures to the chat webhook.`,
		Commands: []*cli.Command{
			commands.RunCommand(&logger),
			commands.DispatchCommand(&logger),
			commands.HistoryCommand(&logger),
			commands.StatusCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
