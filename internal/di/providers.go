package di

import (
	"path/filepath"

	"github.com/filings-ops/notebook-deployer/internal/config"
	"github.com/filings-ops/notebook-deployer/internal/dao/rundao"
	"github.com/filings-ops/notebook-deployer/internal/deploy"
	"github.com/filings-ops/notebook-deployer/internal/notify"
	"github.com/filings-ops/notebook-deployer/internal/orchestrator"
)

func ProvideAppConfig(path ConfigPath) (*config.Config, error) {
	return config.Load(string(path))
}

func ProvideSecrets() config.Secrets {
	return config.SecretsFromEnv()
}

func ProvideRunDAO(cfg *config.Config) (*rundao.DAO, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return rundao.Open(filepath.Join(cfg.DataDir, "runs.db"))
}

func ProvideDeployClient(cfg *config.Config) deploy.Client {
	return deploy.NewCLI(deploy.WithBinary(cfg.ActionBinary))
}

func ProvideNotifier(cfg *config.Config, secrets config.Secrets) notify.Notifier {
	return notify.NewService(cfg.JobName, secrets.WebhookURL)
}

func ProvideOrchestrator(cfg *config.Config, secrets config.Secrets, dao *rundao.DAO, client deploy.Client, notifier notify.Notifier) *orchestrator.Orchestrator {
	return orchestrator.New(cfg, secrets, dao, client, notifier)
}
