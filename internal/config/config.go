// Package config loads the deployer's YAML configuration and the secret
// values it forwards to the external deploy action. Secrets are only ever
// read from the environment; the YAML file carries the non-sensitive
// parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/filings-ops/notebook-deployer/internal/constants"
	"github.com/filings-ops/notebook-deployer/internal/errors"
)

// Config holds the non-secret deployment parameters.
type Config struct {
	JobName          string `yaml:"job_name"`
	Repository       string `yaml:"repository"`   // owner/name guard; runs from any other repo are no-ops
	WatchedPath      string `yaml:"watched_path"` // path prefix that push events must touch
	WorkingDirectory string `yaml:"working_directory"`
	AppName          string `yaml:"app_name"`
	VaultName        string `yaml:"vault_name"`
	SkipOp           string `yaml:"skip_op"`
	ActionBinary     string `yaml:"action_binary"`
	DataDir          string `yaml:"data_dir"`
}

// Secrets holds the opaque values consumed from the environment and passed
// through to the deploy action and the notifier. They are never logged.
type Secrets struct {
	RegistryLogin       string // OPENSHIFT_LOGIN_REGISTRY
	RegistryPush        string // OPENSHIFT_DOCKER_REGISTRY
	ServiceAccountName  string // OPENSHIFT_SA_NAME
	ServiceAccountToken string // OPENSHIFT_SA_TOKEN
	TargetRepository    string // OPENSHIFT_REPOSITORY
	WebhookURL          string // ROCKETCHAT_WEBHOOK
}

// Default returns a Config with the built-in defaults applied.
func Default() Config {
	return Config{
		JobName:      constants.JobName,
		SkipOp:       "ture", // carried verbatim from the source pipeline; the action's parsing of it is unverified
		ActionBinary: "bcrs-cd",
	}
}

// Load reads the YAML file at path, applies defaults, and validates the
// result. An optional .env file next to the config file is loaded first so
// that secrets can be supplied the same way in development.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.ErrConfigPathRequired
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".notebook-deployer")
	}

	return &cfg, nil
}

// Validate checks the fields a run cannot proceed without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Repository) == "" {
		return errors.ErrRepositoryGuardEmpty
	}
	if strings.TrimSpace(c.ActionBinary) == "" {
		return errors.ErrDeployBinaryRequired
	}
	if strings.TrimSpace(c.WorkingDirectory) == "" {
		return fmt.Errorf("working_directory is required")
	}
	if strings.TrimSpace(c.AppName) == "" {
		return fmt.Errorf("app_name is required")
	}
	return nil
}

// EnsureDirectories creates the data directory used for the run database
// and deploy locks.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", c.DataDir, err)
	}
	return nil
}

// SecretsFromEnv reads the secret values from the environment. Missing
// values are left empty; whether that is fatal depends on the consumer.
func SecretsFromEnv() Secrets {
	return Secrets{
		RegistryLogin:       os.Getenv("OPENSHIFT_LOGIN_REGISTRY"),
		RegistryPush:        os.Getenv("OPENSHIFT_DOCKER_REGISTRY"),
		ServiceAccountName:  os.Getenv("OPENSHIFT_SA_NAME"),
		ServiceAccountToken: os.Getenv("OPENSHIFT_SA_TOKEN"),
		TargetRepository:    os.Getenv("OPENSHIFT_REPOSITORY"),
		WebhookURL:          os.Getenv("ROCKETCHAT_WEBHOOK"),
	}
}
