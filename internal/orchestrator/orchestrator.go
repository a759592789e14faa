// Package orchestrator executes one deployment run: repository guard,
// environment-tag resolution, run record bookkeeping, the external deploy
// action, and the conditional failure notification.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/filings-ops/notebook-deployer/internal/config"
	"github.com/filings-ops/notebook-deployer/internal/dao/rundao"
	"github.com/filings-ops/notebook-deployer/internal/deploy"
	"github.com/filings-ops/notebook-deployer/internal/notify"
	"github.com/filings-ops/notebook-deployer/internal/trigger"
)

// Result summarizes a run. Skipped results mean no step executed.
type Result struct {
	Skipped     bool
	Reason      string
	Environment string
	RunID       rundao.ID
	Status      rundao.RunStatus
}

// Orchestrator manages the run lifecycle
type Orchestrator struct {
	cfg      *config.Config
	secrets  config.Secrets
	dao      *rundao.DAO
	client   deploy.Client
	notifier notify.Notifier
}

// New creates a new Orchestrator instance
func New(cfg *config.Config, secrets config.Secrets, dao *rundao.DAO, client deploy.Client, notifier notify.Notifier) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		secrets:  secrets,
		dao:      dao,
		client:   client,
		notifier: notifier,
	}
}

// Run processes one trigger event end to end. Guard and path-filter misses
// return a skipped Result with a nil error; a failed deploy returns the
// deploy error after the run record is finalized and the notifier fired.
func (o *Orchestrator) Run(ctx context.Context, event trigger.Event) (Result, error) {
	logger := zerolog.Ctx(ctx)

	if !event.MatchesRepository(o.cfg.Repository) {
		logger.Info().
			Str("repository", event.Repository).
			Str("guard", o.cfg.Repository).
			Msg("Repository guard mismatch, skipping run")
		return Result{Skipped: true, Reason: "repository mismatch"}, nil
	}

	if !event.TouchesPath(o.cfg.WatchedPath) {
		logger.Info().
			Str("watched_path", o.cfg.WatchedPath).
			Msg("No changed path under watched prefix, skipping run")
		return Result{Skipped: true, Reason: "watched path untouched"}, nil
	}

	// Resolved exactly once; every later step reads this value.
	env := trigger.ResolveEnvironment(event)
	if env == "" {
		logger.Warn().
			Str("event_type", string(event.Type)).
			Str("ref", event.Ref).
			Msg("Environment tag resolved empty, forwarding as-is")
	}

	release, err := o.acquireLock(env)
	if err != nil {
		return Result{}, err
	}
	defer release()

	sk := ksuid.New().String()
	record, err := o.dao.Create(ctx, rundao.CreateInput{
		Job:       o.cfg.AppName,
		Env:       env,
		SK:        sk,
		EventType: string(event.Type),
		Ref:       event.Ref,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to create run record: %w", err)
	}

	if err := o.dao.StartExecution(ctx, record.PK, record.SK); err != nil {
		return Result{}, fmt.Errorf("failed to update run status: %w", err)
	}

	logger.Info().
		Str("run_id", record.GetID().String()).
		Str("env", env).
		Str("event_type", string(event.Type)).
		Msg("Starting deploy action")

	deployErr := o.client.Deploy(ctx, deploy.Params{
		WorkingDirectory:    o.cfg.WorkingDirectory,
		AppName:             o.cfg.AppName,
		VaultName:           o.cfg.VaultName,
		SkipOp:              o.cfg.SkipOp,
		RegistryLogin:       o.secrets.RegistryLogin,
		RegistryPush:        o.secrets.RegistryPush,
		ServiceAccountName:  o.secrets.ServiceAccountName,
		ServiceAccountToken: o.secrets.ServiceAccountToken,
		TargetRepository:    o.secrets.TargetRepository,
		Environment:         env,
	})

	if deployErr != nil {
		status := rundao.RunStatusFailed
		errorMsg := deployErr.Error()
		if updateErr := o.dao.UpdateStatus(ctx, rundao.UpdateInput{
			PK:       record.PK,
			SK:       record.SK,
			Status:   &status,
			ErrorMsg: &errorMsg,
		}); updateErr != nil {
			logger.Error().Err(updateErr).Msg("Failed to finalize run record")
		}

		// Best-effort: a notification failure never changes the run outcome.
		if notifyErr := o.notifier.NotifyDeployFailed(ctx, env, string(status)); notifyErr != nil {
			logger.Error().Err(notifyErr).Msg("Failed to send failure notification")
		}

		return Result{
			Environment: env,
			RunID:       record.GetID(),
			Status:      status,
		}, fmt.Errorf("deploy failed: %w", deployErr)
	}

	status := rundao.RunStatusSuccess
	if err := o.dao.UpdateStatus(ctx, rundao.UpdateInput{
		PK:     record.PK,
		SK:     record.SK,
		Status: &status,
	}); err != nil {
		return Result{}, fmt.Errorf("failed to finalize run record: %w", err)
	}

	logger.Info().
		Str("run_id", record.GetID().String()).
		Str("env", env).
		Msg("Deploy completed")

	return Result{
		Environment: env,
		RunID:       record.GetID(),
		Status:      status,
	}, nil
}

// acquireLock serializes deploys per environment with a file lock in the
// data directory.
func (o *Orchestrator) acquireLock(env string) (func(), error) {
	name := strings.ReplaceAll(env, "/", "-")
	if name == "" {
		name = "unset"
	}

	fl := flock.New(filepath.Join(o.cfg.DataDir, fmt.Sprintf("deploy-%s.lock", name)))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire deploy lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another deploy for environment %q is in progress", name)
	}
	return func() { _ = fl.Unlock() }, nil
}
