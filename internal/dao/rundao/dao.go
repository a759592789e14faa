// Package rundao persists deployment run records in a local SQLite
// database. One record is written per run and finalized with the outcome
// of the external deploy action.
package rundao

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/filings-ops/notebook-deployer/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must be cleared after a bump.
const schemaVersion = 1

// PK represents a run partition key in format {job}/{env}
// Example: notebook-report/dev
type PK string

// NewPK creates a new partition key from job and env
func NewPK(job, env string) PK {
	return PK(fmt.Sprintf("%s/%s", job, env))
}

// ParsePK parses a partition key into its job and env components
func ParsePK(pk PK) (job, env string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {job}/{env}", s)
	}
	return parts[0], parts[1], nil
}

// String returns the string representation of the partition key
func (pk PK) String() string {
	return string(pk)
}

// ID represents a run ID in format {job}/{env}:{ksuid}
// Example: notebook-report/dev:2HFj3kLmNoPqRsTuVwXy
type ID string

func (id ID) String() string {
	return string(id)
}

// ParseID parses a run ID into its partition key (pk) and sort key (sk) components
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid run ID format: %s, expected {job}/{env}:{ksuid}", s)
	}
	return PK(parts[0]), parts[1], nil
}

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

// RunStatus represents the current status of a deployment run
type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusInProgress RunStatus = "IN_PROGRESS"
	RunStatusSuccess    RunStatus = "SUCCESS"
	RunStatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// Record represents one deployment run
type Record struct {
	PK         PK
	SK         string // KSUID sort key
	Job        string
	Env        string
	EventType  string
	Ref        string
	Status     RunStatus
	ErrorMsg   *string
	CreatedAt  int64  // Unix epoch timestamp of creation
	UpdatedAt  int64  // Unix epoch timestamp of last update
	FinishedAt *int64 // Unix epoch timestamp of completion
}

// GetID returns the full run ID in format: {job}/{env}:{ksuid}
func (r *Record) GetID() ID {
	return NewID(r.PK, r.SK)
}

// CreateInput contains the fields needed to create a new run record
type CreateInput struct {
	Job       string
	Env       string
	SK        string // KSUID sort key
	EventType string
	Ref       string
}

// UpdateInput contains the fields that can be updated on a run record
type UpdateInput struct {
	PK       PK
	SK       string
	Status   *RunStatus
	ErrorMsg *string
}

// DAO provides data access operations for run records
type DAO struct {
	db *sql.DB
}

// Open connects to (or creates) the run database at path and verifies the
// schema version.
func Open(path string) (*DAO, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	d := &DAO{db: db}
	if err := d.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DAO) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DAO) initSchema(ctx context.Context) error {
	var tableExists int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := d.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := d.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("schema version mismatch: database has %d, expected %d (delete the database to recreate)", version, schemaVersion)
	}
	return nil
}

// Create creates a new run record with initial status PENDING
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	pk := NewPK(input.Job, input.Env)
	now := time.Now().Unix()

	record := Record{
		PK:        pk,
		SK:        input.SK,
		Job:       input.Job,
		Env:       input.Env,
		EventType: input.EventType,
		Ref:       input.Ref,
		Status:    RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO runs (pk, sk, job, env, event_type, ref, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.PK.String(), record.SK, record.Job, record.Env,
		record.EventType, record.Ref, string(record.Status),
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create run record: %w", err)
	}
	return record, nil
}

// Find retrieves a run record by ID.
// Returns ErrRunNotFound when no record matches.
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	row := d.db.QueryRowContext(ctx,
		`SELECT pk, sk, job, env, event_type, ref, status, error_msg, created_at, updated_at, finished_at
         FROM runs WHERE pk = ? AND sk = ?`,
		pk.String(), sk,
	)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to find run record: %w", err)
	}
	return record, nil
}

// StartExecution updates a run record to IN_PROGRESS status. This is
// called immediately before the deploy action is invoked.
func (d *DAO) StartExecution(ctx context.Context, pk PK, sk string) error {
	now := time.Now().Unix()
	res, err := d.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE pk = ? AND sk = ?`,
		string(RunStatusInProgress), now, pk.String(), sk,
	)
	if err != nil {
		return fmt.Errorf("failed to start execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, NewID(pk, sk))
	}
	return nil
}

// UpdateStatus updates the status of a run record. Terminal states also
// set the finished-at timestamp.
func (d *DAO) UpdateStatus(ctx context.Context, input UpdateInput) error {
	if input.Status == nil {
		return fmt.Errorf("status is required")
	}

	now := time.Now().Unix()

	query := `UPDATE runs SET status = ?, updated_at = ?`
	args := []any{string(*input.Status), now}

	if input.Status.Terminal() {
		query += `, finished_at = ?`
		args = append(args, now)
	}
	if input.ErrorMsg != nil {
		query += `, error_msg = ?`
		args = append(args, *input.ErrorMsg)
	}

	query += ` WHERE pk = ? AND sk = ?`
	args = append(args, input.PK.String(), input.SK)

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, NewID(input.PK, input.SK))
	}
	return nil
}

// QueryByEnv returns all runs for a given job and environment, newest first.
func (d *DAO) QueryByEnv(ctx context.Context, job, env string) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT pk, sk, job, env, event_type, ref, status, error_msg, created_at, updated_at, finished_at
         FROM runs WHERE pk = ? ORDER BY created_at DESC, sk DESC`,
		NewPK(job, env).String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// QueryLatest returns the most recent run for each environment of the job.
func (d *DAO) QueryLatest(ctx context.Context, job string) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT pk, sk, job, env, event_type, ref, status, error_msg, created_at, updated_at, finished_at
         FROM runs WHERE job = ? ORDER BY updated_at DESC, sk DESC`,
		job,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}

	// Records arrive newest first; keep the first occurrence per env.
	// The partition key is authoritative for the environment.
	seen := make(map[string]bool, len(records))
	latest := make([]Record, 0, len(records))
	for _, record := range records {
		_, env, err := ParsePK(record.PK)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PK: %w", err)
		}
		if seen[env] {
			continue
		}
		seen[env] = true
		latest = append(latest, record)
	}
	return latest, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		record   Record
		pk       string
		status   string
		ref      sql.NullString
		errorMsg sql.NullString
		finished sql.NullInt64
	)
	err := row.Scan(&pk, &record.SK, &record.Job, &record.Env, &record.EventType,
		&ref, &status, &errorMsg, &record.CreatedAt, &record.UpdatedAt, &finished)
	if err != nil {
		return Record{}, err
	}
	record.PK = PK(pk)
	record.Status = RunStatus(status)
	if ref.Valid {
		record.Ref = ref.String
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		record.ErrorMsg = &msg
	}
	if finished.Valid {
		ts := finished.Int64
		record.FinishedAt = &ts
	}
	return record, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}
	return records, nil
}
