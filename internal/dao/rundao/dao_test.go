package rundao

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/filings-ops/notebook-deployer/internal/errors"
)

// Unit tests for key types

func TestNewPK(t *testing.T) {
	tests := []struct {
		name string
		job  string
		env  string
		want PK
	}{
		{
			name: "valid job and env",
			job:  "notebook-report",
			env:  "dev",
			want: PK("notebook-report/dev"),
		},
		{
			name: "prod environment",
			job:  "notebook-report",
			env:  "prod",
			want: PK("notebook-report/prod"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPK(tt.job, tt.env)
			if got != tt.want {
				t.Errorf("NewPK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePK(t *testing.T) {
	tests := []struct {
		name    string
		pk      PK
		wantJob string
		wantEnv string
		wantErr bool
	}{
		{
			name:    "valid PK",
			pk:      PK("notebook-report/dev"),
			wantJob: "notebook-report",
			wantEnv: "dev",
			wantErr: false,
		},
		{
			name:    "invalid PK - no slash",
			pk:      PK("notebook-report"),
			wantJob: "",
			wantEnv: "",
			wantErr: true,
		},
		{
			name:    "invalid PK - too many slashes",
			pk:      PK("notebook/report/dev"),
			wantJob: "",
			wantEnv: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, env, err := ParsePK(tt.pk)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePK() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if job != tt.wantJob {
				t.Errorf("ParsePK() job = %v, want %v", job, tt.wantJob)
			}
			if env != tt.wantEnv {
				t.Errorf("ParsePK() env = %v, want %v", env, tt.wantEnv)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		wantPK  PK
		wantSK  string
		wantErr bool
	}{
		{
			name:    "valid ID",
			id:      ID("notebook-report/dev:2HFj3kLmNoPqRsTuVwXy"),
			wantPK:  PK("notebook-report/dev"),
			wantSK:  "2HFj3kLmNoPqRsTuVwXy",
			wantErr: false,
		},
		{
			name:    "invalid ID - no colon",
			id:      ID("notebook-report/dev"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pk, sk, err := ParseID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseID() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if pk != tt.wantPK {
				t.Errorf("ParseID() pk = %v, want %v", pk, tt.wantPK)
			}
			if sk != tt.wantSK {
				t.Errorf("ParseID() sk = %v, want %v", sk, tt.wantSK)
			}
		})
	}
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunStatusPending.Terminal())
	assert.False(t, RunStatusInProgress.Terminal())
	assert.True(t, RunStatusSuccess.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
}

// Integration tests against a temp-dir SQLite database

func openDAO(t *testing.T) *DAO {
	t.Helper()
	dao, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dao.Close() })
	return dao
}

func TestOpenRejectsSchemaVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	dao, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, dao.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE schema_version SET version = ?", schemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version mismatch")
}

func TestCreateAndFind(t *testing.T) {
	dao := openDAO(t)
	ctx := context.Background()

	sk := ksuid.New().String()
	created, err := dao.Create(ctx, CreateInput{
		Job:       "notebook-report",
		Env:       "test",
		SK:        sk,
		EventType: "workflow_dispatch",
	})
	require.NoError(t, err)
	assert.Equal(t, RunStatusPending, created.Status)
	assert.Equal(t, PK("notebook-report/test"), created.PK)

	found, err := dao.Find(ctx, created.GetID())
	require.NoError(t, err)
	assert.Equal(t, created.SK, found.SK)
	assert.Equal(t, "workflow_dispatch", found.EventType)
	assert.Nil(t, found.FinishedAt)
}

func TestFindNotFound(t *testing.T) {
	dao := openDAO(t)

	_, err := dao.Find(context.Background(), NewID(NewPK("notebook-report", "dev"), ksuid.New().String()))
	assert.ErrorIs(t, err, apperrors.ErrRunNotFound)
}

func TestStartExecution(t *testing.T) {
	dao := openDAO(t)
	ctx := context.Background()

	sk := ksuid.New().String()
	created, err := dao.Create(ctx, CreateInput{Job: "notebook-report", Env: "dev", SK: sk, EventType: "push", Ref: "refs/heads/master"})
	require.NoError(t, err)

	require.NoError(t, dao.StartExecution(ctx, created.PK, created.SK))

	found, err := dao.Find(ctx, created.GetID())
	require.NoError(t, err)
	assert.Equal(t, RunStatusInProgress, found.Status)

	err = dao.StartExecution(ctx, created.PK, ksuid.New().String())
	assert.ErrorIs(t, err, apperrors.ErrRunNotFound)
}

func TestUpdateStatus(t *testing.T) {
	dao := openDAO(t)
	ctx := context.Background()

	created, err := dao.Create(ctx, CreateInput{Job: "notebook-report", Env: "dev", SK: ksuid.New().String(), EventType: "push"})
	require.NoError(t, err)

	status := RunStatusFailed
	errorMsg := "deploy action exited with status 1"
	require.NoError(t, dao.UpdateStatus(ctx, UpdateInput{
		PK:       created.PK,
		SK:       created.SK,
		Status:   &status,
		ErrorMsg: &errorMsg,
	}))

	found, err := dao.Find(ctx, created.GetID())
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, found.Status)
	require.NotNil(t, found.ErrorMsg)
	assert.Equal(t, errorMsg, *found.ErrorMsg)
	require.NotNil(t, found.FinishedAt)
}

func TestUpdateStatusRequiresStatus(t *testing.T) {
	dao := openDAO(t)

	err := dao.UpdateStatus(context.Background(), UpdateInput{PK: NewPK("notebook-report", "dev"), SK: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status is required")
}

func TestQueryByEnv(t *testing.T) {
	dao := openDAO(t)
	ctx := context.Background()

	for range 3 {
		_, err := dao.Create(ctx, CreateInput{Job: "notebook-report", Env: "dev", SK: ksuid.New().String(), EventType: "push"})
		require.NoError(t, err)
	}
	_, err := dao.Create(ctx, CreateInput{Job: "notebook-report", Env: "test", SK: ksuid.New().String(), EventType: "workflow_dispatch"})
	require.NoError(t, err)

	records, err := dao.QueryByEnv(ctx, "notebook-report", "dev")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for _, record := range records {
		assert.Equal(t, "dev", record.Env)
	}
}

func TestQueryLatestDedupesByPartitionKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	dao, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dao.Close() })
	ctx := context.Background()

	older, err := dao.Create(ctx, CreateInput{Job: "notebook-report", Env: "dev", SK: ksuid.New().String(), EventType: "push"})
	require.NoError(t, err)
	_, err = dao.Create(ctx, CreateInput{Job: "notebook-report", Env: "dev", SK: ksuid.New().String(), EventType: "push"})
	require.NoError(t, err)

	// Corrupt the older record's env column; the partition key still
	// identifies the environment.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE runs SET env = 'stale' WHERE sk = ?", older.SK)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	latest, err := dao.QueryLatest(ctx, "notebook-report")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, PK("notebook-report/dev"), latest[0].PK)
}

func TestQueryLatest(t *testing.T) {
	dao := openDAO(t)
	ctx := context.Background()

	// KSUIDs sort by creation time; timestamps within the same second tie,
	// so the sk tiebreaker decides ordering.
	for _, env := range []string{"dev", "dev", "test"} {
		created, err := dao.Create(ctx, CreateInput{Job: "notebook-report", Env: env, SK: ksuid.New().String(), EventType: "push"})
		require.NoError(t, err)

		status := RunStatusSuccess
		require.NoError(t, dao.UpdateStatus(ctx, UpdateInput{PK: created.PK, SK: created.SK, Status: &status}))
	}

	latest, err := dao.QueryLatest(ctx, "notebook-report")
	require.NoError(t, err)
	require.Len(t, latest, 2)

	envs := map[string]bool{}
	for _, record := range latest {
		envs[record.Env] = true
		assert.Equal(t, RunStatusSuccess, record.Status)
	}
	assert.True(t, envs["dev"])
	assert.True(t, envs["test"])
}
