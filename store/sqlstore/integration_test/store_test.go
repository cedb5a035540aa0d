//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/pkg/migrations"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing-replay/store/sqlstore"
)

// openDB returns a connection for the dialect from the given environment variable.
// The test is skipped if the variable is not set.
func openDB(t *testing.T, dialect migrations.Dialect, envVar string) *sql.DB {
	t.Helper()

	dsn := os.Getenv(envVar)
	if dsn == "" {
		t.Skipf("%s not set, skipping integration test", envVar)
	}

	db, err := sqlstore.Open(context.Background(), dialect, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	return db
}

func runStoreScenario(t *testing.T, dialect migrations.Dialect, db *sql.DB) {
	t.Helper()

	table := fmt.Sprintf("replay_checkpoints_it_%s", dialect)
	s, err := sqlstore.New(sqlstore.Config{DB: db, Dialect: dialect, Table: table})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	defer func() {
		if _, err := db.Exec("DROP TABLE " + table); err != nil {
			t.Logf("warning: failed to drop table: %v", err)
		}
	}()

	jobs := []replay.Job{
		{ID: 0, Function: "fn", Label: "a", Payload: []byte(`{}`)},
		{ID: 1, Function: "fn", Label: "b", Payload: []byte(`{}`)},
	}
	state, err := replay.NewRunState(uuid.NewString(), jobs)
	require.NoError(t, err)

	require.NoError(t, s.Persist(ctx, state))
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 1, Error: replay.ErrorKindTooManyRetries, Retries: 5}))
	require.NoError(t, s.Persist(ctx, state))

	data, err := s.Load(ctx, state.RunID, store.DocumentFailed)
	require.NoError(t, err)
	failed, err := store.DecodeJobs(data)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].ID)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Contains(t, runs, state.RunID)
}

func TestPostgresStore(t *testing.T) {
	db := openDB(t, migrations.Postgres, "POSTGRES_URL")
	defer db.Close()

	runStoreScenario(t, migrations.Postgres, db)
}

func TestMySQLStore(t *testing.T) {
	db := openDB(t, migrations.MySQL, "MYSQL_URL")
	defer db.Close()

	runStoreScenario(t, migrations.MySQL, db)
}
