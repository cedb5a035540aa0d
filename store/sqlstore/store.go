// Package sqlstore persists checkpoints in a SQL table.
//
// Each run keeps one row per document. Persist upserts both rows in a single
// transaction, so readers see either the previous or the new snapshot.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/pkg/migrations"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing/es"
)

// Config configures a SQL Store.
type Config struct {
	// DB is the database handle (required).
	DB *sql.DB

	// Dialect selects placeholder and upsert syntax (default: postgres).
	Dialect migrations.Dialect

	// Table is the checkpoint table name (default: replay_checkpoints).
	Table string

	// Logger is for observability (optional).
	Logger es.Logger
}

// Store is a CheckpointStore backed by database/sql.
type Store struct {
	config    Config
	upsertSQL string
	loadSQL   string
	runsSQL   string
	createSQL string
}

var _ store.CheckpointStore = (*Store)(nil)

// DriverName returns the database/sql driver registered for the dialect.
func DriverName(dialect migrations.Dialect) (string, error) {
	switch dialect {
	case migrations.Postgres:
		return "postgres", nil
	case migrations.MySQL:
		return "mysql", nil
	case migrations.SQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %s", migrations.ErrUnknownDialect, dialect)
	}
}

// Open opens and pings a database for the dialect.
func Open(ctx context.Context, dialect migrations.Dialect, dsn string) (*sql.DB, error) {
	driver, err := DriverName(dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// New creates a new SQL store.
// Applies default values for Dialect and Table if not set.
func New(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("db is required")
	}
	if cfg.Dialect == "" {
		cfg.Dialect = migrations.Postgres
	}
	if cfg.Table == "" {
		cfg.Table = migrations.DefaultTable
	}

	createSQL, err := migrations.CreateTableSQL(cfg.Dialect, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Store{
		config:    cfg,
		createSQL: createSQL,
	}

	switch cfg.Dialect {
	case migrations.Postgres:
		s.upsertSQL = fmt.Sprintf(`
			INSERT INTO %s (run_id, document, body, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (run_id, document)
			DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
		`, cfg.Table)
		s.loadSQL = fmt.Sprintf(`SELECT body FROM %s WHERE run_id = $1 AND document = $2`, cfg.Table)
	case migrations.MySQL:
		s.upsertSQL = fmt.Sprintf(`
			INSERT INTO %s (run_id, document, body, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP(6))
			ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = CURRENT_TIMESTAMP(6)
		`, cfg.Table)
		s.loadSQL = fmt.Sprintf(`SELECT body FROM %s WHERE run_id = ? AND document = ?`, cfg.Table)
	case migrations.SQLite:
		s.upsertSQL = fmt.Sprintf(`
			INSERT INTO %s (run_id, document, body, updated_at)
			VALUES (?, ?, ?, datetime('now'))
			ON CONFLICT (run_id, document)
			DO UPDATE SET body = excluded.body, updated_at = datetime('now')
		`, cfg.Table)
		s.loadSQL = fmt.Sprintf(`SELECT body FROM %s WHERE run_id = ? AND document = ?`, cfg.Table)
	}
	s.runsSQL = fmt.Sprintf(`SELECT DISTINCT run_id FROM %s ORDER BY run_id`, cfg.Table)

	return s, nil
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.config.DB.ExecContext(ctx, s.createSQL); err != nil {
		return fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	return nil
}

// Persist upserts both documents of the run in one transaction.
func (s *Store) Persist(ctx context.Context, state *replay.RunState) error {
	snapshot, err := store.Encode(state)
	if err != nil {
		return err
	}

	tx, err := s.config.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	documents := []struct {
		name string
		body []byte
	}{
		{store.DocumentJobs, snapshot.Jobs},
		{store.DocumentFailed, snapshot.Failed},
	}

	for _, doc := range documents {
		if _, err := tx.ExecContext(ctx, s.upsertSQL, state.RunID, doc.name, string(doc.body)); err != nil {
			return fmt.Errorf("failed to write %s: %w", doc.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "checkpoint written",
			"run", state.RunID,
			"completed", state.Completed(),
			"failed", len(state.Failed))
	}

	return nil
}

// Load reads one document of a run.
// Returns store.ErrDocumentNotFound if the row does not exist.
func (s *Store) Load(ctx context.Context, runID, document string) ([]byte, error) {
	var body string
	err := s.config.DB.QueryRowContext(ctx, s.loadSQL, runID, document).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s document %s", store.ErrDocumentNotFound, runID, document)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return []byte(body), nil
}

// Runs returns the ids of all runs with a checkpoint, sorted.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.config.DB.QueryContext(ctx, s.runsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	runs := make([]string, 0)
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, runID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
