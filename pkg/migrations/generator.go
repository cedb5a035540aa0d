package migrations

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Dialect identifies a SQL database flavour.
type Dialect string

const (
	// Postgres is PostgreSQL.
	Postgres Dialect = "postgres"

	// MySQL is MySQL or MariaDB.
	MySQL Dialect = "mysql"

	// SQLite is SQLite 3.
	SQLite Dialect = "sqlite"
)

// DefaultTable is the default checkpoint table name.
const DefaultTable = "replay_checkpoints"

// ErrUnknownDialect indicates an unsupported dialect name.
var ErrUnknownDialect = errors.New("unknown dialect")

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ParseDialect maps a database/sql driver name to its Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDialect, name)
	}
}

// validateIdentifier ensures an identifier contains only safe characters for SQL.
func validateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

// Config configures migration generation for the checkpoint table.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// Table is the checkpoint table name
	Table string
}

// DefaultConfig returns the default configuration for checkpoint migrations.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_replay_checkpoints.sql", timestamp),
		Table:          DefaultTable,
	}
}

// CreateTableSQL returns the single CREATE TABLE statement for the dialect.
// The statement is idempotent.
func CreateTableSQL(dialect Dialect, table string) (string, error) {
	if err := validateIdentifier(table, "Table"); err != nil {
		return "", err
	}

	switch dialect {
	case Postgres:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id TEXT NOT NULL,
    document TEXT NOT NULL,
    body TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, document)
)`, table), nil
	case MySQL:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id VARCHAR(191) NOT NULL,
    document VARCHAR(64) NOT NULL,
    body LONGTEXT NOT NULL,
    updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
    PRIMARY KEY (run_id, document)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`, table), nil
	case SQLite:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id TEXT NOT NULL,
    document TEXT NOT NULL,
    body TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (run_id, document)
)`, table), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDialect, dialect)
	}
}

// Generate writes a migration file for the dialect.
func Generate(dialect Dialect, config *Config) error {
	ddl, err := CreateTableSQL(dialect, config.Table)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(render(dialect, ddl)), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	return Generate(Postgres, config)
}

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error {
	return Generate(MySQL, config)
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return Generate(SQLite, config)
}

func render(dialect Dialect, ddl string) string {
	names := map[Dialect]string{
		Postgres: "PostgreSQL",
		MySQL:    "MySQL/MariaDB",
		SQLite:   "SQLite",
	}

	return fmt.Sprintf(`-- Replay Checkpoint Migration
-- Generated: %s
-- Database: %s

-- One row per (run, document). Each run keeps two documents:
-- jobs.json with every job and its result, jobs-failed.json with the failed subset.
-- Both rows are overwritten in full after every completed job.
%s;
`, time.Now().Format(time.RFC3339), names[dialect], ddl)
}
