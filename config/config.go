// Package config loads replay settings from defaults, a YAML file and the environment.
//
// Command-line flags are applied last by the CLI, so the effective precedence is
// defaults < file < environment < flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/getpup/pupsourcing-replay/pkg/migrations"
	"github.com/getpup/pupsourcing-replay/planner"
)

// Invoker backends.
const (
	InvokerLambda = "lambda"
	InvokerHTTP   = "http"
)

// Checkpoint kinds.
const (
	CheckpointFile   = "file"
	CheckpointSQL    = "sql"
	CheckpointMemory = "memory"
)

// Defaults.
const (
	DefaultConcurrency   = 12
	DefaultCheckpointDir = "."
	DefaultInvokeTimeout = 5 * time.Minute
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete replay configuration.
type Config struct {
	// Bucket holds the objects to replay.
	Bucket string `yaml:"bucket" env:"REPLAY_BUCKET"`

	// Paths are the key prefixes to replay.
	Paths []string `yaml:"paths" env:"REPLAY_PATHS" envSeparator:","`

	// Functions are the target function identifiers.
	Functions []string `yaml:"functions" env:"REPLAY_FUNCTIONS" envSeparator:","`

	// BatchSize caps the total object bytes per batch.
	BatchSize int64 `yaml:"batch_size" env:"REPLAY_BATCH_SIZE"`

	// Concurrency is the number of workers per function.
	Concurrency int `yaml:"concurrency" env:"REPLAY_CONCURRENCY"`

	// Yes skips the confirmation prompt.
	Yes bool `yaml:"yes" env:"REPLAY_YES"`

	// MetricsAddr enables the /metrics server when set.
	MetricsAddr string `yaml:"metrics_addr" env:"REPLAY_METRICS_ADDR"`

	Checkpoint Checkpoint `yaml:"checkpoint"`
	Storage    Storage    `yaml:"storage"`
	Invoke     Invoke     `yaml:"invoke"`
	Log        Log        `yaml:"log"`
}

// Checkpoint selects where run state is persisted.
type Checkpoint struct {
	Kind   string `yaml:"kind" env:"REPLAY_CHECKPOINT"`
	Dir    string `yaml:"dir" env:"REPLAY_CHECKPOINT_DIR"`
	Driver string `yaml:"driver" env:"REPLAY_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"REPLAY_DB_DSN"`
	Table  string `yaml:"table" env:"REPLAY_DB_TABLE"`
}

// Storage configures the S3-compatible object store.
type Storage struct {
	Endpoint  string `yaml:"endpoint" env:"REPLAY_S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"REPLAY_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"REPLAY_S3_SECRET_KEY"`
	Region    string `yaml:"region" env:"REPLAY_S3_REGION"`
	UseSSL    bool   `yaml:"use_ssl" env:"REPLAY_S3_USE_SSL"`
}

// Invoke configures the function API.
type Invoke struct {
	// Backend is lambda (AWS SDK) or http (plain function registry).
	Backend string `yaml:"backend" env:"REPLAY_INVOKER"`

	// Region overrides the AWS region for the lambda backend.
	Region string `yaml:"region" env:"REPLAY_INVOKE_REGION"`

	// URL is the registry base URL for http, or an endpoint override for lambda.
	URL     string        `yaml:"url" env:"REPLAY_INVOKE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"REPLAY_INVOKE_TIMEOUT"`

	// Rate limits invocations per second across all workers; 0 disables the limit.
	Rate float64 `yaml:"rate" env:"REPLAY_INVOKE_RATE"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" env:"REPLAY_LOG_LEVEL"`
	Format string `yaml:"format" env:"REPLAY_LOG_FORMAT"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		BatchSize:   planner.DefaultMaxBatchBytes,
		Concurrency: DefaultConcurrency,
		Checkpoint: Checkpoint{
			Kind:  CheckpointFile,
			Dir:   DefaultCheckpointDir,
			Table: migrations.DefaultTable,
		},
		Invoke: Invoke{
			Backend: InvokerLambda,
			Timeout: DefaultInvokeTimeout,
		},
		Log: Log{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (if not empty)
// and then with the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.MergeEnv(nil); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// MergeFile overlays the YAML file at path. Keys absent from the file keep
// their current value.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

// MergeEnv overlays environment variables. A nil environ reads the process
// environment. Unset variables keep the current value.
func (c *Config) MergeEnv(environ map[string]string) error {
	if err := env.ParseWithOptions(c, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the values that cannot be fixed interactively.
// Bucket, paths and functions may still be empty; the CLI prompts for them.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive (got %d)", ErrInvalidConfig, c.BatchSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive (got %d)", ErrInvalidConfig, c.Concurrency)
	}
	if c.Invoke.Timeout <= 0 {
		return fmt.Errorf("%w: invoke timeout must be positive", ErrInvalidConfig)
	}
	if c.Invoke.Rate < 0 {
		return fmt.Errorf("%w: invoke rate cannot be negative", ErrInvalidConfig)
	}

	switch c.Invoke.Backend {
	case InvokerLambda, InvokerHTTP:
	default:
		return fmt.Errorf("%w: unknown invoker %q", ErrInvalidConfig, c.Invoke.Backend)
	}

	switch c.Checkpoint.Kind {
	case CheckpointFile, CheckpointMemory:
	case CheckpointSQL:
		if c.Checkpoint.DSN == "" {
			return fmt.Errorf("%w: sql checkpoint requires a dsn", ErrInvalidConfig)
		}
		if _, err := migrations.ParseDialect(c.Checkpoint.Driver); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown checkpoint kind %q", ErrInvalidConfig, c.Checkpoint.Kind)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// String renders the configuration summary shown before confirmation.
func (c Config) String() string {
	var b strings.Builder

	b.WriteString("#################\n")
	b.WriteString("# Replay Config #\n")
	b.WriteString("#################\n")
	fmt.Fprintf(&b, "Bucket: %s\n", c.Bucket)
	b.WriteString("Paths :\n")
	switch len(c.Paths) {
	case 0:
		b.WriteString("    - (none)\n")
	case 1:
		fmt.Fprintf(&b, "    - %s\n", c.Paths[0])
	default:
		fmt.Fprintf(&b, "    - %s\n", c.Paths[0])
		fmt.Fprintf(&b, "    - (%d total)\n", len(c.Paths))
		fmt.Fprintf(&b, "    - %s\n", c.Paths[len(c.Paths)-1])
	}
	b.WriteString("\n#################\n")
	b.WriteString("Function(s):\n")
	for _, fn := range c.Functions {
		fmt.Fprintf(&b, "    - %s\n", fn)
	}
	fmt.Fprintf(&b, "Batch Size        : %s (%d bytes)\n", humanize.Bytes(uint64(c.BatchSize)), c.BatchSize)
	fmt.Fprintf(&b, "Concurrency       : %d\n", c.Concurrency)
	fmt.Fprintf(&b, "Workers           : %d\n", c.Concurrency*max(len(c.Functions), 1))
	fmt.Fprintf(&b, "Invoker           : %s\n", c.Invoke.Backend)
	fmt.Fprintf(&b, "Checkpoint        : %s\n", c.checkpointTarget())
	fmt.Fprintf(&b, "Bypass            : %t\n", c.Yes)

	return b.String()
}

func (c Config) checkpointTarget() string {
	switch c.Checkpoint.Kind {
	case CheckpointSQL:
		return fmt.Sprintf("sql (%s, table %s)", c.Checkpoint.Driver, c.Checkpoint.Table)
	case CheckpointFile:
		return fmt.Sprintf("file (%s)", c.Checkpoint.Dir)
	default:
		return c.Checkpoint.Kind
	}
}

// SplitList splits a comma separated flag value, dropping empty items.
func SplitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
