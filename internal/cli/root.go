// Package cli implements the replay command tree.
package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/getpup/pupsourcing-replay/config"
)

// flagValues receives the raw command-line flags. Only flags the operator
// actually set are applied over the loaded configuration.
type flagValues struct {
	configPath string

	bucket      string
	paths       string
	functions   string
	batchSize   int64
	concurrency int
	yes         bool
	metricsAddr string

	checkpoint    string
	checkpointDir string
	dbDriver      string
	dbDSN         string
	dbTable       string

	endpoint      string
	accessKey     string
	secretKey     string
	region        string
	useSSL        bool
	invoker       string
	invokeRegion  string
	invokeURL     string
	invokeTimeout time.Duration
	invokeRate    float64

	logLevel  string
	logFormat string
}

var flags flagValues

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay object-creation events against downstream functions",
	Long: `replay re-sends object-creation events for objects already in a bucket.

Objects under the selected paths are grouped into size-bounded batches, each
batch is wrapped in the notification envelope the target functions expect, and
every batch is invoked once per function on a pool of workers. Progress is
checkpointed after every job to jobs.json and jobs-failed.json.

Missing bucket, paths or functions are selected interactively.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runReplay,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML configuration file")
	registerFlags(rootCmd.Flags(), &flags)
}

func registerFlags(f *pflag.FlagSet, v *flagValues) {
	f.StringVarP(&v.bucket, "bucket", "b", "", "bucket containing the objects to replay")
	f.StringVarP(&v.paths, "paths", "p", "", "comma separated key prefixes to replay")
	f.StringVarP(&v.functions, "functions", "l", "", "comma separated target functions")
	f.Int64Var(&v.batchSize, "batch-size", 0, "maximum total object bytes per batch (default 2000000)")
	f.IntVarP(&v.concurrency, "concurrency", "c", 0, "workers per function (default 12)")
	f.BoolVarP(&v.yes, "yes", "y", false, "skip the confirmation prompt")
	f.StringVar(&v.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	f.StringVar(&v.checkpoint, "checkpoint", "", "checkpoint store: file, sql or memory (default file)")
	f.StringVar(&v.checkpointDir, "checkpoint-dir", "", "directory for jobs.json and jobs-failed.json (default .)")
	f.StringVar(&v.dbDriver, "db-driver", "", "sql checkpoint dialect: postgres, mysql or sqlite")
	f.StringVar(&v.dbDSN, "db-dsn", "", "sql checkpoint data source name")
	f.StringVar(&v.dbTable, "db-table", "", "sql checkpoint table (default replay_checkpoints)")

	f.StringVar(&v.endpoint, "endpoint", "", "S3-compatible endpoint, e.g. s3.amazonaws.com")
	f.StringVar(&v.accessKey, "access-key", "", "S3 access key")
	f.StringVar(&v.secretKey, "secret-key", "", "S3 secret key")
	f.StringVar(&v.region, "region", "", "S3 region")
	f.BoolVar(&v.useSSL, "use-ssl", false, "connect to the S3 endpoint over TLS")
	f.StringVar(&v.invoker, "invoker", "", "invocation backend: lambda or http (default lambda)")
	f.StringVar(&v.invokeRegion, "invoke-region", "", "AWS region of the lambda functions")
	f.StringVar(&v.invokeURL, "invoke-url", "", "function API base URL (http) or endpoint override (lambda)")
	f.DurationVar(&v.invokeTimeout, "invoke-timeout", 0, "timeout of a single invocation (default 5m)")
	f.Float64Var(&v.invokeRate, "invoke-rate", 0, "maximum invocations per second across all workers (0 = unlimited)")

	f.StringVar(&v.logLevel, "log-level", "", "log level: debug, info, warn or error (default info)")
	f.StringVar(&v.logFormat, "log-format", "", "log format: console or json (default console)")
}

// applyFlags overlays the flags that were set explicitly.
func applyFlags(fs *pflag.FlagSet, v flagValues, cfg *config.Config) {
	set := func(name string) bool {
		return fs.Changed(name)
	}

	if set("bucket") {
		cfg.Bucket = v.bucket
	}
	if set("paths") {
		cfg.Paths = config.SplitList(v.paths)
	}
	if set("functions") {
		cfg.Functions = config.SplitList(v.functions)
	}
	if set("batch-size") {
		cfg.BatchSize = v.batchSize
	}
	if set("concurrency") {
		cfg.Concurrency = v.concurrency
	}
	if set("yes") {
		cfg.Yes = v.yes
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = v.metricsAddr
	}

	if set("checkpoint") {
		cfg.Checkpoint.Kind = v.checkpoint
	}
	if set("checkpoint-dir") {
		cfg.Checkpoint.Dir = v.checkpointDir
	}
	if set("db-driver") {
		cfg.Checkpoint.Driver = v.dbDriver
	}
	if set("db-dsn") {
		cfg.Checkpoint.DSN = v.dbDSN
	}
	if set("db-table") {
		cfg.Checkpoint.Table = v.dbTable
	}

	if set("endpoint") {
		cfg.Storage.Endpoint = v.endpoint
	}
	if set("access-key") {
		cfg.Storage.AccessKey = v.accessKey
	}
	if set("secret-key") {
		cfg.Storage.SecretKey = v.secretKey
	}
	if set("region") {
		cfg.Storage.Region = v.region
	}
	if set("use-ssl") {
		cfg.Storage.UseSSL = v.useSSL
	}
	if set("invoker") {
		cfg.Invoke.Backend = v.invoker
	}
	if set("invoke-region") {
		cfg.Invoke.Region = v.invokeRegion
	}
	if set("invoke-url") {
		cfg.Invoke.URL = v.invokeURL
	}
	if set("invoke-timeout") {
		cfg.Invoke.Timeout = v.invokeTimeout
	}
	if set("invoke-rate") {
		cfg.Invoke.Rate = v.invokeRate
	}

	if set("log-level") {
		cfg.Log.Level = v.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = v.logFormat
	}
}
