package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/config"
	"github.com/getpup/pupsourcing-replay/dispatcher"
	"github.com/getpup/pupsourcing-replay/internal/prompt"
	"github.com/getpup/pupsourcing-replay/invoker"
	"github.com/getpup/pupsourcing-replay/logging"
	"github.com/getpup/pupsourcing-replay/metrics"
	"github.com/getpup/pupsourcing-replay/pkg/migrations"
	"github.com/getpup/pupsourcing-replay/planner"
	"github.com/getpup/pupsourcing-replay/source"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing-replay/store/file"
	"github.com/getpup/pupsourcing-replay/store/memory"
	"github.com/getpup/pupsourcing-replay/store/sqlstore"
	"github.com/getpup/pupsourcing-replay/worker"
	"github.com/getpup/pupsourcing/es"
)

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	zl, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	logger := logging.NewZapLogger(zl)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	client, err := source.NewClient(source.ClientConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return err
	}
	lister := source.New(client, source.Config{Logger: logger})

	functions, err := newFunctionInvoker(ctx, cfg, logger)
	if err != nil {
		return err
	}

	p := prompt.New(cmd.InOrStdin(), out)
	if err := complete(ctx, &cfg, p, lister, functions); err != nil {
		return err
	}

	fmt.Fprintln(out, summaryCard.Render(cfg.String()))

	if !cfg.Yes {
		ok, err := p.Confirm("Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	objects, err := lister.ListAll(ctx, cfg.Bucket, cfg.Paths)
	if err != nil {
		return err
	}

	jobs, err := planner.New(planner.Config{
		Functions:     cfg.Functions,
		MaxBatchBytes: cfg.BatchSize,
		Logger:        logger,
	}).Plan(ctx, objects)
	if err != nil {
		return err
	}

	checkpoints, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr)
		server.Start()
		defer shutdownMetrics(server)
		logger.Info(ctx, "metrics server started", "addr", server.Addr())
	}

	d := dispatcher.New(dispatcher.Config{
		Invoker:     invoker.NewRateLimited(functions, cfg.Invoke.Rate, 1),
		Store:       checkpoints,
		Concurrency: cfg.Concurrency,
		Functions:   len(cfg.Functions),
		Progress:    worker.NewProgress(out),
		Logger:      logger,
	})

	state, err := d.Run(ctx, jobs)
	if state != nil {
		printResult(out, state, cfg)
	}
	if err != nil {
		if isInterrupted(err) {
			fmt.Fprintln(out, warnText.Render("Interrupted. Completed jobs are checkpointed."))
		}
		return err
	}

	fmt.Fprintln(out, okText.Render("Replay complete!"))
	return nil
}

// loadConfig resolves defaults, the config file, the environment and the
// explicit flags, in that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	applyFlags(cmd.Flags(), flags, &cfg)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// complete asks for the bucket, paths and functions that are still missing.
func complete(ctx context.Context, cfg *config.Config, p *prompt.Prompter, lister *source.Lister, functions invoker.FunctionLister) error {
	var err error

	if cfg.Bucket == "" {
		if cfg.Bucket, err = p.Bucket(ctx, lister); err != nil {
			return fmt.Errorf("select bucket: %w", err)
		}
	}
	if len(cfg.Paths) == 0 {
		if cfg.Paths, err = p.Paths(ctx, lister, cfg.Bucket); err != nil {
			return fmt.Errorf("select paths: %w", err)
		}
	}
	if len(cfg.Functions) == 0 {
		if cfg.Functions, err = p.Functions(ctx, functions); err != nil {
			return fmt.Errorf("select functions: %w", err)
		}
	}

	return nil
}

// functionInvoker invokes and lists the target functions.
type functionInvoker interface {
	invoker.Invoker
	invoker.FunctionLister
}

// newFunctionInvoker builds the configured invocation backend.
func newFunctionInvoker(ctx context.Context, cfg config.Config, logger es.Logger) (functionInvoker, error) {
	if cfg.Invoke.Backend == config.InvokerHTTP {
		return invoker.NewHTTP(invoker.HTTPConfig{
			BaseURL: cfg.Invoke.URL,
			Timeout: cfg.Invoke.Timeout,
			Logger:  logger,
		}), nil
	}

	client, err := invoker.NewLambdaClient(ctx, invoker.LambdaClientConfig{
		Region:   cfg.Invoke.Region,
		Endpoint: cfg.Invoke.URL,
		Timeout:  cfg.Invoke.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return invoker.NewLambda(client, invoker.LambdaConfig{Logger: logger}), nil
}

// openStore builds the configured checkpoint store. The returned func
// releases whatever the store holds open.
func openStore(ctx context.Context, cfg config.Config, logger es.Logger) (store.CheckpointStore, func(), error) {
	switch cfg.Checkpoint.Kind {
	case config.CheckpointMemory:
		return memory.New(), func() {}, nil

	case config.CheckpointSQL:
		dialect, err := migrations.ParseDialect(cfg.Checkpoint.Driver)
		if err != nil {
			return nil, nil, err
		}

		db, err := sqlstore.Open(ctx, dialect, cfg.Checkpoint.DSN)
		if err != nil {
			return nil, nil, err
		}

		s, err := sqlstore.New(sqlstore.Config{
			DB:      db,
			Dialect: dialect,
			Table:   cfg.Checkpoint.Table,
			Logger:  logger,
		})
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return s, func() { _ = db.Close() }, nil

	default:
		s, err := file.New(file.Config{Dir: cfg.Checkpoint.Dir, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func shutdownMetrics(server *metrics.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

func printResult(out io.Writer, state *replay.RunState, cfg config.Config) {
	failed := fmt.Sprintf("%d", len(state.Failed))
	card := resultOK
	if len(state.Failed) > 0 {
		failed = failText.Render(failed)
		card = resultFailed
	}

	body := fmt.Sprintf("%s %s\n%s %d/%d\n%s %s\n%s %s",
		boldText.Render("Run       :"), state.RunID,
		boldText.Render("Completed :"), state.Completed(), len(state.Jobs),
		boldText.Render("Failed    :"), failed,
		boldText.Render("Checkpoint:"), dimText.Render(checkpointLocation(cfg)))

	fmt.Fprintln(out)
	fmt.Fprintln(out, card.Render(body))

	if len(state.Failed) > 0 && cfg.Checkpoint.Kind == config.CheckpointFile {
		fmt.Fprintln(out, warnText.Render(fmt.Sprintf("Failed jobs are listed in %s", store.DocumentFailed)))
	}
}

func checkpointLocation(cfg config.Config) string {
	switch cfg.Checkpoint.Kind {
	case config.CheckpointSQL:
		return fmt.Sprintf("%s table %s", cfg.Checkpoint.Driver, cfg.Checkpoint.Table)
	case config.CheckpointMemory:
		return "memory"
	default:
		return cfg.Checkpoint.Dir
	}
}

// isInterrupted reports whether err comes from an operator interrupt.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
