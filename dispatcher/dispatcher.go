// Package dispatcher fans a fixed job list out to a pool of invocation workers
// and checkpoints the run state after every result.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/invoker"
	"github.com/getpup/pupsourcing-replay/metrics"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing-replay/worker"
	"github.com/getpup/pupsourcing/es"
)

// DefaultConcurrency is the number of workers started per target function.
const DefaultConcurrency = 12

// Config holds configuration for the Dispatcher.
type Config struct {
	// Invoker invokes the target functions (required).
	Invoker invoker.Invoker

	// Store persists the run state after every result (required).
	Store store.CheckpointStore

	// Concurrency is the number of workers per target function (default: 12).
	Concurrency int

	// Functions is the number of target functions in the run (default: 1).
	// The pool holds Concurrency × Functions workers.
	Functions int

	// RunID identifies the run in checkpoints and metrics (default: random UUID).
	RunID string

	// Retry is the per-job retry policy (default: worker.DefaultRetryPolicy()).
	Retry worker.RetryPolicy

	// Sleep waits between retries (optional, mainly for tests).
	Sleep worker.SleepFunc

	// Progress receives the per-job progress line (optional).
	Progress *worker.Progress

	// Logger is for observability (optional).
	Logger es.Logger

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	// Set to false explicitly to disable metrics.
	MetricsEnabled *bool
}

// Dispatcher runs a complete job list to completion.
type Dispatcher struct {
	config    Config
	collector *metrics.Collector
}

var _ replay.Dispatcher = (*Dispatcher)(nil)

// New creates a new Dispatcher with the given configuration.
// Applies default values for Concurrency, Functions, RunID and Retry if zero.
func New(cfg Config) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Functions <= 0 {
		cfg.Functions = 1
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = worker.DefaultRetryPolicy()
	}

	var collector *metrics.Collector
	metricsEnabled := true
	if cfg.MetricsEnabled != nil {
		metricsEnabled = *cfg.MetricsEnabled
	}
	if metricsEnabled {
		collector = metrics.NewCollector(cfg.RunID)
	}

	return &Dispatcher{
		config:    cfg,
		collector: collector,
	}
}

// RunID returns the id of the run.
func (d *Dispatcher) RunID() string {
	return d.config.RunID
}

// Workers returns the size of the worker pool.
func (d *Dispatcher) Workers() int {
	return d.config.Concurrency * d.config.Functions
}

// Run dispatches every job and blocks until all workers have finished.
//
// The initial state is persisted before any worker starts, and the full state
// is persisted again after each result. A failed write is fatal: the workers
// are cancelled, results already in flight are still recorded, and Run returns
// the error. When ctx is cancelled workers stop pulling new jobs; Run then
// returns the partial state together with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, jobs []replay.Job) (*replay.RunState, error) {
	state, err := replay.NewRunState(d.config.RunID, jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to build run state: %w", err)
	}

	// Checkpoints outlive cancellation so an interrupted run is still recorded.
	persistCtx := context.WithoutCancel(ctx)

	if err := d.persist(persistCtx, state); err != nil {
		return state, fmt.Errorf("failed to persist initial checkpoint: %w", err)
	}

	queue := make(chan replay.Job, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	workerCount := d.Workers()
	results := make(chan worker.Message, workerCount)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.config.Logger != nil {
		d.config.Logger.Info(ctx, "starting replay",
			"run", d.config.RunID,
			"jobs", len(jobs),
			"workers", workerCount)
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		w := worker.New(worker.Config{
			ID:        i,
			Invoker:   d.config.Invoker,
			TotalJobs: len(jobs),
			Retry:     d.config.Retry,
			Sleep:     d.config.Sleep,
			Progress:  d.config.Progress,
			Collector: d.collector,
			Logger:    d.config.Logger,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(runCtx, queue, results)
		}()
	}

	if d.collector != nil {
		d.collector.SetActiveWorkers(workerCount)
	}

	var fatal error
	finished := 0
	for finished < workerCount {
		msg := <-results

		if msg.Finished {
			finished++
			if d.collector != nil {
				d.collector.SetActiveWorkers(workerCount - finished)
			}
			continue
		}

		if err := state.Record(*msg.Result); err != nil {
			if d.config.Logger != nil {
				d.config.Logger.Error(ctx, "failed to record result",
					"worker", msg.Worker,
					"job", msg.Result.JobID,
					"error", err)
			}
			continue
		}

		if d.collector != nil {
			d.collector.SetFailedJobs(len(state.Failed))
		}

		if fatal != nil {
			continue
		}

		if err := d.persist(persistCtx, state); err != nil {
			fatal = fmt.Errorf("failed to persist checkpoint after job %d: %w", msg.Result.JobID, err)
			if d.config.Logger != nil {
				d.config.Logger.Error(ctx, "checkpoint write failed, stopping workers", "error", err)
			}
			cancel()
		}
	}

	wg.Wait()

	if fatal != nil {
		return state, fatal
	}

	if d.config.Logger != nil {
		d.config.Logger.Info(ctx, "replay finished",
			"run", d.config.RunID,
			"completed", state.Completed(),
			"failed", len(state.Failed))
	}

	if err := ctx.Err(); err != nil {
		return state, err
	}

	return state, nil
}

func (d *Dispatcher) persist(ctx context.Context, state *replay.RunState) error {
	if err := d.config.Store.Persist(ctx, state); err != nil {
		return err
	}

	if d.collector != nil {
		d.collector.IncCheckpointWrites()
	}

	return nil
}
