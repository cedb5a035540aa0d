// Package worker implements the invocation worker and its retry policy.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/invoker"
	"github.com/getpup/pupsourcing-replay/metrics"
	"github.com/getpup/pupsourcing/es"
)

const (
	// DefaultMaxRetries is the default retry budget per job.
	DefaultMaxRetries = 5

	// DefaultBaseDelay is the default backoff unit; retry n sleeps BaseDelay * 2^n.
	DefaultBaseDelay = 100 * time.Millisecond
)

// Outcome labels reported to metrics.
const (
	OutcomeSuccess        = "success"
	OutcomeNonSuccess     = "non_success_status"
	OutcomeFunctionError  = "function_error"
	OutcomeTooManyRetries = "too_many_retries"
	OutcomeReadTimeout    = "read_timeout"
	OutcomeCanceled       = "canceled"
)

// ErrNoResponse is used when an invoker returns neither a response nor an error.
// It is retried like any other transient failure.
var ErrNoResponse = errors.New("invoker returned no response")

// RetryPolicy bounds the retries of a single job.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt (default: 5).
	MaxRetries int

	// BaseDelay is the backoff unit (default: 100ms).
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns 5 retries with 0.2s, 0.4s, 0.8s, 1.6s and 3.2s delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// Delay returns the backoff before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	return p.BaseDelay * time.Duration(1<<retry)
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Message is sent by a worker to the dispatcher.
// A worker sends one message per processed job and a final message with Finished set.
type Message struct {
	// Worker is the id of the sending worker.
	Worker int

	// Result is set for job results.
	Result *replay.InvocationResult

	// Finished marks the last message of the worker.
	Finished bool
}

// Config configures a Worker.
type Config struct {
	// ID identifies the worker in progress output and logs.
	ID int

	// Invoker invokes the target functions (required).
	Invoker invoker.Invoker

	// TotalJobs is the size of the run, used for progress output.
	TotalJobs int

	// Retry is the retry policy (default: DefaultRetryPolicy()).
	Retry RetryPolicy

	// Sleep waits between retries (default: a context-aware timer).
	Sleep SleepFunc

	// Progress receives a line per pulled job (optional).
	Progress *Progress

	// Collector records invocation metrics (optional).
	Collector *metrics.Collector

	// Logger is for observability (optional).
	Logger es.Logger
}

// Worker pulls jobs, invokes the target function and reports results.
// A worker holds no state shared with other workers.
type Worker struct {
	config Config
}

// New creates a new Worker with the given configuration.
// Applies default values for Retry and Sleep if not set.
func New(cfg Config) *Worker {
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	return &Worker{
		config: cfg,
	}
}

// ID returns the worker id.
func (w *Worker) ID() int {
	return w.config.ID
}

// Run processes jobs until the queue is closed or ctx is cancelled.
// It always sends exactly one Finished message before returning.
func (w *Worker) Run(ctx context.Context, jobs <-chan replay.Job, results chan<- Message) {
	defer func() {
		results <- Message{Worker: w.config.ID, Finished: true}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		var job replay.Job
		var ok bool
		select {
		case <-ctx.Done():
			return
		case job, ok = <-jobs:
			if !ok {
				return
			}
		}

		if w.config.Progress != nil {
			w.config.Progress.JobStarted(w.config.ID, job.ID, w.config.TotalJobs, job.Label)
		}

		result := w.Process(ctx, job)
		results <- Message{Worker: w.config.ID, Result: &result}
	}
}

// Process invokes a single job, retrying transient failures.
//
// A call that returns without error completes the job whatever its status
// code. A timeout ends the job immediately with ErrorKindReadTimeout. Any other
// error is retried after BaseDelay * 2^retries until MaxRetries retries have
// been made, after which the job ends with ErrorKindTooManyRetries.
func (w *Worker) Process(ctx context.Context, job replay.Job) replay.InvocationResult {
	result := replay.InvocationResult{JobID: job.ID}

	for {
		start := time.Now()
		resp, err := w.config.Invoker.Invoke(ctx, job.Function, job.Payload)
		if err == nil && resp == nil {
			err = ErrNoResponse
		}
		if w.config.Collector != nil {
			w.config.Collector.ObserveInvocationDuration(job.Function, time.Since(start).Seconds())
		}

		if err == nil {
			result.StatusCode = resp.StatusCode
			result.Body = string(resp.Body)
			result.FunctionError = resp.FunctionError
			w.completed(ctx, job, &result)
			return result
		}

		result.Body = err.Error()
		if w.config.Logger != nil {
			w.config.Logger.Error(ctx, "invocation failed",
				"worker", w.config.ID,
				"job", job.ID,
				"function", job.Function,
				"error", err)
		}

		if errors.Is(err, replay.ErrReadTimeout) {
			result.Error = replay.ErrorKindReadTimeout
			w.finish(job, OutcomeReadTimeout)
			return result
		}

		if result.Retries >= w.config.Retry.MaxRetries {
			result.Error = replay.ErrorKindTooManyRetries
			w.finish(job, OutcomeTooManyRetries)
			return result
		}

		result.Retries++
		if w.config.Collector != nil {
			w.config.Collector.IncRetries(job.Function)
		}

		if err := w.config.Sleep(ctx, w.config.Retry.Delay(result.Retries)); err != nil {
			result.Error = replay.ErrorKindCanceled
			w.finish(job, OutcomeCanceled)
			return result
		}

		if w.config.Logger != nil {
			w.config.Logger.Debug(ctx, "retrying invocation",
				"worker", w.config.ID,
				"job", job.ID,
				"attempt", result.Retries,
				"maxRetries", w.config.Retry.MaxRetries)
		}
	}
}

func (w *Worker) completed(ctx context.Context, job replay.Job, result *replay.InvocationResult) {
	outcome := OutcomeSuccess

	if result.StatusCode < 200 || result.StatusCode > 299 {
		outcome = OutcomeNonSuccess
		if w.config.Logger != nil {
			w.config.Logger.Error(ctx, "non-success status",
				"worker", w.config.ID,
				"job", job.ID,
				"status", result.StatusCode,
				"body", result.Body)
		}
	}

	if result.FunctionError != "" {
		result.Error = replay.ErrorKindFunctionError
		outcome = OutcomeFunctionError
	}

	w.finish(job, outcome)
}

func (w *Worker) finish(job replay.Job, outcome string) {
	if w.config.Collector != nil {
		w.config.Collector.IncJobs(job.Function, outcome)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
