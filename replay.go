// Package replay replays recorded object-creation events by re-invoking a
// downstream function once per batch of objects.
//
// The objects are grouped into size-bounded batches, each batch is wrapped in
// the notification envelope the function already parses, and the resulting jobs
// are fanned out over a fixed pool of workers. Failed invocations are retried
// with exponential backoff and the state of the run is checkpointed after every
// completed job.
package replay

import "context"

// Dispatcher runs a fixed job list to completion.
type Dispatcher interface {
	// Run dispatches every job and blocks until all workers have finished.
	//
	// The returned state holds one result per dispatched job. Per-job failures
	// never abort the run; they are recorded in the state's failed list.
	//
	// Run returns an error if:
	// - The job list is malformed (ids not dense)
	// - A checkpoint write fails, since progress can no longer be trusted
	//
	// When ctx is cancelled, workers stop pulling new jobs and Run returns the
	// partial state together with ctx.Err().
	Run(ctx context.Context, jobs []Job) (*RunState, error)
}
