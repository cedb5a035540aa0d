// Package store defines checkpoint persistence for replay runs.
package store

import (
	"context"

	"github.com/getpup/pupsourcing-replay"
)

// Document names of a checkpoint.
const (
	// DocumentJobs holds every job with its result slot.
	DocumentJobs = "jobs.json"

	// DocumentFailed holds the jobs whose result carries an error kind.
	DocumentFailed = "jobs-failed.json"
)

// CheckpointStore persists run state snapshots.
// Every Persist overwrites both documents in full; there is no incremental write.
// The dispatcher calls Persist from a single goroutine.
type CheckpointStore interface {
	// Persist writes the full job list and the failed subset of state.
	// An error means progress can no longer be trusted to survive a crash.
	Persist(ctx context.Context, state *replay.RunState) error
}
