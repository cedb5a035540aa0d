package replay

import (
	"encoding/json"
	"fmt"
)

// ObjectRef identifies a stored object whose creation event is being replayed.
type ObjectRef struct {
	// Bucket is the storage location holding the object.
	Bucket string `json:"bucket"`

	// Key is the object key within the bucket.
	Key string `json:"key"`

	// Size is the object size in bytes.
	Size int64 `json:"size"`
}

// Batch is an ordered group of objects replayed together in one invocation.
// The total size of a batch never exceeds the configured cap unless the batch
// holds a single object that is larger than the cap on its own.
type Batch struct {
	Objects []ObjectRef
}

// Size returns the total byte size of the objects in the batch.
func (b Batch) Size() int64 {
	var total int64
	for _, o := range b.Objects {
		total += o.Size
	}
	return total
}

// Label returns the key of the first object in the batch.
func (b Batch) Label() string {
	if len(b.Objects) == 0 {
		return ""
	}
	return b.Objects[0].Key
}

// ErrorKind classifies how an invocation ended.
// The empty kind means the job completed without a terminal error.
type ErrorKind string

const (
	// ErrorKindNone indicates the invocation completed.
	ErrorKindNone ErrorKind = ""

	// ErrorKindTooManyRetries indicates the retry budget was exhausted.
	ErrorKindTooManyRetries ErrorKind = "too many retries"

	// ErrorKindReadTimeout indicates the endpoint timed out; timeouts are never retried.
	ErrorKindReadTimeout ErrorKind = "read timeout"

	// ErrorKindFunctionError indicates the endpoint answered but reported a function-level error.
	ErrorKindFunctionError ErrorKind = "function error"

	// ErrorKindCanceled indicates the run was cancelled while the job was backing off.
	ErrorKindCanceled ErrorKind = "canceled"
)

// Failed reports whether the kind marks the job for operator follow-up.
func (k ErrorKind) Failed() bool {
	return k != ErrorKindNone
}

// Job is one (batch, target function) pair to be invoked.
// Everything except Result is fixed before dispatch begins.
type Job struct {
	// ID is dense and 0-based across the whole run.
	ID int `json:"id"`

	// Function identifies the target endpoint.
	Function string `json:"function"`

	// Label is the key of the first object in the batch.
	Label string `json:"label"`

	// Payload is the encoded invocation envelope.
	Payload json.RawMessage `json:"payload"`

	// Result is nil until the dispatcher records the outcome of the job.
	Result *InvocationResult `json:"result"`
}

// InvocationResult is the outcome of invoking a single job.
type InvocationResult struct {
	JobID         int       `json:"id"`
	Body          string    `json:"body"`
	StatusCode    int       `json:"status"`
	FunctionError string    `json:"function_error,omitempty"`
	Error         ErrorKind `json:"error"`
	Retries       int       `json:"retries"`
}

// RunState is the full record of a run: every job with its current result and
// the ids of jobs whose result carries an error kind, in the order they failed.
// Only the dispatcher mutates a RunState.
type RunState struct {
	RunID  string `json:"run_id"`
	Jobs   []Job  `json:"jobs"`
	Failed []int  `json:"failed"`
}

// NewRunState creates a run state over the given job list.
// The job ids must be dense and match their position in the slice.
func NewRunState(runID string, jobs []Job) (*RunState, error) {
	for i, job := range jobs {
		if job.ID != i {
			return nil, fmt.Errorf("job at position %d has id %d: %w", i, job.ID, ErrJobIDsNotDense)
		}
	}

	return &RunState{
		RunID:  runID,
		Jobs:   jobs,
		Failed: make([]int, 0),
	}, nil
}

// Record attaches a result to its job and tracks it as failed when the result
// carries an error kind. A job's result can be recorded only once.
func (s *RunState) Record(result InvocationResult) error {
	if result.JobID < 0 || result.JobID >= len(s.Jobs) {
		return fmt.Errorf("job %d: %w", result.JobID, ErrUnknownJob)
	}

	job := &s.Jobs[result.JobID]
	if job.Result != nil {
		return fmt.Errorf("job %d: %w", result.JobID, ErrResultAlreadyRecorded)
	}

	job.Result = &result
	if result.Error.Failed() {
		s.Failed = append(s.Failed, result.JobID)
	}

	return nil
}

// FailedJobs returns the failed jobs in the order they failed.
func (s *RunState) FailedJobs() []Job {
	failed := make([]Job, 0, len(s.Failed))
	for _, id := range s.Failed {
		failed = append(failed, s.Jobs[id])
	}
	return failed
}

// Completed returns the number of jobs that have a recorded result.
func (s *RunState) Completed() int {
	count := 0
	for _, job := range s.Jobs {
		if job.Result != nil {
			count++
		}
	}
	return count
}
