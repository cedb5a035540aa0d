package replay

import "errors"

var (
	// ErrReadTimeout marks an invocation that timed out waiting for the endpoint.
	// Invokers wrap their timeout errors with it; workers never retry it.
	ErrReadTimeout = errors.New("read timeout")

	// ErrUnknownJob indicates a result was reported for a job id outside the run.
	ErrUnknownJob = errors.New("unknown job")

	// ErrResultAlreadyRecorded indicates a second result arrived for the same job.
	ErrResultAlreadyRecorded = errors.New("result already recorded")

	// ErrJobIDsNotDense indicates a job list whose ids do not match their positions.
	ErrJobIDsNotDense = errors.New("job ids are not dense")

	// ErrNoFunctions indicates a run was planned without any target function.
	ErrNoFunctions = errors.New("no target functions")

	// ErrInvalidBatchSize indicates a non-positive batch size cap.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)
