package store

import (
	"encoding/json"
	"fmt"

	"github.com/getpup/pupsourcing-replay"
)

// Snapshot is the encoded form of both checkpoint documents.
type Snapshot struct {
	Jobs   []byte
	Failed []byte
}

// Document returns the encoded document by name.
func (s Snapshot) Document(name string) ([]byte, error) {
	switch name {
	case DocumentJobs:
		return s.Jobs, nil
	case DocumentFailed:
		return s.Failed, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
}

// Encode renders state as the two checkpoint documents.
// The jobs document lists every job in id order, unfinished jobs with a null
// result. The failed document lists the failed jobs in the order they failed.
func Encode(state *replay.RunState) (Snapshot, error) {
	if state == nil {
		return Snapshot{}, ErrNilState
	}

	jobs := state.Jobs
	if jobs == nil {
		jobs = []replay.Job{}
	}

	jobsDoc, err := json.Marshal(jobs)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to encode jobs: %w", err)
	}

	failedDoc, err := json.Marshal(state.FailedJobs())
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to encode failed jobs: %w", err)
	}

	return Snapshot{Jobs: jobsDoc, Failed: failedDoc}, nil
}

// DecodeJobs parses a jobs or failed document.
func DecodeJobs(data []byte) ([]replay.Job, error) {
	var jobs []replay.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}
	return jobs, nil
}
