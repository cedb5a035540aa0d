// Package memory provides an in-memory CheckpointStore for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/store"
)

// Store keeps the last snapshot of each run in memory.
// It provides thread-safe access using a sync.RWMutex.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]store.Snapshot // runID -> last snapshot
	writes    map[string]int            // runID -> persist count
}

var _ store.CheckpointStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		snapshots: make(map[string]store.Snapshot),
		writes:    make(map[string]int),
	}
}

// Persist replaces the snapshot of the run.
func (s *Store) Persist(ctx context.Context, state *replay.RunState) error {
	snapshot, err := store.Encode(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[state.RunID] = snapshot
	s.writes[state.RunID]++

	return nil
}

// Load returns the raw document of the last snapshot of a run.
// Returns store.ErrDocumentNotFound if the run was never persisted.
func (s *Store) Load(ctx context.Context, runID, document string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", store.ErrDocumentNotFound, runID)
	}

	data, err := snapshot.Document(document)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Jobs returns the decoded job list of the last snapshot.
func (s *Store) Jobs(runID string) ([]replay.Job, error) {
	data, err := s.Load(context.Background(), runID, store.DocumentJobs)
	if err != nil {
		return nil, err
	}
	return store.DecodeJobs(data)
}

// Failed returns the decoded failed list of the last snapshot.
func (s *Store) Failed(runID string) ([]replay.Job, error) {
	data, err := s.Load(context.Background(), runID, store.DocumentFailed)
	if err != nil {
		return nil, err
	}
	return store.DecodeJobs(data)
}

// Writes returns how many times the run was persisted.
func (s *Store) Writes(runID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[runID]
}
