package store

import (
	"context"
	"sync"

	"github.com/getpup/pupsourcing-replay"
)

// MockCheckpointStore is a configurable mock implementation of CheckpointStore
// for use in tests. Each call is recorded with an encoded copy of the state,
// since the dispatcher keeps mutating the same RunState.
type MockCheckpointStore struct {
	mu sync.Mutex

	// PersistFunc is called by Persist if set.
	PersistFunc func(ctx context.Context, state *replay.RunState) error

	// PersistCalls records each Persist call.
	PersistCalls []PersistCall
}

// PersistCall captures the state observed by a single Persist call.
type PersistCall struct {
	RunID     string
	Completed int
	Failed    []int
	Snapshot  Snapshot
}

var _ CheckpointStore = (*MockCheckpointStore)(nil)

// NewMockCheckpointStore creates a new mock checkpoint store.
func NewMockCheckpointStore() *MockCheckpointStore {
	return &MockCheckpointStore{}
}

// Persist implements CheckpointStore.
func (m *MockCheckpointStore) Persist(ctx context.Context, state *replay.RunState) error {
	if state == nil {
		return ErrNilState
	}

	snapshot, err := Encode(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.PersistCalls = append(m.PersistCalls, PersistCall{
		RunID:     state.RunID,
		Completed: state.Completed(),
		Failed:    append([]int(nil), state.Failed...),
		Snapshot:  snapshot,
	})
	fn := m.PersistFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, state)
	}

	return nil
}

// Calls returns a copy of the recorded Persist calls.
func (m *MockCheckpointStore) Calls() []PersistCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]PersistCall, len(m.PersistCalls))
	copy(calls, m.PersistCalls)
	return calls
}
