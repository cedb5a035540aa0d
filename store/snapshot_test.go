package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupsourcing-replay"
)

func newState(t *testing.T, n int) *replay.RunState {
	t.Helper()
	jobs := make([]replay.Job, n)
	for i := range jobs {
		jobs[i] = replay.Job{ID: i, Function: "fn", Label: "k", Payload: []byte(`{"Records":[]}`)}
	}
	state, err := replay.NewRunState("run-1", jobs)
	require.NoError(t, err)
	return state
}

func TestEncode_NilState(t *testing.T) {
	_, err := Encode(nil)

	assert.ErrorIs(t, err, ErrNilState)
}

func TestEncode_FreshStateHasNullResultsAndEmptyFailed(t *testing.T) {
	state := newState(t, 2)

	snapshot, err := Encode(state)
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"id":0,"function":"fn","label":"k","payload":{"Records":[]},"result":null},
		{"id":1,"function":"fn","label":"k","payload":{"Records":[]},"result":null}
	]`, string(snapshot.Jobs))
	assert.JSONEq(t, `[]`, string(snapshot.Failed))
}

func TestEncode_FailedDocumentFollowsFailureOrder(t *testing.T) {
	state := newState(t, 3)
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 2, Error: replay.ErrorKindReadTimeout}))
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 1, StatusCode: 200}))
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 0, Error: replay.ErrorKindTooManyRetries, Retries: 5}))

	snapshot, err := Encode(state)
	require.NoError(t, err)

	failed, err := DecodeJobs(snapshot.Failed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, 2, failed[0].ID)
	assert.Equal(t, replay.ErrorKindReadTimeout, failed[0].Result.Error)
	assert.Equal(t, 0, failed[1].ID)
	assert.Equal(t, 5, failed[1].Result.Retries)

	jobs, err := DecodeJobs(snapshot.Jobs)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.NotNil(t, job.Result)
	}
}

func TestEncode_EmptyRun(t *testing.T) {
	state, err := replay.NewRunState("empty", nil)
	require.NoError(t, err)

	snapshot, err := Encode(state)
	require.NoError(t, err)

	assert.Equal(t, "[]", string(snapshot.Jobs))
	assert.Equal(t, "[]", string(snapshot.Failed))
}

func TestSnapshot_Document(t *testing.T) {
	snapshot := Snapshot{Jobs: []byte("a"), Failed: []byte("b")}

	jobs, err := snapshot.Document(DocumentJobs)
	require.NoError(t, err)
	assert.Equal(t, "a", string(jobs))

	failed, err := snapshot.Document(DocumentFailed)
	require.NoError(t, err)
	assert.Equal(t, "b", string(failed))

	_, err = snapshot.Document("other.json")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDecodeJobs_InvalidJSON(t *testing.T) {
	_, err := DecodeJobs([]byte("{"))

	assert.Error(t, err)
}

func TestMockCheckpointStore_RecordsCopies(t *testing.T) {
	state := newState(t, 2)
	mock := NewMockCheckpointStore()

	require.NoError(t, mock.Persist(context.Background(), state))
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 0, Error: replay.ErrorKindReadTimeout}))
	require.NoError(t, mock.Persist(context.Background(), state))

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "run-1", calls[0].RunID)
	assert.Equal(t, 0, calls[0].Completed)
	assert.Empty(t, calls[0].Failed)
	assert.Equal(t, 1, calls[1].Completed)
	assert.Equal(t, []int{0}, calls[1].Failed)
}

func TestMockCheckpointStore_PersistFunc(t *testing.T) {
	boom := errors.New("disk full")
	mock := NewMockCheckpointStore()
	mock.PersistFunc = func(ctx context.Context, state *replay.RunState) error {
		return boom
	}

	err := mock.Persist(context.Background(), newState(t, 1))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, mock.Calls(), 1)
}

func TestMockCheckpointStore_NilState(t *testing.T) {
	err := NewMockCheckpointStore().Persist(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNilState)
}
