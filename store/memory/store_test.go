package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/store"
)

func newState(t *testing.T, runID string, n int) *replay.RunState {
	t.Helper()
	jobs := make([]replay.Job, n)
	for i := range jobs {
		jobs[i] = replay.Job{ID: i, Function: "fn", Label: "key", Payload: []byte(`{}`)}
	}
	state, err := replay.NewRunState(runID, jobs)
	require.NoError(t, err)
	return state
}

func TestPersist_StoresLatestSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()
	state := newState(t, "run-a", 2)

	require.NoError(t, s.Persist(ctx, state))
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 1, Error: replay.ErrorKindTooManyRetries, Retries: 5}))
	require.NoError(t, s.Persist(ctx, state))

	jobs, err := s.Jobs("run-a")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Nil(t, jobs[0].Result)
	require.NotNil(t, jobs[1].Result)
	assert.Equal(t, replay.ErrorKindTooManyRetries, jobs[1].Result.Error)

	failed, err := s.Failed("run-a")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].ID)

	assert.Equal(t, 2, s.Writes("run-a"))
}

func TestPersist_NilState(t *testing.T) {
	err := New().Persist(context.Background(), nil)

	assert.ErrorIs(t, err, store.ErrNilState)
}

func TestLoad_UnknownRun(t *testing.T) {
	_, err := New().Load(context.Background(), "missing", store.DocumentJobs)

	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}

func TestLoad_UnknownDocument(t *testing.T) {
	s := New()
	require.NoError(t, s.Persist(context.Background(), newState(t, "run-b", 1)))

	_, err := s.Load(context.Background(), "run-b", "other.json")

	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}

func TestLoad_ReturnsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.Persist(context.Background(), newState(t, "run-c", 1)))

	data, err := s.Load(context.Background(), "run-c", store.DocumentFailed)
	require.NoError(t, err)
	data[0] = 'x'

	again, err := s.Load(context.Background(), "run-c", store.DocumentFailed)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(again))
}

func TestRunsAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, newState(t, "run-1", 1)))
	require.NoError(t, s.Persist(ctx, newState(t, "run-2", 3)))

	jobs1, err := s.Jobs("run-1")
	require.NoError(t, err)
	jobs2, err := s.Jobs("run-2")
	require.NoError(t, err)

	assert.Len(t, jobs1, 1)
	assert.Len(t, jobs2, 3)
	assert.Equal(t, 0, s.Writes("run-3"))
}

func TestConcurrentReadsDuringPersist(t *testing.T) {
	s := New()
	ctx := context.Background()
	state := newState(t, "run-concurrent", 10)
	require.NoError(t, s.Persist(ctx, state))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.Jobs("run-concurrent")
				assert.NoError(t, err)
			}
		}()
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, state.Record(replay.InvocationResult{JobID: i, StatusCode: 200}))
		require.NoError(t, s.Persist(ctx, state))
	}
	wg.Wait()

	assert.Equal(t, 11, s.Writes("run-concurrent"))
}

func TestPersist_IsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	state := newState(t, "run-a", 4)
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 1, StatusCode: 200, Body: `"ok"`}))
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 3, Error: replay.ErrorKindTooManyRetries, Retries: 5}))
	require.NoError(t, state.Record(replay.InvocationResult{JobID: 2, Error: replay.ErrorKindReadTimeout}))

	read := func() ([]byte, []byte) {
		jobs, err := s.Load(ctx, "run-a", store.DocumentJobs)
		require.NoError(t, err)
		failed, err := s.Load(ctx, "run-a", store.DocumentFailed)
		require.NoError(t, err)
		return jobs, failed
	}

	require.NoError(t, s.Persist(ctx, state))
	firstJobs, firstFailed := read()

	require.NoError(t, s.Persist(ctx, state))
	secondJobs, secondFailed := read()

	assert.Equal(t, firstJobs, secondJobs)
	assert.Equal(t, firstFailed, secondFailed)
	assert.Equal(t, 2, s.Writes("run-a"))
}
