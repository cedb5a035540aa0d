package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/invoker"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing-replay/store/memory"
	"github.com/getpup/pupsourcing-replay/worker"
)

// mockLogger captures log calls for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	m.record(msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	m.record(msg)
}

func (m *mockLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	m.record(msg)
}

func (m *mockLogger) record(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockLogger) has(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, got := range m.messages {
		if got == msg {
			return true
		}
	}
	return false
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func disabled() *bool {
	b := false
	return &b
}

func makeJobs(n int, functions ...string) []replay.Job {
	if len(functions) == 0 {
		functions = []string{"fn"}
	}
	jobs := make([]replay.Job, 0, n*len(functions))
	for b := 0; b < n; b++ {
		for _, fn := range functions {
			jobs = append(jobs, replay.Job{
				ID:       len(jobs),
				Function: fn,
				Label:    fmt.Sprintf("key-%d", b),
				Payload:  []byte(fmt.Sprintf(`{"batch":%d}`, b)),
			})
		}
	}
	return jobs
}

func TestNew_AppliesDefaults(t *testing.T) {
	d := New(Config{Invoker: invoker.NewMockInvoker(), Store: store.NewMockCheckpointStore()})

	assert.Equal(t, DefaultConcurrency, d.config.Concurrency)
	assert.Equal(t, 1, d.config.Functions)
	assert.Equal(t, DefaultConcurrency, d.Workers())
	assert.NotEmpty(t, d.RunID())
	assert.Equal(t, worker.DefaultRetryPolicy(), d.config.Retry)
	assert.NotNil(t, d.collector)
}

func TestNew_WorkersScaleWithFunctions(t *testing.T) {
	d := New(Config{Concurrency: 3, Functions: 4, MetricsEnabled: disabled()})

	assert.Equal(t, 12, d.Workers())
	assert.Nil(t, d.collector)
}

func TestRun_RecordsEveryJobAndPersistsAfterEach(t *testing.T) {
	mockStore := store.NewMockCheckpointStore()
	mockInvoker := invoker.NewMockInvoker()
	d := New(Config{
		Invoker:        mockInvoker,
		Store:          mockStore,
		Concurrency:    3,
		RunID:          "run-all",
		MetricsEnabled: disabled(),
	})

	jobs := makeJobs(10)
	state, err := d.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.Equal(t, 10, state.Completed())
	assert.Empty(t, state.Failed)
	for _, job := range state.Jobs {
		require.NotNil(t, job.Result)
		assert.Equal(t, http.StatusOK, job.Result.StatusCode)
	}

	calls := mockStore.Calls()
	require.Len(t, calls, 11)
	assert.Equal(t, 0, calls[0].Completed)
	for i, call := range calls {
		assert.Equal(t, i, call.Completed)
		assert.Equal(t, "run-all", call.RunID)
	}
	assert.Len(t, mockInvoker.Calls(), 10)
}

func TestRun_SingleWorkerSucceedsInOrder(t *testing.T) {
	mockStore := store.NewMockCheckpointStore()
	mockInvoker := invoker.NewMockInvoker()
	d := New(Config{
		Invoker:        mockInvoker,
		Store:          mockStore,
		Concurrency:    1,
		MetricsEnabled: disabled(),
	})
	require.Equal(t, 1, d.Workers())

	jobs := makeJobs(10)
	state, err := d.Run(context.Background(), jobs)
	require.NoError(t, err)

	require.Len(t, state.Jobs, 10)
	for i, job := range state.Jobs {
		require.NotNil(t, job.Result)
		assert.Equal(t, i, job.Result.JobID)
		assert.Equal(t, replay.ErrorKindNone, job.Result.Error)
		assert.Zero(t, job.Result.Retries)
		assert.Equal(t, http.StatusOK, job.Result.StatusCode)
	}
	assert.Empty(t, state.Failed)

	calls := mockInvoker.Calls()
	require.Len(t, calls, 10)
	for i, call := range calls {
		assert.Equal(t, []byte(jobs[i].Payload), call.Payload)
	}

	persists := mockStore.Calls()
	require.Len(t, persists, 11)
	for i, call := range persists {
		assert.Equal(t, i, call.Completed)
		assert.Empty(t, call.Failed)
	}
}

func TestRun_InvokesEachJobExactlyOnce(t *testing.T) {
	mockInvoker := invoker.NewMockInvoker()
	var mu sync.Mutex
	seen := make(map[string]int)
	mockInvoker.InvokeFunc = func(ctx context.Context, function string, payload []byte) (*invoker.Response, error) {
		mu.Lock()
		seen[function+string(payload)]++
		mu.Unlock()
		return &invoker.Response{StatusCode: http.StatusOK}, nil
	}

	d := New(Config{
		Invoker:        mockInvoker,
		Store:          memory.New(),
		Concurrency:    4,
		Functions:      2,
		MetricsEnabled: disabled(),
	})

	_, err := d.Run(context.Background(), makeJobs(25, "fn-a", "fn-b"))
	require.NoError(t, err)

	assert.Len(t, seen, 50)
	for key, count := range seen {
		assert.Equal(t, 1, count, key)
	}
}

func TestRun_NeverExceedsPoolSize(t *testing.T) {
	const poolSize = 4

	var active, peak int32
	arrived := make(chan struct{}, 64)
	release := make(chan struct{})
	var once sync.Once

	mockInvoker := invoker.NewMockInvoker()
	mockInvoker.InvokeFunc = func(ctx context.Context, function string, payload []byte) (*invoker.Response, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		arrived <- struct{}{}
		<-release
		atomic.AddInt32(&active, -1)
		return &invoker.Response{StatusCode: http.StatusOK}, nil
	}

	go func() {
		for i := 0; i < poolSize; i++ {
			select {
			case <-arrived:
			case <-time.After(2 * time.Second):
			}
		}
		once.Do(func() { close(release) })
	}()

	d := New(Config{
		Invoker:        mockInvoker,
		Store:          memory.New(),
		Concurrency:    2,
		Functions:      2,
		MetricsEnabled: disabled(),
	})

	state, err := d.Run(context.Background(), makeJobs(6, "a", "b"))
	require.NoError(t, err)

	assert.Equal(t, 12, state.Completed())
	assert.Equal(t, int32(poolSize), atomic.LoadInt32(&peak))
}

func TestRun_FailedJobsAreTracked(t *testing.T) {
	mockInvoker := invoker.NewMockInvoker()
	mockInvoker.InvokeFunc = func(ctx context.Context, function string, payload []byte) (*invoker.Response, error) {
		switch string(payload) {
		case `{"batch":1}`:
			return nil, errors.New("connection refused")
		case `{"batch":3}`:
			return nil, fmt.Errorf("%w: client timeout", replay.ErrReadTimeout)
		default:
			return &invoker.Response{StatusCode: http.StatusOK}, nil
		}
	}

	mem := memory.New()
	d := New(Config{
		Invoker:        mockInvoker,
		Store:          mem,
		Concurrency:    2,
		RunID:          "run-failed",
		Sleep:          noSleep,
		MetricsEnabled: disabled(),
	})

	state, err := d.Run(context.Background(), makeJobs(5))
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{1, 3}, state.Failed)
	assert.Equal(t, replay.ErrorKindTooManyRetries, state.Jobs[1].Result.Error)
	assert.Equal(t, 5, state.Jobs[1].Result.Retries)
	assert.Equal(t, replay.ErrorKindReadTimeout, state.Jobs[3].Result.Error)
	assert.Equal(t, 0, state.Jobs[3].Result.Retries)

	failed, err := mem.Failed("run-failed")
	require.NoError(t, err)
	assert.Len(t, failed, 2)
	assert.Equal(t, 6, mem.Writes("run-failed"))
}

func TestRun_InitialPersistFailureStopsBeforeDispatch(t *testing.T) {
	mockStore := store.NewMockCheckpointStore()
	boom := errors.New("read-only filesystem")
	mockStore.PersistFunc = func(ctx context.Context, state *replay.RunState) error {
		return boom
	}
	mockInvoker := invoker.NewMockInvoker()

	d := New(Config{Invoker: mockInvoker, Store: mockStore, MetricsEnabled: disabled()})

	_, err := d.Run(context.Background(), makeJobs(3))

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mockInvoker.Calls())
}

func TestRun_PersistFailureIsFatal(t *testing.T) {
	mockStore := store.NewMockCheckpointStore()
	boom := errors.New("disk full")
	var calls int32
	mockStore.PersistFunc = func(ctx context.Context, state *replay.RunState) error {
		if atomic.AddInt32(&calls, 1) == 3 {
			return boom
		}
		return nil
	}
	logger := &mockLogger{}

	d := New(Config{
		Invoker:        invoker.NewMockInvoker(),
		Store:          mockStore,
		Concurrency:    1,
		Logger:         logger,
		MetricsEnabled: disabled(),
	})

	state, err := d.Run(context.Background(), makeJobs(20))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to persist checkpoint")
	require.NotNil(t, state)
	assert.Less(t, state.Completed(), 20)
	assert.True(t, logger.has("checkpoint write failed, stopping workers"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRun_CancellationStopsPulling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockInvoker := invoker.NewMockInvoker()
	var invoked int32
	mockInvoker.InvokeFunc = func(ctx context.Context, function string, payload []byte) (*invoker.Response, error) {
		if atomic.AddInt32(&invoked, 1) == 2 {
			cancel()
		}
		return &invoker.Response{StatusCode: http.StatusOK}, nil
	}

	mem := memory.New()
	d := New(Config{
		Invoker:        mockInvoker,
		Store:          mem,
		Concurrency:    1,
		RunID:          "run-cancel",
		MetricsEnabled: disabled(),
	})

	state, err := d.Run(ctx, makeJobs(10))

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, state)
	assert.Equal(t, 2, state.Completed())
	assert.Nil(t, state.Jobs[9].Result)

	jobs, err := mem.Jobs("run-cancel")
	require.NoError(t, err)
	assert.NotNil(t, jobs[1].Result)
	assert.Nil(t, jobs[2].Result)
}

func TestRun_EmptyJobList(t *testing.T) {
	mockStore := store.NewMockCheckpointStore()
	d := New(Config{Invoker: invoker.NewMockInvoker(), Store: mockStore, MetricsEnabled: disabled()})

	state, err := d.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, state.Jobs)
	assert.Len(t, mockStore.Calls(), 1)
}

func TestRun_RejectsNonDenseIDs(t *testing.T) {
	jobs := makeJobs(2)
	jobs[1].ID = 5

	d := New(Config{Invoker: invoker.NewMockInvoker(), Store: store.NewMockCheckpointStore(), MetricsEnabled: disabled()})

	_, err := d.Run(context.Background(), jobs)

	assert.ErrorIs(t, err, replay.ErrJobIDsNotDense)
}

func TestRun_LogsLifecycle(t *testing.T) {
	logger := &mockLogger{}
	d := New(Config{
		Invoker:        invoker.NewMockInvoker(),
		Store:          memory.New(),
		Logger:         logger,
		MetricsEnabled: disabled(),
	})

	_, err := d.Run(context.Background(), makeJobs(2))
	require.NoError(t, err)

	assert.True(t, logger.has("starting replay"))
	assert.True(t, logger.has("replay finished"))
}
