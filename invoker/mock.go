package invoker

import (
	"context"
	"net/http"
	"sync"
)

// MockInvoker is a mock implementation of Invoker for testing.
type MockInvoker struct {
	mu          sync.Mutex
	InvokeFunc  func(ctx context.Context, function string, payload []byte) (*Response, error)
	InvokeCalls []InvokeCall
}

// InvokeCall records the parameters of a single Invoke call.
type InvokeCall struct {
	Function string
	Payload  []byte
}

// NewMockInvoker creates a new MockInvoker with an empty call history.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		InvokeCalls: make([]InvokeCall, 0),
	}
}

// Invoke implements the Invoker interface.
// It records the call parameters, then:
// - If InvokeFunc is set, calls and returns it
// - Otherwise, returns a 200 response with an empty JSON body
func (m *MockInvoker) Invoke(ctx context.Context, function string, payload []byte) (*Response, error) {
	m.mu.Lock()
	m.InvokeCalls = append(m.InvokeCalls, InvokeCall{
		Function: function,
		Payload:  payload,
	})
	fn := m.InvokeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, function, payload)
	}

	return &Response{StatusCode: http.StatusOK, Body: []byte("{}")}, nil
}

// Calls returns a copy of the call history.
func (m *MockInvoker) Calls() []InvokeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]InvokeCall, len(m.InvokeCalls))
	copy(calls, m.InvokeCalls)
	return calls
}

// Reset clears the call history.
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvokeCalls = make([]InvokeCall, 0)
}
