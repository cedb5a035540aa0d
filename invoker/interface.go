package invoker

import (
	"context"
	"errors"
)

// ErrNoBaseURL indicates a bare function name was used without a configured API base URL.
var ErrNoBaseURL = errors.New("function API base URL is not configured")

// Response is the outcome of a completed invocation.
type Response struct {
	// StatusCode is the status reported by the endpoint.
	StatusCode int

	// Body is the raw response body.
	Body []byte

	// FunctionError is set when the endpoint answered but the function itself failed.
	FunctionError string
}

// Invoker invokes a target function with an encoded payload.
// This interface allows for mock implementations in tests.
//
// Implementations return an error wrapping replay.ErrReadTimeout when the
// endpoint did not answer in time. Any other error is treated as transient.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload []byte) (*Response, error)
}

// Function is an invocable endpoint known to the function registry.
type Function struct {
	// Name is the identifier passed to Invoke (a function ARN for Lambda).
	Name string `json:"name"`

	// URL is set by registries that expose per-function endpoints.
	URL string `json:"url"`
}

// FunctionLister enumerates the invocable functions.
type FunctionLister interface {
	ListFunctions(ctx context.Context) ([]Function, error)
}
