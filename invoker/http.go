package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing/es"
)

// FunctionErrorHeader carries a function-level error on an otherwise successful response.
const FunctionErrorHeader = "X-Function-Error"

// HTTPConfig configures the HTTP invoker.
type HTTPConfig struct {
	// BaseURL is the function API root used to resolve bare function names
	// and to list functions. Absolute function URLs are invoked as-is.
	BaseURL string

	// Timeout bounds a single invocation including reading the body (default: 5m).
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout (optional).
	HTTPClient *http.Client

	// Logger is for observability (optional).
	Logger es.Logger
}

// HTTPInvoker invokes functions over HTTP and lists them from the registry.
type HTTPInvoker struct {
	config HTTPConfig
	client *http.Client
}

// Compile-time checks that HTTPInvoker implements Invoker and FunctionLister.
var (
	_ Invoker        = (*HTTPInvoker)(nil)
	_ FunctionLister = (*HTTPInvoker)(nil)
)

// NewHTTP creates a new HTTPInvoker with the given configuration.
// It applies the default Timeout if zero.
func NewHTTP(cfg HTTPConfig) *HTTPInvoker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPInvoker{
		config: cfg,
		client: client,
	}
}

// Invoke posts the payload to the function and returns its response.
// Any HTTP status is a completed invocation; only transport failures return an error.
func (h *HTTPInvoker) Invoke(ctx context.Context, function string, payload []byte) (*Response, error) {
	target, err := h.functionURL(function)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read response: %w", err))
	}

	if h.config.Logger != nil {
		h.config.Logger.Debug(ctx, "function invoked",
			"function", function,
			"status", resp.StatusCode,
			"bytes", len(body))
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		Body:          body,
		FunctionError: resp.Header.Get(FunctionErrorHeader),
	}, nil
}

type listFunctionsResponse struct {
	Functions  []Function `json:"functions"`
	NextMarker string     `json:"next_marker"`
}

// ListFunctions pages through the function registry and returns every function.
func (h *HTTPInvoker) ListFunctions(ctx context.Context) ([]Function, error) {
	if h.config.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	functions := make([]Function, 0)
	marker := ""
	for {
		endpoint := h.config.BaseURL + "/functions"
		if marker != "" {
			endpoint += "?marker=" + url.QueryEscape(marker)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to list functions: %w", err)
		}

		var page listFunctionsResponse
		err = decodeJSON(resp, &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list functions: %w", err)
		}

		functions = append(functions, page.Functions...)
		if page.NextMarker == "" {
			break
		}
		marker = page.NextMarker
	}

	return functions, nil
}

func (h *HTTPInvoker) functionURL(function string) (string, error) {
	if strings.HasPrefix(function, "http://") || strings.HasPrefix(function, "https://") {
		return function, nil
	}
	if h.config.BaseURL == "" {
		return "", fmt.Errorf("function %q: %w", function, ErrNoBaseURL)
	}
	return h.config.BaseURL + "/functions/" + url.PathEscape(function) + "/invocations", nil
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// classify marks client timeouts with replay.ErrReadTimeout.
// Connect timeouts stay transient: the endpoint never received the request.
func classify(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", replay.ErrReadTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", replay.ErrReadTimeout, err)
	}
	return err
}
