package promapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// requestTimeout is the hard per-request deadline, including body read.
	requestTimeout = 10 * time.Second

	// maxAttempts is the total number of tries per query, first attempt
	// included.
	maxAttempts = 3

	// backoffBase is the sleep before the first retry; it doubles before
	// each subsequent one (1s, 2s, ...). No sleep follows the final attempt.
	backoffBase = 1 * time.Second
)

// ErrorKind classifies a failed query.
type ErrorKind string

const (
	// NonRetryable marks failures that retrying cannot fix: 4xx responses
	// and bodies that are not valid JSON.
	NonRetryable ErrorKind = "non_retryable"

	// RetriesExhausted marks transient failures (5xx, connection errors)
	// that persisted through the full retry budget.
	RetriesExhausted ErrorKind = "retries_exhausted"
)

// QueryError is the classified failure returned by Client.Query.
type QueryError struct {
	Kind ErrorKind
	Expr string
	err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %s: %v", e.Expr, e.Kind, e.err)
}

func (e *QueryError) Unwrap() error { return e.err }

// Result is the decoded envelope of a /api/v1/query response. Items are kept
// as raw JSON so a malformed item can be skipped during Parse without failing
// the whole response.
type Result struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []Item `json:"result"`
	} `json:"data"`
}

// Item is one instant-vector element: a label set and a [ts, "value"] pair.
type Item struct {
	Metric json.RawMessage `json:"metric"`
	Value  json.RawMessage `json:"value"`
}

// Client issues instant queries against the metrics backend.
//
// It holds a single http.Client whose connection pool is reused across
// queries; business logic never mutates it, so a Client is safe for
// concurrent use.
type Client struct {
	base   string
	client *http.Client

	// backoff is the initial retry sleep. Overridable in tests so retry
	// behaviour can be exercised without real one-second waits.
	backoff time.Duration
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		backoff: backoffBase,
	}
}

// Query executes expr as a GET /api/v1/query request.
//
// Transient failures — HTTP 500/502/503/504 and transport-level errors — are
// retried up to maxAttempts total, sleeping 1s then 2s between attempts. The
// backoff sleep honours ctx so Stop does not wait out a retry. All other
// failures return a *QueryError{Kind: NonRetryable} immediately.
func (c *Client) Query(ctx context.Context, expr string) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoffFor(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("query %q: %w", expr, ctx.Err())
			case <-time.After(wait):
			}
		}

		res, err := c.once(ctx, expr)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("query %q: %w", expr, ctx.Err())
		}

		var qe *QueryError
		if errors.As(err, &qe) && qe.Kind == NonRetryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, &QueryError{Kind: RetriesExhausted, Expr: expr, err: lastErr}
}

// backoffFor returns the sleep applied before the given attempt (2-based).
func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff
	for i := 2; i < attempt; i++ {
		wait *= 2
	}
	return wait
}

// once performs a single request without retrying. Transient failures are
// returned as plain errors; permanent ones as *QueryError{NonRetryable}.
func (c *Client) once(ctx context.Context, expr string) (*Result, error) {
	u := c.base + "/api/v1/query?query=" + url.QueryEscape(expr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &QueryError{Kind: NonRetryable, Expr: expr, err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case isTransientStatus(resp.StatusCode):
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for pool reuse
		return nil, fmt.Errorf("transient status %d", resp.StatusCode)

	default:
		return nil, &QueryError{
			Kind: NonRetryable,
			Expr: expr,
			err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &QueryError{
			Kind: NonRetryable,
			Expr: expr,
			err:  fmt.Errorf("decode body: %w", err),
		}
	}
	return &res, nil
}

// isTransientStatus reports whether an HTTP status is worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
