package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"golang.org/x/oauth2"
)

// Client talks to the attendance API on behalf of one signed-in user.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries int
	backoff    time.Duration
}

type Option func(*options)

type options struct {
	base       *http.Client
	maxRetries int
	backoff    time.Duration
}

// WithHTTPClient sets the transport used beneath token injection.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.base = h }
}

// WithRetries bounds the retries of idempotent reads. Writes are never retried.
func WithRetries(n int, initial time.Duration) Option {
	return func(o *options) {
		o.maxRetries = max(n, 0)
		o.backoff = initial
	}
}

// New returns a client that authenticates every request with accessToken.
func New(baseURL, accessToken string, opts ...Option) *Client {
	o := options{
		base:       &http.Client{Timeout: 15 * time.Second},
		maxRetries: 2,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.base)
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = o.base.Timeout

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       httpClient,
		maxRetries: o.maxRetries,
		backoff:    o.backoff,
	}
}

// APIError is a rejection reported by the API. It unwraps to the matching
// domain error when the response code names one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attendance API error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return response.ErrorFromCode(e.Code)
}

// UserMessage is the server's human-readable explanation.
func (e *APIError) UserMessage() string {
	return e.Message
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Data    json.RawMessage       `json:"data,omitempty"`
	Error   *response.ErrorDetail `json:"error,omitempty"`
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.backoff
	policy.MaxElapsedTime = 0

	op := func() error {
		retry, err := c.do(ctx, http.MethodGet, path, nil, out)
		if err != nil && !retry {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.DebugContext(ctx, "retrying attendance API read", "path", path, "wait", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	return backoff.RetryNotify(op, b, notify)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, body, out)
	return err
}

// do performs one request and reports whether a failure is worth retrying.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode >= http.StatusInternalServerError, fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: response.CodeInternal, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return retry, apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s %s data: %w", method, path, err)
	}
	return false, nil
}

func escape(id string) string {
	return url.PathEscape(id)
}
