package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/internal/server"
	"github.com/opencode-ai/walletperm/pkg/types"
)

// TestClient provides HTTP client utilities for testing
type TestClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewTestClient creates a new test HTTP client
func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// RequestOption configures HTTP requests
type RequestOption func(*http.Request)

// WithHeader adds a header to the request
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithQuery adds query parameters
func WithQuery(params map[string]string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
}

// Response wraps HTTP response with helpers
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON unmarshals response body into v
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns response body as string
func (r *Response) String() string {
	return string(r.Body)
}

// IsSuccess returns true if status code is 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs HTTP GET request
func (c *TestClient) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts...)
}

// Post performs HTTP POST request with JSON body
func (c *TestClient) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, opts...)
}

// do performs the actual HTTP request
func (c *TestClient) do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	fullURL := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// ---- walletperm helpers ----

// EnsureResult is the outcome of a long-polling ensure call.
type EnsureResult struct {
	Response *Response
	Err      error
}

// EnsureAsync posts args to /ensure/{kind} in the background. The call
// blocks on the server until the request is answered.
func (c *TestClient) EnsureAsync(ctx context.Context, kind string, args any) <-chan EnsureResult {
	ch := make(chan EnsureResult, 1)
	go func() {
		resp, err := c.Post(ctx, "/ensure/"+kind, args)
		ch <- EnsureResult{Response: resp, Err: err}
	}()
	return ch
}

// Pending lists the pending requests.
func (c *TestClient) Pending(ctx context.Context) ([]permission.PendingRequest, error) {
	resp, err := c.Get(ctx, "/permission/pending")
	if err != nil {
		return nil, err
	}
	var pending []permission.PendingRequest
	if err := resp.JSON(&pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// WaitPending polls until requestID is pending with at least waiters callers.
func (c *TestClient) WaitPending(ctx context.Context, requestID string, waiters int, timeout time.Duration) (*permission.PendingRequest, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pending, err := c.Pending(ctx)
		if err == nil {
			for _, p := range pending {
				if p.RequestID == requestID && p.Waiters >= waiters {
					return &p, nil
				}
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil, fmt.Errorf("request %s not pending after %v", requestID, timeout)
}

// Grant grants a single request.
func (c *TestClient) Grant(ctx context.Context, requestID string, opts permission.GrantOptions) (*Response, error) {
	return c.Post(ctx, "/permission/grant", server.GrantRequest{RequestID: requestID, GrantOptions: opts})
}

// Deny denies a single request.
func (c *TestClient) Deny(ctx context.Context, requestID string) (*Response, error) {
	return c.Post(ctx, "/permission/deny", server.DenyRequest{RequestID: requestID})
}

// Tokens lists tokens of type t for originator.
func (c *TestClient) Tokens(ctx context.Context, t types.PermissionType, originator string) ([]*types.PermissionToken, error) {
	resp, err := c.Get(ctx, "/tokens/", WithQuery(map[string]string{"type": string(t), "originator": originator}))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("list tokens: %d %s", resp.StatusCode, resp.String())
	}
	var tokens []*types.PermissionToken
	if err := resp.JSON(&tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// ErrorCode extracts the error code of an error response.
func (r *Response) ErrorCode() string {
	var body server.ErrorResponse
	if err := r.JSON(&body); err != nil {
		return ""
	}
	return body.Error.Code
}
