// Package client is a Go client for the walletperm HTTP API.
package client

import (
	"bufio"
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

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/internal/server"
	"github.com/opencode-ai/walletperm/pkg/types"
)

const (
	// MaxRetries bounds reconnect attempts when the server is unreachable.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = 200 * time.Millisecond
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 5 * time.Second
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsDenied reports whether err is the server reporting a user denial.
func IsDenied(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == server.ErrCodePermissionDenied
}

// Client talks to a walletperm server.
type Client struct {
	baseURL string
	http    *http.Client
	retries uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how many times an unreachable server is retried.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		retries: MaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.RandomizationFactor = 0.5
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)
}

// isDialError reports whether the request never reached the server, which
// makes it safe to resend even for POSTs.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// send performs one request, retrying only when the connection could not be
// established.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err = c.http.Do(req)
		if err != nil {
			if isDialError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(op, c.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// do sends a request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var body server.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: resp.Status}
	}
	return &APIError{
		Status:  resp.StatusCode,
		Code:    body.Error.Code,
		Message: body.Error.Message,
		Details: body.Error.Details,
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Config returns the server's effective permission configuration.
func (c *Client) Config(ctx context.Context) (*server.ConfigResponse, error) {
	var out server.ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pending lists the requests waiting for a grant or denial.
func (c *Client) Pending(ctx context.Context) ([]permission.PendingRequest, error) {
	var out []permission.PendingRequest
	if err := c.do(ctx, http.MethodGet, "/permission/pending", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Grant approves a single pending request.
func (c *Client) Grant(ctx context.Context, requestID string, opts permission.GrantOptions) error {
	return c.do(ctx, http.MethodPost, "/permission/grant", server.GrantRequest{RequestID: requestID, GrantOptions: opts}, nil)
}

// Deny rejects a single pending request.
func (c *Client) Deny(ctx context.Context, requestID string) error {
	return c.do(ctx, http.MethodPost, "/permission/deny", server.DenyRequest{RequestID: requestID}, nil)
}

// GrantGrouped approves the granted subset of a grouped request.
func (c *Client) GrantGrouped(ctx context.Context, requestID string, granted types.GroupedPermissions, expiry int64) error {
	return c.do(ctx, http.MethodPost, "/grouped/grant", server.GroupedGrantRequest{RequestID: requestID, Granted: granted, Expiry: expiry}, nil)
}

// DenyGrouped rejects a grouped request.
func (c *Client) DenyGrouped(ctx context.Context, requestID string) error {
	return c.do(ctx, http.MethodPost, "/grouped/deny", server.DenyRequest{RequestID: requestID}, nil)
}

// Tokens lists permission tokens of type t, optionally for one originator.
func (c *Client) Tokens(ctx context.Context, t types.PermissionType, originator string) ([]*types.PermissionToken, error) {
	q := url.Values{"type": {string(t)}}
	if originator != "" {
		q.Set("originator", originator)
	}
	var out []*types.PermissionToken
	if err := c.do(ctx, http.MethodGet, "/tokens/?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Revoke spends the token of type t at outpoint.
func (c *Client) Revoke(ctx context.Context, t types.PermissionType, outpoint string) error {
	return c.do(ctx, http.MethodPost, "/tokens/revoke", server.RevokeRequest{Type: t, Outpoint: outpoint}, nil)
}

// Spending returns the satoshis originator spent this calendar month.
func (c *Client) Spending(ctx context.Context, originator string) (uint64, error) {
	var out server.SpendingResponse
	if err := c.do(ctx, http.MethodGet, "/spending?"+url.Values{"originator": {originator}}.Encode(), nil, &out); err != nil {
		return 0, err
	}
	return out.Spent, nil
}

func (c *Client) ensure(ctx context.Context, path string, args any) (bool, error) {
	var out server.EnsureResponse
	if err := c.do(ctx, http.MethodPost, path, args, &out); err != nil {
		return false, err
	}
	return out.Allowed, nil
}

// EnsureProtocol blocks until the protocol permission is confirmed or refused.
func (c *Client) EnsureProtocol(ctx context.Context, args permission.ProtocolArgs) (bool, error) {
	return c.ensure(ctx, "/ensure/protocol", args)
}

// EnsureBasket blocks until basket access is confirmed or refused.
func (c *Client) EnsureBasket(ctx context.Context, args permission.BasketArgs) (bool, error) {
	return c.ensure(ctx, "/ensure/basket", args)
}

// EnsureCertificate blocks until certificate access is confirmed or refused.
func (c *Client) EnsureCertificate(ctx context.Context, args permission.CertificateArgs) (bool, error) {
	return c.ensure(ctx, "/ensure/certificate", args)
}

// EnsureSpending blocks until the spend is authorized or refused.
func (c *Client) EnsureSpending(ctx context.Context, args permission.SpendingArgs) (bool, error) {
	return c.ensure(ctx, "/ensure/spending", args)
}

// EnsureLabel blocks until label access is confirmed or refused.
func (c *Client) EnsureLabel(ctx context.Context, args permission.LabelArgs) (bool, error) {
	return c.ensure(ctx, "/ensure/label", args)
}

// EnsureGrouped blocks until a grouped request is answered.
func (c *Client) EnsureGrouped(ctx context.Context, req types.GroupedPermissionRequest) (bool, error) {
	return c.ensure(ctx, "/ensure/grouped", req)
}

// Event is one message from the /event stream. Data is left encoded so the
// caller can decode it by Type.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Events subscribes to the server's event stream. The channel closes when
// ctx is done or the server ends the stream.
func (c *Client) Events(ctx context.Context) (<-chan Event, error) {
	resp, err := c.send(ctx, http.MethodGet, "/event", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var evt Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
