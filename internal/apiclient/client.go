// Package apiclient is the single chokepoint through which the console talks
// to the AlgoShield REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"algoshield.org/console/internal/config"
	"algoshield.org/console/internal/ids"
	"algoshield.org/console/internal/obs"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20

	headerRequestID = "X-Request-ID"
)

// TokenSource yields the persisted bearer token, or "" when signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Requester is the subset of Client used by screens and stores.
type Requester interface {
	Get(ctx context.Context, path string, out any) (Result, error)
	Post(ctx context.Context, path string, body, out any) (Result, error)
	Put(ctx context.Context, path string, body, out any) (Result, error)
	Delete(ctx context.Context, path string, out any) (Result, error)
}

// Result describes a successful response.
type Result struct {
	Status    int
	NoContent bool
	RequestID string
}

// Client issues JSON requests with bearer auth, per-attempt timeouts,
// error classification and retry of idempotent methods.
type Client struct {
	baseURL string
	timeout time.Duration
	retry   config.Retry
	http    *http.Client
	tokens  TokenSource
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ Requester = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithHTTPClient overrides the transport. Its cookie jar is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			cp.Jar = nil
			c.http = &cp
		}
	}
}

// WithSleep replaces the backoff sleeper (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// New builds a client. tokens may be nil for public-only use.
func New(cfg config.API, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		http:    &http.Client{},
		tokens:  tokens,
		sleep:   sleepContext,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, path string, out any) (Result, error) {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) (Result, error) {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) (Result, error) {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) (Result, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

type requestIDKey struct{}

// WithRequestID makes every request issued under ctx carry id instead of a
// freshly minted one, so a multi-call operation shares one X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Do runs one logical request. out may be nil when the body is not needed.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (Result, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return Result{}, fmt.Errorf("encode request body: %w", err)
		}
	}

	attempts := 1
	if idempotent(method) && c.retry.MaxAttempts > 1 {
		attempts = c.retry.MaxAttempts
	}
	rid := RequestIDFromContext(ctx)
	if rid == "" {
		rid = ids.New()
	}

	for n := 1; ; n++ {
		start := time.Now()
		res, err := c.attempt(ctx, method, path, payload, out, rid)
		obs.ObserveAPICall(method, path, outcome(err), time.Since(start))
		if err == nil {
			return res, nil
		}
		if n >= attempts || !retryable(err) {
			return res, err
		}
		delay := backoff(c.retry, n)
		obs.Warn("api request retry", map[string]any{
			"request_id": rid,
			"method":     method,
			"path":       path,
			"attempt":    n,
			"delay_ms":   delay.Milliseconds(),
			"error":      err.Error(),
		})
		if serr := c.sleep(ctx, delay); serr != nil {
			return res, serr
		}
	}
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any, rid string) (Result, error) {
	token := ""
	if c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("read bearer token: %w", err)
		}
		token = t
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, rid)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, c.transportError(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Result{}, c.transportError(ctx, attemptCtx, err)
	}
	if len(raw) > maxBodyBytes {
		return Result{Status: resp.StatusCode, RequestID: rid}, &Error{
			Kind:    KindUnexpectedFormat,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Response too large: more than %d bytes", maxBodyBytes),
			Err:     ErrResponseTooLarge,
		}
	}

	res := Result{Status: resp.StatusCode, RequestID: rid}
	err = decode(resp, raw, out, &res)
	return res, err
}

// transportError separates caller cancellation, our own deadline and
// everything else (DNS, refused connection, reset).
func (c *Client) transportError(parent, attemptCtx context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return timeoutError(err)
	}
	return connectivityError(c.baseURL, err)
}

func decode(resp *http.Response, raw []byte, out any, res *Result) error {
	contentType := resp.Header.Get("Content-Type")
	isJSON := strings.Contains(contentType, "application/json")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(resp.StatusCode, isJSON, raw)
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		res.NoContent = true
		return nil
	}
	if !isJSON && !json.Valid(raw) {
		ct := contentType
		if ct == "" {
			ct = "unknown format"
		}
		return &Error{
			Kind:    KindUnexpectedFormat,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Expected JSON response but received: %s", ct),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{
			Kind:    KindUnexpectedFormat,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Invalid JSON response: %v", err),
			Err:     err,
		}
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
