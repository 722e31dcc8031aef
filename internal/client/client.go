// Package client dispatches API calls on behalf of a signed-in (or anonymous) caller.
//
// Every call decides whether it needs an ID token from the route policy table, fetches a
// freshly refreshed token from the session provider when it does, and turns every non-2xx
// response into an *APIError.
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
	"strings"
	"time"

	"mindsage/internal/policy"
)

// sessionWait is how long a call that needs a token waits once for the session to appear.
const sessionWait = 100 * time.Millisecond

const maxBody = 8 << 20

// ErrResponseTooLarge is returned when a successful response exceeds the body limit.
var ErrResponseTooLarge = errors.New("response body too large")

// SessionProvider hands out ID tokens for the current session.
type SessionProvider interface {
	SignedIn() bool
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// StaticSession is a SessionProvider with a fixed token. An empty token means signed out.
type StaticSession string

func (s StaticSession) SignedIn() bool { return s != "" }

func (s StaticSession) IDToken(context.Context, bool) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no signed-in session")
	}
	return string(s), nil
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Session    SessionProvider
	Policy     *policy.Table
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL string
	session SessionProvider
	policy  *policy.Table
	http    *http.Client
	logger  *slog.Logger
	wait    time.Duration
	maxBody int64
}

// New creates a client. A nil Policy uses policy.ClientTable and a nil Session means
// the caller is anonymous.
func New(cfg Config) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		session: cfg.Session,
		policy:  cfg.Policy,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
		wait:    sessionWait,
		maxBody: maxBody,
	}
	if c.session == nil {
		c.session = StaticSession("")
	}
	if c.policy == nil {
		c.policy = policy.ClientTable()
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type callOptions struct {
	token       *string
	requireAuth *bool
}

// Option adjusts a single call.
type Option func(*callOptions)

// WithToken sends tok instead of asking the session. An empty tok explicitly asks for no
// token on calls that do not require one.
func WithToken(tok string) Option {
	return func(o *callOptions) { o.token = &tok }
}

// WithoutToken is WithToken("").
func WithoutToken() Option {
	return WithToken("")
}

// RequireAuth overrides the policy decision for this call.
func RequireAuth(required bool) Option {
	return func(o *callOptions) { o.requireAuth = &required }
}

// RequiresAuth reports the policy decision for a call without sending it.
func (c *Client) RequiresAuth(method, path string) bool {
	return c.policy.RequiresAuth(method, path)
}

// Do sends one API call and returns the raw JSON result. A successful response with an
// empty or non-JSON body yields nil and no error.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, opts ...Option) (json.RawMessage, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	required := c.policy.RequiresAuth(method, path)
	if o.requireAuth != nil {
		required = *o.requireAuth
	}

	token := c.resolveToken(ctx, required, o.token)
	if required && token == "" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "Authentication required"}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	truncated := int64(len(raw)) > c.maxBody
	if truncated {
		raw = raw[:c.maxBody]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, raw)
	}
	if truncated {
		return nil, fmt.Errorf("%s %s: %w (limit %d bytes)", method, path, ErrResponseTooLarge, c.maxBody)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// resolveToken applies the token precedence: a non-empty override wins; a required call
// asks the session for a fresh token; an explicit empty override sends nothing; any other
// call tries the session and silently goes without on failure.
func (c *Client) resolveToken(ctx context.Context, required bool, override *string) string {
	if override != nil && *override != "" {
		return *override
	}

	if required {
		if !c.session.SignedIn() {
			c.awaitSession(ctx)
		}
		if !c.session.SignedIn() {
			return ""
		}
		tok, err := c.session.IDToken(ctx, true)
		if err != nil {
			c.logger.WarnContext(ctx, "could not obtain id token", "error", err)
			return ""
		}
		return tok
	}

	if override != nil {
		return ""
	}

	if !c.session.SignedIn() {
		return ""
	}
	tok, err := c.session.IDToken(ctx, true)
	if err != nil {
		c.logger.DebugContext(ctx, "optional id token unavailable", "error", err)
		return ""
	}
	return tok
}

func (c *Client) awaitSession(ctx context.Context) {
	t := time.NewTimer(c.wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Get sends a GET and decodes the result into T.
func Get[T any](ctx context.Context, c *Client, path string, opts ...Option) (T, error) {
	raw, err := c.Do(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

// Post sends a POST with a JSON body and decodes the result into T.
func Post[T any](ctx context.Context, c *Client, path string, body interface{}, opts ...Option) (T, error) {
	raw, err := c.Do(ctx, http.MethodPost, path, body, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

// Patch sends a PATCH with a JSON body and decodes the result into T.
func Patch[T any](ctx context.Context, c *Client, path string, body interface{}, opts ...Option) (T, error) {
	raw, err := c.Do(ctx, http.MethodPatch, path, body, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}

// Delete sends a DELETE and decodes the result into T.
func Delete[T any](ctx context.Context, c *Client, path string, opts ...Option) (T, error) {
	raw, err := c.Do(ctx, http.MethodDelete, path, nil, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](raw)
}
