package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// refreshSkew renews tokens slightly before they expire.
const refreshSkew = time.Minute

// Credentials is a signed-in session as issued by the provider's token endpoint.
type Credentials struct {
	AccessToken  string    `yaml:"access_token" json:"access_token"`
	RefreshToken string    `yaml:"refresh_token" json:"refresh_token"`
	ExpiresAt    time.Time `yaml:"expires_at" json:"-"`
	UserID       string    `yaml:"user_id" json:"-"`
	Email        string    `yaml:"email" json:"-"`
}

// ObserverConfig configures the client-side session observer.
type ObserverConfig struct {
	URL    string
	APIKey string
	Client *http.Client
	Now    func() time.Time
}

// Observer is the process-wide holder of the current session. Request code only reads
// from it; the observer itself replaces the session on sign-in, refresh and sign-out.
type Observer struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time

	mu        sync.Mutex
	creds     *Credentials
	listeners []func(*Credentials)

	// refreshMu serializes refresh-token grants; providers rotate refresh tokens, so
	// each one may be spent only once.
	refreshMu sync.Mutex
}

// NewObserver creates an observer with no current session.
func NewObserver(cfg ObserverConfig) *Observer {
	o := &Observer{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  cfg.Client,
		now:     cfg.Now,
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 10 * time.Second}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// OnChange registers fn to be called after every session change; nil means signed out.
func (o *Observer) OnChange(fn func(*Credentials)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// SignedIn reports whether a session is currently visible.
func (o *Observer) SignedIn() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.creds != nil
}

// Credentials returns a copy of the current session.
func (o *Observer) Credentials() (Credentials, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.creds == nil {
		return Credentials{}, false
	}
	return *o.creds, true
}

// Restore installs a previously saved session.
func (o *Observer) Restore(c Credentials) {
	o.set(&c)
}

// SignOut drops the current session.
func (o *Observer) SignOut() {
	o.set(nil)
}

// SignIn exchanges an email/password pair for a session.
func (o *Observer) SignIn(ctx context.Context, email, password string) error {
	creds, err := o.grant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	o.set(creds)
	return nil
}

// IDToken returns the current session's ID token. With forceRefresh, or when the token is
// about to expire, the session is renewed through the refresh-token grant first.
func (o *Observer) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	o.mu.Lock()
	current := o.creds
	o.mu.Unlock()

	if current == nil {
		return "", newError(CodeNoSession, "no signed-in session", nil)
	}
	if !forceRefresh && o.now().Add(refreshSkew).Before(current.ExpiresAt) {
		return current.AccessToken, nil
	}

	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	o.mu.Lock()
	latest := o.creds
	o.mu.Unlock()
	if latest == nil {
		return "", newError(CodeNoSession, "no signed-in session", nil)
	}
	// Another caller renewed the session while this one waited.
	if latest != current && o.now().Add(refreshSkew).Before(latest.ExpiresAt) {
		return latest.AccessToken, nil
	}

	if latest.RefreshToken == "" {
		return "", newError(CodeInvalidCredential, "session has no refresh token", nil)
	}

	renewed, err := o.grant(ctx, "refresh_token", map[string]string{
		"refresh_token": latest.RefreshToken,
	})
	if err != nil {
		return "", err
	}
	o.set(renewed)
	return renewed.AccessToken, nil
}

func (o *Observer) set(c *Credentials) {
	o.mu.Lock()
	o.creds = c
	listeners := append([]func(*Credentials){}, o.listeners...)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type tokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

func (o *Observer) grant(ctx context.Context, grantType string, body map[string]string) (*Credentials, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	endpoint := o.baseURL + "/auth/v1/token?grant_type=" + grantType
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("apikey", o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		_ = json.Unmarshal(raw, &te)
		msg := te.ErrorDescription
		if msg == "" {
			msg = te.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, newError(CodeInvalidCredential, msg, nil)
		}
		return nil, fmt.Errorf("token endpoint: %s", msg)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, newError(CodeInvalidCredential, "token endpoint returned no access token", nil)
	}

	expires := o.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	if tr.ExpiresAt > 0 {
		expires = time.Unix(tr.ExpiresAt, 0)
	}
	return &Credentials{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expires,
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
	}, nil
}

// LoadCredentials reads a session saved by SaveCredentials.
func LoadCredentials(path string) (Credentials, error) {
	var c Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read session file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse session file: %w", err)
	}
	return c, nil
}

// SaveCredentials writes the session to path, readable by the owner only.
// A nil session removes the file.
func SaveCredentials(path string, c *Credentials) error {
	if c == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
