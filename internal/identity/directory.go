package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UserRecord is the provider's view of an account.
type UserRecord struct {
	UID         string
	Email       string
	DisplayName string
	Disabled    bool
}

// UserDirectory looks up accounts by subject id.
type UserDirectory interface {
	GetUser(ctx context.Context, uid string) (*UserRecord, error)
}

// RESTDirectory reads user records from the provider's admin API.
type RESTDirectory struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewRESTDirectory creates a directory client. serviceKey must be an admin key.
func NewRESTDirectory(baseURL, serviceKey string, client *http.Client) *RESTDirectory {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RESTDirectory{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     client,
	}
}

type adminUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	BannedUntil  string                 `json:"banned_until,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// GetUser fetches GET {base}/auth/v1/admin/users/{uid}.
func (d *RESTDirectory) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	if uid == "" {
		return nil, newError(CodeArgumentError, "uid must be a non-empty string", nil)
	}

	endpoint := d.baseURL + "/auth/v1/admin/users/" + url.PathEscape(uid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build user lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.serviceKey)
	req.Header.Set("apikey", d.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, newError(CodeUserNotFound, "no user record for uid "+uid, nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("user lookup failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var u adminUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}

	rec := &UserRecord{
		UID:      u.ID,
		Email:    u.Email,
		Disabled: bannedNow(u.BannedUntil),
	}
	for _, key := range []string{"full_name", "name", "display_name"} {
		if s, ok := u.UserMetadata[key].(string); ok && s != "" {
			rec.DisplayName = s
			break
		}
	}
	if rec.UID == "" {
		rec.UID = uid
	}
	return rec, nil
}

func bannedNow(until string) bool {
	if until == "" || until == "none" {
		return false
	}
	t, err := time.Parse(time.RFC3339, until)
	if err != nil {
		return false
	}
	return time.Now().Before(t)
}
