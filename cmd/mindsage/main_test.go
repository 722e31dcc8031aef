package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindsage/internal/auth"
	"mindsage/internal/docstore"
	"mindsage/internal/identity"
	"mindsage/internal/logger"
	"mindsage/internal/server"
)

const testSecret = "cli-test-secret"

func sign(t *testing.T, uid, email string) string {
	t.Helper()
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   uid,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

type cli struct {
	t           *testing.T
	apiURL      string
	identityURL string
	sessionFile string
	stdin       string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := identity.NewJWTVerifier(identity.VerifierConfig{Secret: testSecret})
	require.NoError(t, err)

	router := server.NewRouter(server.Deps{
		Logger: logger.Discard(),
		Gate: auth.NewGate(auth.Config{
			Verifier: verifier,
			Roles:    auth.NewAllowList("admin-1"),
			Logger:   logger.Discard(),
		}),
		Store: docstore.NewMemory(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &cli{
		t:           t,
		apiURL:      srv.URL,
		sessionFile: filepath.Join(t.TempDir(), "session.yaml"),
	}
}

// run executes one command line and returns what it printed.
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(c.stdin))
	cmd.SetArgs(append([]string{
		"--api", c.apiURL,
		"--identity-url", c.identityURL,
		"--session-file", c.sessionFile,
		"--consul", "",
		"--token", "",
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommunityFlow(t *testing.T) {
	c := newCLI(t)
	user := sign(t, "user-1", "user@example.com")
	admin := sign(t, "admin-1", "admin@example.com")

	out, err := c.run("--token", user, "community", "post",
		"--content", "Breathing exercises got me through the week.",
		"--tag", "Anxiety", "--anonymous")
	require.NoError(t, err)

	var created struct {
		ID          string `json:"id"`
		IsApproved  bool   `json:"isApproved"`
		IsAnonymous bool   `json:"isAnonymous"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.NotEmpty(t, created.ID)
	assert.False(t, created.IsApproved)
	assert.True(t, created.IsAnonymous)

	_, err = c.run("--token", user, "community", "approve", created.ID)
	require.Error(t, err)
	assert.Contains(t, describe(err), "Admin access required")

	_, err = c.run("--token", admin, "community", "approve", created.ID)
	require.NoError(t, err)

	out, err = c.run("-o", "yaml", "community", "list", "--tag", "Anxiety")
	require.NoError(t, err)
	assert.Contains(t, out, "tag: Anxiety")
	assert.Contains(t, out, "author: null")

	out, err = c.run("--token", user, "community", "react", created.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"reactionsCount": 1`)
}

func TestProtectedCommandWithoutSession(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("community", "react", "some-post")
	require.Error(t, err)
	msg := describe(err)
	assert.Contains(t, msg, "Authentication required")
	assert.Contains(t, msg, "mindsage login")
}

// identityServer answers the password and refresh-token grants for user-7, counting refreshes.
func identityServer(t *testing.T, refreshes *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "correct horse" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
		case "refresh_token":
			*refreshes++
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  sign(t, "user-7", "seven@example.com"),
			"refresh_token": "refresh-7",
			"expires_in":    3600,
			"user":          map[string]string{"id": "user-7", "email": "seven@example.com"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginAndSavedSession(t *testing.T) {
	c := newCLI(t)
	var refreshes int
	c.identityURL = identityServer(t, &refreshes).URL

	c.stdin = "wrong\n"
	_, err := c.run("login", "--email", "seven@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid login credentials")

	c.stdin = "correct horse\n"
	out, err := c.run("login", "--email", "seven@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as seven@example.com (user-7)\n", out)

	saved, err := identity.LoadCredentials(c.sessionFile)
	require.NoError(t, err)
	assert.Equal(t, "refresh-7", saved.RefreshToken)

	// a new process picks the session up from the file
	out, err = c.run("me")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "user-7"`)
	assert.Contains(t, out, `"avatarId": "avatar-1"`)

	out, err = c.run("auth-check")
	require.NoError(t, err)
	assert.Contains(t, out, `"uid": "user-7"`)
	assert.Equal(t, 2, refreshes, "protected calls force a fresh token")

	out, err = c.run("logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out\n", out)
	_, statErr := os.Stat(c.sessionFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPrefs(t *testing.T) {
	c := newCLI(t)
	user := sign(t, "user-1", "user@example.com")

	_, err := c.run("--token", user, "prefs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")

	out, err := c.run("--token", user, "prefs", "--mode", "gita", "--avatar", "avatar-3")
	require.NoError(t, err)
	assert.Contains(t, out, `"preferredMode": "gita"`)
	assert.Contains(t, out, `"avatarId": "avatar-3"`)

	_, err = c.run("--token", user, "prefs", "--mode", "tarot")
	require.Error(t, err)
	assert.Contains(t, describe(err), "Invalid input")
}

func TestTherapistCreateFromYAML(t *testing.T) {
	c := newCLI(t)
	admin := sign(t, "admin-1", "admin@example.com")

	doc := filepath.Join(t.TempDir(), "therapist.yaml")
	require.NoError(t, os.WriteFile(doc, []byte(`
name: Dr. Asha Rao
bio: Works with adults facing anxiety and burnout.
credentials: [PhD, Licensed Psychologist]
specialties: [Anxiety]
approach: Cognitive behavioural therapy with mindfulness.
languages: [English, Hindi]
`), 0o600))

	out, err := c.run("--token", admin, "therapists", "create", "-f", doc)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Dr. Asha Rao"`)

	out, err = c.run("therapists", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Dr. Asha Rao")
	assert.NotContains(t, out, "isActive")
}

func TestUnknownOutputFormat(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("-o", "xml", "avatars")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
