package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":   "user-1",
		"email": "user@example.com",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"user_metadata": map[string]interface{}{
			"full_name": "Asha",
		},
	}
}

func TestJWTVerifier_HS256(t *testing.T) {
	v, err := NewJWTVerifier(VerifierConfig{Secret: testSecret})
	require.NoError(t, err)

	tok, err := v.VerifyIDToken(context.Background(), signHS256(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", tok.UID)
	assert.Equal(t, "user@example.com", tok.Email)
	assert.Equal(t, "Asha", tok.Name)
	assert.False(t, tok.ExpiresAt.IsZero())
}

func TestJWTVerifier_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewJWTVerifier(VerifierConfig{PublicKeyPEM: string(pubPEM), Issuer: "https://id.example.com"})
	require.NoError(t, err)

	claims := validClaims()
	claims["iss"] = "https://id.example.com"
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	tok, err := v.VerifyIDToken(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", tok.UID)

	claims["iss"] = "https://elsewhere.example.com"
	signed, err = jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	_, err = v.VerifyIDToken(context.Background(), signed)
	assert.Equal(t, CodeInvalidToken, ErrorCode(err))
}

func TestJWTVerifier_ErrorCodes(t *testing.T) {
	v, err := NewJWTVerifier(VerifierConfig{Secret: testSecret})
	require.NoError(t, err)

	expired := validClaims()
	expired["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noSubject := validClaims()
	delete(noSubject, "sub")

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("other"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"empty", "", CodeArgumentError},
		{"malformed", "not-a-jwt", CodeArgumentError},
		{"expired", signHS256(t, expired), CodeTokenExpired},
		{"wrong signature", wrongKey, CodeInvalidToken},
		{"no subject", signHS256(t, noSubject), CodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyIDToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
		})
	}
}

func TestNewJWTVerifier_Config(t *testing.T) {
	_, err := NewJWTVerifier(VerifierConfig{})
	assert.Error(t, err)

	_, err = NewJWTVerifier(VerifierConfig{Secret: "a", PublicKeyPEM: "b"})
	assert.Error(t, err)

	_, err = NewJWTVerifier(VerifierConfig{PublicKeyPEM: "garbage"})
	assert.Error(t, err)
}

func TestErrorCode_Unknown(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCode(assert.AnError))
	assert.False(t, IsCode(nil, CodeUnknown))
}

func TestRESTDirectory_GetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/admin/users/user-1":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":            "user-1",
				"email":         "user@example.com",
				"user_metadata": map[string]interface{}{"name": "Asha"},
			})
		case "/auth/v1/admin/users/banned":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":           "banned",
				"banned_until": time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := NewRESTDirectory(srv.URL, "service-key", srv.Client())

	rec, err := dir.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", rec.DisplayName)
	assert.False(t, rec.Disabled)

	rec, err = dir.GetUser(context.Background(), "banned")
	require.NoError(t, err)
	assert.True(t, rec.Disabled)

	_, err = dir.GetUser(context.Background(), "missing")
	assert.True(t, IsCode(err, CodeUserNotFound))

	_, err = dir.GetUser(context.Background(), "")
	assert.True(t, IsCode(err, CodeArgumentError))
}

func tokenServer(t *testing.T, refreshes *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","expires_in":3600,"user":{"id":"user-1","email":"user@example.com"}}`))
		case "refresh_token":
			atomic.AddInt32(refreshes, 1)
			assert.Equal(t, "refresh-1", body["refresh_token"])
			_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-1","expires_in":3600,"user":{"id":"user-1","email":"user@example.com"}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func TestObserver_SignInAndRefresh(t *testing.T) {
	var refreshes int32
	srv := tokenServer(t, &refreshes)
	defer srv.Close()

	obs := NewObserver(ObserverConfig{URL: srv.URL, APIKey: "anon", Client: srv.Client()})
	assert.False(t, obs.SignedIn())

	_, err := obs.IDToken(context.Background(), false)
	assert.True(t, IsCode(err, CodeNoSession))

	var changes int
	obs.OnChange(func(*Credentials) { changes++ })

	require.NoError(t, obs.SignIn(context.Background(), "user@example.com", "secret"))
	assert.True(t, obs.SignedIn())

	tok, err := obs.IDToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&refreshes))

	tok, err = obs.IDToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))

	obs.SignOut()
	assert.False(t, obs.SignedIn())
	assert.Equal(t, 3, changes)
}

func TestObserver_RefreshesNearExpiry(t *testing.T) {
	var refreshes int32
	srv := tokenServer(t, &refreshes)
	defer srv.Close()

	obs := NewObserver(ObserverConfig{URL: srv.URL, Client: srv.Client()})
	obs.Restore(Credentials{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(10 * time.Second),
	})

	tok, err := obs.IDToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
}

func TestObserver_ConcurrentRefreshSpendsTokenOnce(t *testing.T) {
	var (
		mu        sync.Mutex
		refreshes int
		current   = "refresh-1"
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if body["refresh_token"] != current {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token already used"}`))
			return
		}
		refreshes++
		current = fmt.Sprintf("refresh-%d", refreshes+1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  fmt.Sprintf("access-%d", refreshes+1),
			"refresh_token": current,
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	obs := NewObserver(ObserverConfig{URL: srv.URL, Client: srv.Client()})
	obs.Restore(Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	var wg sync.WaitGroup
	tokens := make([]string, 5)
	errs := make([]error, 5)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = obs.IDToken(context.Background(), true)
		}(i)
	}
	wg.Wait()

	for i := range tokens {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-2", tokens[i])
	}
	mu.Lock()
	assert.Equal(t, 1, refreshes)
	mu.Unlock()
}

func TestObserver_BadPassword(t *testing.T) {
	var refreshes int32
	srv := tokenServer(t, &refreshes)
	defer srv.Close()

	obs := NewObserver(ObserverConfig{URL: srv.URL, Client: srv.Client()})
	err := obs.SignIn(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidCredential))
	assert.True(t, strings.Contains(err.Error(), "Invalid login credentials"))
	assert.False(t, obs.SignedIn())
}

func TestCredentialsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	in := &Credentials{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
		UserID:       "user-1",
		Email:        "user@example.com",
	}
	require.NoError(t, SaveCredentials(path, in))

	out, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, *in, out)

	require.NoError(t, SaveCredentials(path, nil))
	_, err = LoadCredentials(path)
	assert.Error(t, err)

	assert.NoError(t, SaveCredentials(path, nil), "removing a missing file is not an error")
}
