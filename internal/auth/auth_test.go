package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindsage/internal/identity"
	"mindsage/internal/logger"
	"mindsage/internal/policy"
)

// Mock verifier for testing
type mockVerifier struct {
	verifyFunc func(ctx context.Context, token string) (*identity.Token, error)
	calls      int
}

func (m *mockVerifier) VerifyIDToken(ctx context.Context, token string) (*identity.Token, error) {
	m.calls++
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, token)
	}
	return nil, &identity.Error{Code: identity.CodeInvalidToken, Message: "invalid"}
}

type mockDirectory struct {
	getUserFunc func(ctx context.Context, uid string) (*identity.UserRecord, error)
}

func (m *mockDirectory) GetUser(ctx context.Context, uid string) (*identity.UserRecord, error) {
	return m.getUserFunc(ctx, uid)
}

// tokens maps bearer tokens to subjects; "expired" fails like an expired JWT.
func tokenVerifier() *mockVerifier {
	return &mockVerifier{
		verifyFunc: func(_ context.Context, token string) (*identity.Token, error) {
			switch token {
			case "user-token":
				return &identity.Token{UID: "user-1", Email: "user@example.com"}, nil
			case "admin-token":
				return &identity.Token{UID: "admin-1", Email: "admin@example.com", Name: "Admin"}, nil
			case "expired":
				return nil, &identity.Error{Code: identity.CodeTokenExpired, Message: "id token has expired", Err: jwt.ErrTokenExpired}
			case "":
				return nil, &identity.Error{Code: identity.CodeArgumentError, Message: "id token must be a non-empty string"}
			default:
				return nil, &identity.Error{Code: identity.CodeInvalidToken, Message: "id token verification failed"}
			}
		},
	}
}

func newGate(v identity.Verifier, dir identity.UserDirectory, onDecision func(policy.Access, string)) *Gate {
	return NewGate(Config{
		Verifier:   v,
		Directory:  dir,
		Roles:      NewAllowList("admin-1"),
		Logger:     logger.Discard(),
		OnDecision: onDecision,
	})
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"Bearer":           "",
		"Bearer ":          "",
		"Basic abc":        "",
		"Bearer abc":       "abc",
		"bearer abc":       "abc",
		"  Bearer   abc  ": "abc",
		"Token abc":        "",
		"Bearerabc":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, BearerToken(in), "header %q", in)
	}
}

func TestCurrentUser(t *testing.T) {
	g := newGate(tokenVerifier(), nil, nil)
	ctx := context.Background()

	assert.Nil(t, g.CurrentUser(ctx, ""))
	assert.Nil(t, g.CurrentUser(ctx, "Basic xyz"))
	assert.Nil(t, g.CurrentUser(ctx, "Bearer expired"))
	assert.Nil(t, g.CurrentUser(ctx, "Bearer garbage"))

	u := g.CurrentUser(ctx, "Bearer user-token")
	require.NotNil(t, u)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, "user@example.com", u.Email)
	assert.Nil(t, u.Name)
	assert.Equal(t, RoleUser, u.Role)

	a := g.CurrentUser(ctx, "Bearer admin-token")
	require.NotNil(t, a)
	assert.Equal(t, RoleAdmin, a.Role)
	assert.Equal(t, "Admin", a.DisplayName())
}

func TestCurrentUser_NoVerifierCallWithoutHeader(t *testing.T) {
	v := tokenVerifier()
	g := newGate(v, nil, nil)
	assert.Nil(t, g.CurrentUser(context.Background(), ""))
	assert.Equal(t, 0, v.calls)
}

func TestCurrentUser_Directory(t *testing.T) {
	dir := &mockDirectory{
		getUserFunc: func(_ context.Context, uid string) (*identity.UserRecord, error) {
			switch uid {
			case "user-1":
				return &identity.UserRecord{UID: uid, Email: "primary@example.com", DisplayName: "Asha"}, nil
			case "admin-1":
				return &identity.UserRecord{UID: uid, Disabled: true}, nil
			}
			return nil, errors.New("boom")
		},
	}
	g := newGate(tokenVerifier(), dir, nil)

	u := g.CurrentUser(context.Background(), "Bearer user-token")
	require.NotNil(t, u)
	assert.Equal(t, "primary@example.com", u.Email)
	assert.Equal(t, "Asha", u.DisplayName())

	assert.Nil(t, g.CurrentUser(context.Background(), "Bearer admin-token"), "disabled accounts are rejected")
}

func TestCurrentUser_DirectoryFailureRejects(t *testing.T) {
	dir := &mockDirectory{
		getUserFunc: func(context.Context, string) (*identity.UserRecord, error) {
			return nil, &identity.Error{Code: identity.CodeUserNotFound, Message: "gone"}
		},
	}
	g := newGate(tokenVerifier(), dir, nil)
	assert.Nil(t, g.CurrentUser(context.Background(), "Bearer user-token"))
}

func TestIsAdmin(t *testing.T) {
	g := newGate(tokenVerifier(), nil, nil)
	ctx := context.Background()

	assert.True(t, g.IsAdmin(ctx, "Bearer admin-token"))
	assert.False(t, g.IsAdmin(ctx, "Bearer user-token"))
	assert.False(t, g.IsAdmin(ctx, ""))
	assert.False(t, g.IsAdmin(ctx, "Bearer expired"))
}

func TestAllowList(t *testing.T) {
	a := NewAllowList(" a ", "", "b")
	assert.Equal(t, RoleAdmin, a.RoleFor("a"))
	assert.Equal(t, RoleAdmin, a.RoleFor("b"))
	assert.Equal(t, RoleUser, a.RoleFor("c"))
	assert.Len(t, a, 2)
}

type decision struct {
	access  policy.Access
	outcome string
}

func setupRouter(g *Gate) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)
	reached := 0

	r := gin.New()
	r.Use(g.Enforce(policy.ServerTable()))
	handler := func(c *gin.Context) {
		reached++
		u := UserFrom(c)
		resp := gin.H{"user": nil}
		if u != nil {
			resp["user"] = u.ID
		}
		c.JSON(http.StatusOK, resp)
	}
	r.GET("/api/community", handler)
	r.POST("/api/community", handler)
	r.PATCH("/api/community/:id/hide", handler)
	r.GET("/api/me", handler)
	r.POST("/api/therapists", handler)
	return r, &reached
}

func TestEnforce(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		auth        string
		wantStatus  int
		wantError   string
		wantUser    interface{}
		wantReached bool
		wantOutcome string
	}{
		{"public anonymous", http.MethodGet, "/api/community", "", 200, "", nil, true, OutcomeAnonymous},
		{"public with user", http.MethodGet, "/api/community", "Bearer user-token", 200, "", "user-1", true, OutcomeAllowed},
		{"public with bad token", http.MethodGet, "/api/community", "Bearer expired", 200, "", nil, true, OutcomeAnonymous},
		{"auth missing", http.MethodGet, "/api/me", "", 401, "Unauthorized", nil, false, OutcomeUnauthorized},
		{"auth expired", http.MethodGet, "/api/me", "Bearer expired", 401, "Unauthorized", nil, false, OutcomeUnauthorized},
		{"auth ok", http.MethodGet, "/api/me", "Bearer user-token", 200, "", "user-1", true, OutcomeAllowed},
		{"create post anonymous", http.MethodPost, "/api/community", "", 401, "Unauthorized", nil, false, OutcomeUnauthorized},
		{"admin missing", http.MethodPatch, "/api/community/p1/hide", "", 401, "Unauthorized - Admin access required", nil, false, OutcomeUnauthorized},
		{"admin as user", http.MethodPatch, "/api/community/p1/hide", "Bearer user-token", 401, "Unauthorized - Admin access required", nil, false, OutcomeForbidden},
		{"admin ok", http.MethodPatch, "/api/community/p1/hide", "Bearer admin-token", 200, "", "admin-1", true, OutcomeAllowed},
		{"therapist create as user", http.MethodPost, "/api/therapists", "Bearer user-token", 401, "Unauthorized - Admin access required", nil, false, OutcomeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decisions []decision
			g := newGate(tokenVerifier(), nil, func(a policy.Access, o string) {
				decisions = append(decisions, decision{a, o})
			})
			r, reached := setupRouter(g)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantReached, *reached > 0, "handler reached")

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			} else {
				assert.Equal(t, tt.wantUser, body["user"])
			}

			require.Len(t, decisions, 1)
			assert.Equal(t, tt.wantOutcome, decisions[0].outcome)
		})
	}
}

func TestAuthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := newGate(tokenVerifier(), nil, nil)
	r := gin.New()
	r.GET("/api/auth-check", g.AuthCheck)

	do := func(header string) (int, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth-check", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	code, body := do("")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Missing authorization header", body["error"])
	assert.NotContains(t, body, "code")

	code, body = do("Bearer expired")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, identity.CodeTokenExpired, body["code"])

	for _, header := range []string{"Basic abc", "Bearer", "token-without-scheme"} {
		code, body = do(header)
		assert.Equal(t, http.StatusUnauthorized, code, header)
		assert.Equal(t, "Missing authorization header", body["error"], header)
		assert.NotContains(t, body, "code", header)
	}

	code, body = do("Bearer user-token")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "user-1", body["uid"])
	assert.Equal(t, "user@example.com", body["email"])
	assert.Equal(t, "Token verified successfully", body["message"])
}

func TestAuthCheck_RealVerifier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v, err := identity.NewJWTVerifier(identity.VerifierConfig{Secret: "s3cret"})
	require.NoError(t, err)
	g := newGate(v, nil, nil)
	r := gin.New()
	r.GET("/api/auth-check", g.AuthCheck)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth-check", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "auth/id-token-expired", body["code"])
}
