// Package auth turns an inbound bearer credential into a verified session user and gates
// routes by the access level the server policy table assigns them.
package auth

import (
	"context"
	"log/slog"
	"strings"

	"mindsage/internal/identity"
	"mindsage/internal/policy"
)

// Decision outcomes reported to Config.OnDecision.
const (
	OutcomeAllowed      = "allowed"
	OutcomeAnonymous    = "anonymous"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
)

// Config wires a Gate. Directory and Roles are optional.
type Config struct {
	Verifier  identity.Verifier
	Directory identity.UserDirectory
	Roles     RoleResolver
	Logger    *slog.Logger
	// OnDecision observes every gating decision made by Enforce.
	OnDecision func(access policy.Access, outcome string)
}

// Gate verifies tokens and resolves session users. It holds no per-request state and
// never writes to any store.
type Gate struct {
	verifier   identity.Verifier
	directory  identity.UserDirectory
	roles      RoleResolver
	logger     *slog.Logger
	onDecision func(policy.Access, string)
}

func NewGate(cfg Config) *Gate {
	g := &Gate{
		verifier:   cfg.Verifier,
		directory:  cfg.Directory,
		roles:      cfg.Roles,
		logger:     cfg.Logger,
		onDecision: cfg.OnDecision,
	}
	if g.roles == nil {
		g.roles = NewAllowList()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.onDecision == nil {
		g.onDecision = func(policy.Access, string) {}
	}
	return g
}

// BearerToken extracts the token from an Authorization header value. Anything other than
// "Bearer <token>" yields "".
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// CurrentUser resolves the session user for an Authorization header. Any verification or
// lookup failure yields nil; the reason is logged, never returned.
func (g *Gate) CurrentUser(ctx context.Context, authHeader string) *SessionUser {
	token := BearerToken(authHeader)
	if token == "" {
		return nil
	}

	verified, err := g.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		g.logger.DebugContext(ctx, "id token rejected", "code", identity.ErrorCode(err), "error", err)
		return nil
	}
	return g.resolve(ctx, verified)
}

// IsAdmin reports whether the header carries a verified admin.
func (g *Gate) IsAdmin(ctx context.Context, authHeader string) bool {
	u := g.CurrentUser(ctx, authHeader)
	return u != nil && u.Role == RoleAdmin
}

func (g *Gate) resolve(ctx context.Context, tok *identity.Token) *SessionUser {
	user := &SessionUser{
		ID:    tok.UID,
		Email: tok.Email,
		Role:  g.roles.RoleFor(tok.UID),
	}
	if tok.Name != "" {
		name := tok.Name
		user.Name = &name
	}

	if g.directory == nil {
		return user
	}

	rec, err := g.directory.GetUser(ctx, tok.UID)
	if err != nil {
		g.logger.WarnContext(ctx, "user record lookup failed", "uid", tok.UID, "code", identity.ErrorCode(err), "error", err)
		return nil
	}
	if rec.Disabled {
		g.logger.InfoContext(ctx, "disabled user presented a valid token", "uid", tok.UID)
		return nil
	}
	if rec.Email != "" {
		user.Email = rec.Email
	}
	if rec.DisplayName != "" {
		name := rec.DisplayName
		user.Name = &name
	}
	return user
}
