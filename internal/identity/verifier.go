package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a verified ID token.
type Token struct {
	UID       string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    jwt.MapClaims
}

// Verifier checks ID tokens issued by the identity provider.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Token, error)
}

// VerifierConfig selects the signing key and the registered-claim checks.
// Exactly one of Secret (HS256) or PublicKeyPEM (RS256) must be set.
type VerifierConfig struct {
	Secret       string
	PublicKeyPEM string
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

// JWTVerifier verifies tokens locally, without a round trip to the provider.
type JWTVerifier struct {
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

// NewJWTVerifier builds a verifier from cfg.
func NewJWTVerifier(cfg VerifierConfig) (*JWTVerifier, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var keyFunc jwt.Keyfunc
	switch {
	case cfg.Secret != "" && cfg.PublicKeyPEM != "":
		return nil, errors.New("identity: configure either a shared secret or a public key, not both")
	case cfg.Secret != "":
		secret := []byte(cfg.Secret)
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		keyFunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("identity: parse public key: %w", err)
		}
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
	default:
		return nil, errors.New("identity: no verification key configured")
	}

	return &JWTVerifier{
		parser:  jwt.NewParser(opts...),
		keyFunc: keyFunc,
	}, nil
}

// VerifyIDToken parses and validates idToken. Failures are *Error values carrying a
// provider code that distinguishes malformed, expired and otherwise invalid tokens.
func (v *JWTVerifier) VerifyIDToken(_ context.Context, idToken string) (*Token, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, newError(CodeArgumentError, "id token must be a non-empty string", nil)
	}

	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(idToken, claims, v.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, newError(CodeInvalidToken, "id token is not valid", nil)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, newError(CodeInvalidToken, "id token has no subject", nil)
	}

	tok := &Token{
		UID:    sub,
		Email:  stringClaim(claims, "email"),
		Name:   displayName(claims),
		Claims: claims,
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tok.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tok.ExpiresAt = exp.Time
	}
	return tok, nil
}

func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newError(CodeArgumentError, "decoding id token failed", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(CodeTokenExpired, "id token has expired", err)
	default:
		return newError(CodeInvalidToken, "id token verification failed", err)
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// displayName prefers a top-level name claim, then the provider's user metadata.
func displayName(claims jwt.MapClaims) string {
	if name := stringClaim(claims, "name"); name != "" {
		return name
	}
	meta, ok := claims["user_metadata"].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"full_name", "name", "display_name"} {
		if s, ok := meta[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
