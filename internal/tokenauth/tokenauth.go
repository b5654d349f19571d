// Package tokenauth implements the bearer token validation pipeline used by
// the notes resource server. Three verification strategies (JWT via JWKS,
// RFC 7662 introspection, and a development mock) normalize heterogeneous
// token formats into a single canonical TokenInfo. The public auth package
// wraps this package and maps its sentinel errors onto the HTTP surface.
package tokenauth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrUnauthorized indicates that a token failed validation (bad signature,
// expired, inactive, unrecognized, or an unreachable authority). Strategy
// internals are absorbed into this sentinel; callers never see diagnostic
// detail beyond their own logs.
var ErrUnauthorized = errors.New("tokenauth: unauthorized")

// TokenInfo is the canonical result of a successful verification. It only
// ever exists for an active token: strategies encode "not active" by
// returning ErrUnauthorized, never by a partially populated record.
type TokenInfo struct {
	// Subject is the resource-owner identity the token was issued for.
	// May be empty when the authority asserts no subject.
	Subject string
	// Scopes holds the granted authorization scopes, deduplicated,
	// order-irrelevant.
	Scopes []string
}

// Strategy validates a single token format. Implementations MUST return
// ErrUnauthorized (possibly wrapped) for any verification failure and must
// never panic or abort the pipeline.
type Strategy interface {
	// Name identifies the strategy in operator logs.
	Name() string
	Verify(ctx context.Context, token string) (*TokenInfo, error)
}

// Config controls which strategies the pipeline runs and how they validate.
// It is assembled once at startup and never mutated afterwards.
type Config struct {
	// JWKSURL is the JWKS endpoint used to verify self-contained JWTs.
	// Empty disables the JWT strategy unless discovery resolves one.
	JWKSURL string
	// Issuer enables OIDC discovery of jwks_uri and the introspection
	// endpoint when the explicit URLs are unset. When set it is also
	// enforced as the expected "iss" claim on JWTs.
	Issuer string
	// IntrospectionURL is the RFC 7662 endpoint for opaque tokens.
	IntrospectionURL string
	// IntrospectionClientID and the secret source authenticate this
	// resource server to the introspection endpoint via HTTP basic auth.
	IntrospectionClientID     string
	IntrospectionClientSecret SecretSource
	// MockTokens enables the fixed development tokens. Never preferred
	// over a real mechanism: the mock always runs last.
	MockTokens bool
	// AllowedAlgs restricts accepted JWS algorithms. Defaults to RS256.
	AllowedAlgs []string
	// Leeway is the clock skew tolerance for time-based JWT claims.
	Leeway time.Duration
	Logger *slog.Logger
}

// DefaultConfig returns a Config with safe algorithm and leeway defaults.
func DefaultConfig() *Config {
	return &Config{
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}
