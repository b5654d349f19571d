package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/notegate/notegate/internal/tokenauth"
)

// PipelineOption configures optional aspects of the validation pipeline
// (endpoints, client credentials, algorithms, leeway, logging).
type PipelineOption func(*tokenauth.Config)

// WithJWKSEndpoint enables the JWT strategy using the given JWKS URL.
func WithJWKSEndpoint(url string) PipelineOption {
	return func(c *tokenauth.Config) { c.JWKSURL = url }
}

// WithIssuer enables OIDC discovery of the JWKS and introspection endpoints
// from the authorization server's metadata document. Explicitly configured
// endpoints take precedence over discovered ones. The issuer is also
// enforced as the expected "iss" claim on JWTs.
func WithIssuer(issuer string) PipelineOption {
	return func(c *tokenauth.Config) { c.Issuer = issuer }
}

// WithIntrospection enables the RFC 7662 strategy against the given endpoint.
func WithIntrospection(endpoint string) PipelineOption {
	return func(c *tokenauth.Config) { c.IntrospectionURL = endpoint }
}

// WithIntrospectionClientCredentials sets the client id and secret used to
// authenticate to the introspection endpoint via HTTP basic auth.
func WithIntrospectionClientCredentials(id, secret string) PipelineOption {
	return func(c *tokenauth.Config) {
		c.IntrospectionClientID = id
		c.IntrospectionClientSecret = tokenauth.StaticSecret(secret)
	}
}

// WithIntrospectionClientSecretSource is like
// WithIntrospectionClientCredentials but reads the secret from a source that
// may change over time, such as a watched secret file.
func WithIntrospectionClientSecretSource(id string, secret tokenauth.SecretSource) PipelineOption {
	return func(c *tokenauth.Config) {
		c.IntrospectionClientID = id
		c.IntrospectionClientSecret = secret
	}
}

// WithMockTokens enables the fixed development tokens. The mock always runs
// after the real strategies and never shadows them.
func WithMockTokens() PipelineOption {
	return func(c *tokenauth.Config) { c.MockTokens = true }
}

// WithAllowedAlgs restricts accepted JWS algorithms. "none" is never
// allowed. Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) PipelineOption {
	return func(c *tokenauth.Config) {
		c.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based JWT claims.
func WithLeeway(d time.Duration) PipelineOption {
	return func(c *tokenauth.Config) { c.Leeway = d }
}

// WithLogger sets the slog logger used for strategy-level diagnostics.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(c *tokenauth.Config) { c.Logger = l }
}

// NewPipeline constructs a Verifier that runs the configured strategies in
// priority order: JWT/JWKS, then introspection, then mock. Repeated
// validation of the same still-valid token yields an identical TokenInfo.
func NewPipeline(ctx context.Context, opts ...PipelineOption) (Verifier, error) {
	cfg := tokenauth.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	internal, err := tokenauth.NewPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pipelineAdapter{p: internal}, nil
}

// pipelineAdapter wraps the internal pipeline to satisfy the public
// interface and map internal sentinel errors to public ones.
type pipelineAdapter struct {
	p *tokenauth.Pipeline
}

func (a *pipelineAdapter) Verify(ctx context.Context, token string) (*TokenInfo, error) {
	info, err := a.p.Verify(ctx, token)
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return &TokenInfo{Subject: info.Subject, Scopes: append([]string(nil), info.Scopes...)}, nil
}

var _ Verifier = (*pipelineAdapter)(nil)
