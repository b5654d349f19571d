package tokenauth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Pipeline runs the configured strategies in a fixed trust order: JWT/JWKS
// first (cryptographically self-verifying, no round-trip to the authority),
// then introspection (ask the authority about opaque tokens), then the mock.
// The first success wins; exhaustion means the token is invalid.
type Pipeline struct {
	log        *slog.Logger
	strategies []Strategy
}

// NewPipeline builds the static strategy list from cfg. Strategies whose
// prerequisite configuration is absent are simply not added. When an Issuer
// is configured, OIDC discovery fills in the JWKS and introspection
// endpoints that were not set explicitly.
func NewPipeline(ctx context.Context, cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	jwksURL := cfg.JWKSURL
	introspectionURL := cfg.IntrospectionURL
	if cfg.Issuer != "" && (jwksURL == "" || introspectionURL == "") {
		meta, err := discoverEndpoints(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery failed: %w", err)
		}
		if jwksURL == "" {
			jwksURL = meta.JwksURI
		}
		if introspectionURL == "" {
			introspectionURL = meta.IntrospectionEndpoint
		}
	}

	p := &Pipeline{log: log}

	if jwksURL != "" {
		s, err := NewJWKS(ctx, jwksURL, cfg.Issuer, cfg.AllowedAlgs, cfg.Leeway)
		if err != nil {
			return nil, err
		}
		p.strategies = append(p.strategies, s)
	}
	if introspectionURL != "" {
		secret := cfg.IntrospectionClientSecret
		if secret == nil {
			secret = StaticSecret("")
		}
		s, err := NewIntrospection(introspectionURL, cfg.IntrospectionClientID, secret)
		if err != nil {
			return nil, err
		}
		p.strategies = append(p.strategies, s)
	}
	if cfg.MockTokens {
		p.strategies = append(p.strategies, NewMock())
	}

	if len(p.strategies) == 0 {
		// Not fatal: the pipeline simply denies everything. Loud enough
		// for an operator to notice a misconfigured deployment.
		log.Warn("tokenauth.pipeline.empty", slog.String("detail", "no verification strategy configured; all tokens will be rejected"))
	} else {
		names := make([]string, 0, len(p.strategies))
		for _, s := range p.strategies {
			names = append(names, s.Name())
		}
		log.Info("tokenauth.pipeline.ready", slog.Any("strategies", names))
	}

	return p, nil
}

// Verify runs the strategies in priority order, short-circuiting on the
// first success. Strategy failures are logged for operators but never
// surfaced to the caller beyond the unauthorized sentinel.
func (p *Pipeline) Verify(ctx context.Context, token string) (*TokenInfo, error) {
	for _, s := range p.strategies {
		info, err := s.Verify(ctx, token)
		if err != nil {
			p.log.DebugContext(ctx, "tokenauth.strategy.miss",
				slog.String("strategy", s.Name()),
				slog.String("err", err.Error()))
			continue
		}
		p.log.DebugContext(ctx, "tokenauth.strategy.hit", slog.String("strategy", s.Name()))
		return info, nil
	}
	return nil, fmt.Errorf("%w: no strategy accepted the token", ErrUnauthorized)
}

// discoveryMetadata carries the authorization server metadata fields the
// pipeline cares about.
type discoveryMetadata struct {
	JwksURI               string `json:"jwks_uri"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
}

func discoverEndpoints(ctx context.Context, issuer string) (*discoveryMetadata, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	var meta discoveryMetadata
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" && meta.IntrospectionEndpoint == "" {
		return nil, fmt.Errorf("discovery yielded neither jwks_uri nor introspection_endpoint")
	}
	return &meta, nil
}
