package tokenauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// jwksStrategy validates self-contained JWTs against a JWKS endpoint. Keys
// are fetched by key id and cached for the process lifetime by keyfunc, so
// validation normally needs no network round-trip.
type jwksStrategy struct {
	keyfunc     jwt.Keyfunc
	issuer      string
	allowedAlgs []string
	leeway      time.Duration
}

// NewJWKS constructs the JWT strategy. The JWKS set is fetched eagerly so a
// misconfigured endpoint fails at startup rather than per request. issuer is
// optional; when empty the "iss" claim is not enforced.
func NewJWKS(ctx context.Context, jwksURL string, issuer string, allowedAlgs []string, leeway time.Duration) (*jwksStrategy, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url required")
	}
	if len(allowedAlgs) == 0 {
		allowedAlgs = []string{"RS256"}
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	return &jwksStrategy{
		keyfunc: func(t *jwt.Token) (any, error) {
			// Enforce allowed algs before key lookup. Rejecting anything
			// outside the allow-list closes algorithm-confusion attacks.
			alg := t.Method.Alg()
			allowed := false
			for _, a := range allowedAlgs {
				if alg == a {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, fmt.Errorf("disallowed alg: %s", alg)
			}
			return kf.Keyfunc(t)
		},
		issuer:      issuer,
		allowedAlgs: allowedAlgs,
		leeway:      leeway,
	}, nil
}

func (s *jwksStrategy) Name() string { return "jwks" }

// Verify checks the token's signature and time-based claims and normalizes
// its claims into a TokenInfo. The audience claim is deliberately NOT
// validated: audience policy is deferred to deployment-specific
// configuration rather than hard-coded here.
func (s *jwksStrategy) Verify(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(s.allowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parser := jwt.NewParser(opts...)

	parsed, err := parser.Parse(token, s.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", ErrUnauthorized)
	}

	return infoFromClaims(claims), nil
}

var _ Strategy = (*jwksStrategy)(nil)
