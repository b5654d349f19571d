// Package auth provides the bearer token validation surface used by the
// notes resource server. It delegates authorization to an external OAuth 2.0
// authorization server and normalizes three token formats (JWTs verified
// against a JWKS endpoint, opaque tokens checked via RFC 7662 introspection,
// and fixed development tokens) into a single canonical TokenInfo.
//
// The public surface intentionally stays small: a Verifier validates an
// incoming bearer token string and returns a TokenInfo (or an error). The
// HTTP layer is responsible for extracting the token from the request and
// mapping sentinel errors onto status codes and Bearer challenges.
//
// # The validation pipeline
//
// NewPipeline builds a static, ordered strategy list from configuration:
// JWT/JWKS first, then introspection, then the mock. The ordering is a trust
// hierarchy: cryptographically self-verifying tokens are trusted without a
// network round-trip, opaque tokens fall back to asking the authority, and
// the mock exists strictly as a development affordance. The first strategy
// to accept the token wins; if every applicable strategy rejects it, Verify
// returns ErrUnauthorized.
//
// Example:
//
//	ctx := context.Background()
//	verifier, err := auth.NewPipeline(ctx,
//	    auth.WithJWKSEndpoint("https://issuer.example/keys"),
//	    auth.WithIntrospection("https://issuer.example/oauth/introspect"),
//	    auth.WithIntrospectionClientCredentials("notes-api", secret),
//	)
//	if err != nil { log.Fatal(err) }
//
//	info, err := verifier.Verify(r.Context(), bearerToken)
//	if errors.Is(err, auth.ErrUnauthorized) { /* map to 401 invalid_token */ }
//
// # Audience validation
//
// The JWT strategy deliberately does not validate the "aud" claim. This is a
// documented default, not an oversight: audience policy varies per
// deployment and is left to configuration rather than hard-coded.
//
// # Errors
//
// ErrUnauthorized signals the token is invalid: signature, expiry, inactive,
// unrecognized, or an unreachable authority. The distinction is logged, not
// surfaced. ErrInsufficientScope signals successful authentication with
// missing required scope(s); the scope gate in the HTTP layer computes the
// exact missing set via TokenInfo.MissingScopes.
package auth
