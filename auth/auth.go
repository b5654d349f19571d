package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized indicates authentication failed or no valid credentials
// were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInsufficientScope indicates the caller authenticated but lacks required
// scope.
var ErrInsufficientScope = errors.New("insufficient scope")

// TokenInfo is the canonical result of a successful token validation. A
// TokenInfo only ever exists for an active token: strategies encode "not
// active" by returning an error, never by a partially populated record.
// Values are immutable once returned and safe for concurrent use.
type TokenInfo struct {
	// Subject is the resource-owner identity the token was issued for.
	Subject string
	// Scopes holds the granted authorization scopes, deduplicated.
	Scopes []string
}

// HasScope reports whether the token was granted the named scope.
func (t *TokenInfo) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// MissingScopes returns the set difference required minus granted, in the
// order the requirements were declared. An empty result means the token
// satisfies every required scope; extra granted scopes are ignored.
func (t *TokenInfo) MissingScopes(required []string) []string {
	var missing []string
	seen := make(map[string]struct{}, len(required))
	for _, want := range required {
		if _, dup := seen[want]; dup {
			continue
		}
		seen[want] = struct{}{}
		if !t.HasScope(want) {
			missing = append(missing, want)
		}
	}
	return missing
}

// Verifier validates bearer tokens. It returns ErrUnauthorized (possibly
// wrapped) for invalid credentials; a nil error guarantees a non-nil
// TokenInfo.
type Verifier interface {
	Verify(ctx context.Context, token string) (*TokenInfo, error)
}
