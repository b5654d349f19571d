package tokenauth

import (
	"context"
	"fmt"
)

// mockStrategy recognizes exactly two literal development tokens. It exists
// purely to make the system runnable without a live OAuth server and always
// runs after the real strategies.
type mockStrategy struct {
	tokens map[string]TokenInfo
}

// NewMock constructs the development token strategy. "test-token" carries
// full read+write scope for user:alice; "read-only" carries read scope for
// user:bob. Any other token value is invalid.
func NewMock() *mockStrategy {
	return &mockStrategy{
		tokens: map[string]TokenInfo{
			"test-token": {
				Subject: "user:alice",
				Scopes:  []string{"read:notes", "write:notes"},
			},
			"read-only": {
				Subject: "user:bob",
				Scopes:  []string{"read:notes"},
			},
		},
	}
}

func (s *mockStrategy) Name() string { return "mock" }

func (s *mockStrategy) Verify(_ context.Context, token string) (*TokenInfo, error) {
	info, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized mock token", ErrUnauthorized)
	}
	// Copy so callers cannot mutate the shared scope slice.
	out := TokenInfo{Subject: info.Subject, Scopes: append([]string(nil), info.Scopes...)}
	return &out, nil
}

var _ Strategy = (*mockStrategy)(nil)
