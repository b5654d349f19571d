package tokenauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// introspectionTimeout bounds the round-trip to the authorization server so a
// slow or unresponsive authority cannot stall request handling. A timeout is
// a verification failure, not a crash.
const introspectionTimeout = 5 * time.Second

// maxIntrospectionBody caps the response size read from the authority.
const maxIntrospectionBody = 64 * 1024

// introspectionStrategy validates opaque tokens by asking the authorization
// server (RFC 7662). Every transport failure, non-200 status, or inactive
// assertion collapses into ErrUnauthorized.
type introspectionStrategy struct {
	client       *http.Client
	endpoint     string
	clientID     string
	clientSecret SecretSource
}

// NewIntrospection constructs the introspection strategy. clientID and
// secret are optional; when both resolve non-empty the request carries HTTP
// basic client authentication.
func NewIntrospection(endpoint, clientID string, clientSecret SecretSource) (*introspectionStrategy, error) {
	if endpoint == "" {
		return nil, errors.New("introspection endpoint required")
	}
	return &introspectionStrategy{
		client:       &http.Client{Timeout: introspectionTimeout},
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
	}, nil
}

func (s *introspectionStrategy) Name() string { return "introspection" }

func (s *introspectionStrategy) Verify(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build introspection request: %v", ErrUnauthorized, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if s.clientID != "" {
		if secret := s.clientSecret.Secret(); secret != "" {
			req.SetBasicAuth(s.clientID, secret)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: introspection request failed: %v", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: introspection returned status %d", ErrUnauthorized, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIntrospectionBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode introspection response: %v", ErrUnauthorized, err)
	}

	// A false or absent "active" flag asserts the token is invalid.
	if active, _ := body["active"].(bool); !active {
		return nil, fmt.Errorf("%w: token not active", ErrUnauthorized)
	}

	return infoFromClaims(body), nil
}

var _ Strategy = (*introspectionStrategy)(nil)
