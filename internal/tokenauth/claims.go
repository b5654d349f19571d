package tokenauth

import "strings"

// scopeClaimNames lists the conventional claim names checked, in order, for
// granted scopes. Whichever is present and non-empty wins.
var scopeClaimNames = []string{"scope", "scp"}

// infoFromClaims normalizes a provider-specific claim map (JWT claims or an
// introspection response body) into the canonical TokenInfo.
func infoFromClaims(claims map[string]any) *TokenInfo {
	return &TokenInfo{
		Subject: subjectFromClaims(claims),
		Scopes:  scopesFromClaims(claims),
	}
}

// subjectFromClaims reads the token subject from "sub", falling back to
// "username" (some introspection servers only assert the latter).
func subjectFromClaims(claims map[string]any) string {
	if sub, _ := claims["sub"].(string); sub != "" {
		return sub
	}
	sub, _ := claims["username"].(string)
	return sub
}

func scopesFromClaims(claims map[string]any) []string {
	for _, name := range scopeClaimNames {
		if s := normalizeScopes(claims[name]); len(s) > 0 {
			return s
		}
	}
	return nil
}

// normalizeScopes converts a raw scope claim into a deduplicated scope list.
// String values are split on whitespace per RFC 6749 §3.3; list values are
// used as-is.
func normalizeScopes(raw any) []string {
	switch v := raw.(type) {
	case string:
		return dedupScopes(strings.Fields(v))
	case []string:
		return dedupScopes(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return dedupScopes(out)
	}
	return nil
}

func dedupScopes(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
