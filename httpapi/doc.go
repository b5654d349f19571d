// Package httpapi implements the HTTP surface of the protected notes API.
//
// Every protected route is wrapped by a scope gate that extracts the bearer
// token, runs the auth validation pipeline, and enforces the route's
// declared scope set before the handler executes. Rejections follow a fixed
// taxonomy: missing_authorization (401, no or malformed Authorization
// header), invalid_token (401, the pipeline produced no active result),
// insufficient_scope (403, authenticated but under-privileged, with the
// exact missing scopes reported), not_found (404, absent or foreign
// resource), and title_required (400, caller input validation).
// Authentication is always checked before authorization so scope
// requirements are never revealed to unauthenticated callers.
//
// Unauthenticated surfaces are limited to the liveness probe at
// /.well-known/health and, when configured, the RFC 9728 protected resource
// metadata document.
package httpapi
