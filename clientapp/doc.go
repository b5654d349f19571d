// Package clientapp implements the confidential OAuth 2.0 client backend
// that front-ends use to obtain authorization for the protected notes API.
// It drives the authorization code flow (redirect, callback, code exchange)
// with golang.org/x/oauth2, keeps tokens in server-side sessions keyed by an
// opaque cookie, and proxies note requests with the stored bearer token.
//
// Tokens never reach the browser except through /session/info, which exists
// as a development affordance.
package clientapp
