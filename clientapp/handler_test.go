package clientapp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type testEnv struct {
	handler  *Handler
	authSrv  *httptest.Server
	notesSrv *httptest.Server
}

// newTestEnv stands up a fake authorization server token endpoint and a fake
// notes API, then builds the client backend against them.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	authMux := http.NewServeMux()
	authMux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse token form: %v", err)
		}
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-123",
			"refresh_token": "rt-456",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "read:notes write:notes",
		})
	})
	authSrv := httptest.NewServer(authMux)
	t.Cleanup(authSrv.Close)

	notesMux := http.NewServeMux()
	notesMux.HandleFunc("GET /notes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_token"})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "title": "Welcome"}})
	})
	notesMux.HandleFunc("POST /notes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	notesSrv := httptest.NewServer(notesMux)
	t.Cleanup(notesSrv.Close)

	h, err := New(Config{
		AuthURL:      authSrv.URL + "/authorize",
		TokenURL:     authSrv.URL + "/token",
		ClientID:     "demo-client",
		ClientSecret: "demo-secret",
		RedirectURI:  "http://localhost:5002/oauth/callback",
		NotesAPIURL:  notesSrv.URL,
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	return &testEnv{handler: h, authSrv: authSrv, notesSrv: notesSrv}
}

// login drives GET /oauth/login and returns the session cookie and the state
// parameter embedded in the redirect.
func (e *testEnv) login(t *testing.T) (*http.Cookie, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("login: want 302, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("login redirect missing state parameter")
	}

	var sid *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			sid = c
		}
	}
	if sid == nil {
		t.Fatal("login did not set session cookie")
	}
	return sid, state
}

func TestLogin_Redirect(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("want 302, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	q := loc.Query()
	if q.Get("client_id") != "demo-client" {
		t.Fatalf("client_id missing from authorization request: %s", loc)
	}
	if q.Get("response_type") != "code" {
		t.Fatalf("want response_type=code, got %q", q.Get("response_type"))
	}
	if !strings.Contains(q.Get("scope"), "read:notes") {
		t.Fatalf("scope missing from authorization request: %q", q.Get("scope"))
	}
}

func TestCallback_ErrorParam(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?error=access_denied", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "access_denied" {
		t.Fatalf("want access_denied echoed, got %v", body["error"])
	}
}

func TestCallback_MissingCode(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing_code") {
		t.Fatalf("want missing_code, got %s", rec.Body.String())
	}
}

func TestCallback_StateMismatch(t *testing.T) {
	e := newTestEnv(t)
	sid, _ := e.login(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=good-code&state=forged", nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_state") {
		t.Fatalf("want invalid_state, got %s", rec.Body.String())
	}
}

func TestCallback_ExchangeFails(t *testing.T) {
	e := newTestEnv(t)
	sid, state := e.login(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=bad-code&state="+state, nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "token_exchange_failed") {
		t.Fatalf("want token_exchange_failed, got %s", rec.Body.String())
	}
}

func TestFullFlowAndProxy(t *testing.T) {
	e := newTestEnv(t)
	sid, state := e.login(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=good-code&state="+state, nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Session now carries the token.
	req = httptest.NewRequest(http.MethodGet, "/session/info", nil)
	req.AddCookie(sid)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	var info map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode session info: %v", err)
	}
	if info["access_token"] != "at-123" {
		t.Fatalf("want at-123 in session, got %v", info["access_token"])
	}
	if info["scope"] != "read:notes write:notes" {
		t.Fatalf("want granted scope in session, got %v", info["scope"])
	}

	// Proxy list with the bearer token.
	req = httptest.NewRequest(http.MethodGet, "/client/notes", nil)
	req.AddCookie(sid)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("proxy list: want 200, got %d", rec.Code)
	}
	var proxied struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &proxied); err != nil {
		t.Fatalf("decode proxy response: %v", err)
	}
	if proxied.Status != http.StatusOK {
		t.Fatalf("want upstream 200, got %d", proxied.Status)
	}
	if !strings.Contains(string(proxied.Data), "Welcome") {
		t.Fatalf("upstream data missing: %s", proxied.Data)
	}

	// Proxy create forwards the body.
	req = httptest.NewRequest(http.MethodPost, "/client/create-note", strings.NewReader(`{"title":"new"}`))
	req.AddCookie(sid)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &proxied); err != nil {
		t.Fatalf("decode proxy response: %v", err)
	}
	if proxied.Status != http.StatusCreated {
		t.Fatalf("want upstream 201, got %d", proxied.Status)
	}
}

func TestProxy_NotAuthenticated(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/client/notes", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not_authenticated") {
		t.Fatalf("want not_authenticated, got %s", rec.Body.String())
	}
}

func TestProxy_UpstreamUnreachable(t *testing.T) {
	e := newTestEnv(t)
	sid, state := e.login(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=good-code&state="+state, nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: want 200, got %d", rec.Code)
	}

	e.notesSrv.Close()

	req = httptest.NewRequest(http.MethodGet, "/client/notes", nil)
	req.AddCookie(sid)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("want 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upstream_unreachable") {
		t.Fatalf("want upstream_unreachable, got %s", rec.Body.String())
	}
}

func TestSessionInfo_NoSession(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/info", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var info map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["access_token"] != nil {
		t.Fatalf("want nil access_token, got %v", info["access_token"])
	}
}
