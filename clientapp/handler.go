package clientapp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/notegate/notegate/internal/logctx"
	"github.com/notegate/notegate/internal/sessionstore"
)

var _ http.Handler = (*Handler)(nil)

const sessionCookie = "sid"

// maxProxyBody caps response bodies relayed from the notes API.
const maxProxyBody = 1 << 20

// Config describes the confidential client registration and its upstream
// endpoints. All fields except Scopes are required.
type Config struct {
	// AuthURL and TokenURL are the authorization server's endpoints.
	AuthURL  string
	TokenURL string
	// ClientID and ClientSecret identify this backend to the
	// authorization server.
	ClientID     string
	ClientSecret string
	// RedirectURI is the registered callback URL.
	RedirectURI string
	// NotesAPIURL is the base URL of the protected notes API.
	NotesAPIURL string
	// Scopes requested during authorization.
	// Default: read:notes write:notes.
	Scopes []string
}

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	logger     *slog.Logger
	sessionTTL time.Duration
}

// WithLogger sets the slog logger used by the handler.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithSessionTTL overrides the session lifetime (default 1h).
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *newConfig) { c.sessionTTL = ttl }
}

// Handler serves the client backend endpoints.
type Handler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	oauth    *oauth2.Config
	notesAPI string
	sessions *sessionstore.Store
	client   *http.Client
}

// New constructs the client backend handler.
func New(cfg Config, opts ...Option) (*Handler, error) {
	if cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, fmt.Errorf("auth and token endpoints are required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("redirect uri is required")
	}
	if cfg.NotesAPIURL == "" {
		return nil, fmt.Errorf("notes api url is required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:notes", "write:notes"}
	}

	oc := &newConfig{logger: slog.Default(), sessionTTL: time.Hour}
	for _, opt := range opts {
		opt(oc)
	}

	h := &Handler{
		log: slog.New(logctx.Handler{Handler: oc.logger.Handler()}),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		notesAPI: strings.TrimRight(cfg.NotesAPIURL, "/"),
		sessions: sessionstore.New(oc.sessionTTL),
		client:   &http.Client{Timeout: 10 * time.Second},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/login", h.handleLogin)
	mux.HandleFunc("GET /oauth/callback", h.handleCallback)
	mux.HandleFunc("GET /client/notes", h.handleListNotes)
	mux.HandleFunc("POST /client/create-note", h.handleCreateNote)
	mux.HandleFunc("GET /session/info", h.handleSessionInfo)
	mux.HandleFunc("GET /.well-known/health", h.handleHealth)
	h.mux = mux
	return h, nil
}

// Close releases the session store.
func (h *Handler) Close() error {
	return h.sessions.Close()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sessionID returns the caller's session id, minting a cookie when absent.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// handleLogin starts the authorization code flow: it stores a fresh state
// value in the caller's session and redirects to the authorization endpoint.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := h.sessionID(w, r)

	sess, _ := h.sessions.Get(sid)
	sess.State = uuid.NewString()
	h.sessions.Put(sid, sess)

	h.log.InfoContext(ctx, "oauth.login.redirect")
	http.Redirect(w, r, h.oauth.AuthCodeURL(sess.State), http.StatusFound)
}

// handleCallback receives the authorization code and exchanges it for a
// token at the token endpoint.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		h.log.WarnContext(ctx, "oauth.callback.denied", slog.String("err", errParam))
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": errParam})
		return
	}

	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing_code"})
		return
	}

	sid := h.sessionID(w, r)
	sess, ok := h.sessions.Get(sid)
	if !ok || sess.State == "" || q.Get("state") != sess.State {
		h.log.WarnContext(ctx, "oauth.callback.state_mismatch")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_state"})
		return
	}

	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.log.WarnContext(ctx, "oauth.exchange.fail", slog.String("err", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "token_exchange_failed"})
		return
	}

	sess.State = ""
	sess.Token = tok
	if scope, ok := tok.Extra("scope").(string); ok {
		sess.Scope = scope
	}
	h.sessions.Put(sid, sess)

	h.log.InfoContext(ctx, "oauth.exchange.ok")
	writeJSON(w, http.StatusOK, map[string]any{"message": "Authorization success"})
}

// handleListNotes proxies GET /notes on the protected API using the
// session's bearer token.
func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, http.MethodGet, "/notes", nil, "")
}

// handleCreateNote proxies POST /notes, forwarding the caller's JSON body.
func (h *Handler) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, http.MethodPost, "/notes", r.Body, "application/json")
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, method, path string, body io.Reader, contentType string) {
	ctx := r.Context()

	sess, ok := h.session(r)
	if !ok || sess.Token == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "not_authenticated"})
		return
	}

	req, err := http.NewRequestWithContext(ctx, method, h.notesAPI+path, body)
	if err != nil {
		h.log.ErrorContext(ctx, "proxy.request.build.fail", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	req.Header.Set("Authorization", "Bearer "+sess.Token.AccessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.WarnContext(ctx, "proxy.request.fail", slog.String("err", err.Error()))
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream_unreachable"})
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		h.log.WarnContext(ctx, "proxy.read.fail", slog.String("err", err.Error()))
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream_unreachable"})
		return
	}

	var data json.RawMessage
	if len(raw) > 0 && json.Valid(raw) {
		data = raw
	} else {
		data = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": resp.StatusCode, "data": data})
}

func (h *Handler) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok || sess.Token == nil {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": nil, "refresh_token": nil, "scope": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  sess.Token.AccessToken,
		"refresh_token": sess.Token.RefreshToken,
		"scope":         sess.Scope,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session reads the caller's session without minting a cookie.
func (h *Handler) session(r *http.Request) (sessionstore.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return sessionstore.Session{}, false
	}
	return h.sessions.Get(c.Value)
}
