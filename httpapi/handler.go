package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/notegate/notegate/auth"
	"github.com/notegate/notegate/internal/logctx"
	"github.com/notegate/notegate/internal/wellknown"
	"github.com/notegate/notegate/notes"
)

var _ http.Handler = (*Handler)(nil)

var jsonMediaType = contenttype.NewMediaType("application/json")

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
)

// Error codes surfaced in response bodies.
const (
	errMissingAuthorization = "missing_authorization"
	errInvalidToken         = "invalid_token"
	errInsufficientScope    = "insufficient_scope"
	errNotFound             = "not_found"
	errTitleRequired        = "title_required"
)

// Scopes guarding the note routes.
const (
	scopeReadNotes  = "read:notes"
	scopeWriteNotes = "write:notes"
)

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	logger           *slog.Logger
	realm            string
	resourceMetadata *wellknown.ProtectedResourceMetadata
}

// WithLogger sets the slog logger used by the handler. If not provided, the
// default logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithRealm sets the HTTP authentication realm advertised in
// WWW-Authenticate challenges. If empty (default), the realm attribute is
// omitted entirely per RFC 6750.
func WithRealm(realm string) Option {
	return func(c *newConfig) { c.realm = strings.TrimSpace(realm) }
}

// WithResourceMetadata advertises an RFC 9728 protected resource metadata
// document at /.well-known/oauth-protected-resource.
func WithResourceMetadata(doc wellknown.ProtectedResourceMetadata) Option {
	return func(c *newConfig) { c.resourceMetadata = &doc }
}

// Handler serves the protected notes API.
type Handler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	verifier auth.Verifier
	store    notes.Store
	realm    string
	prm      *wellknown.ProtectedResourceMetadata
}

// New constructs the notes API handler.
//
// Required:
//   - verifier: the token validation pipeline (auth.NewPipeline)
//   - store: the note storage backend
func New(verifier auth.Verifier, store notes.Store, opts ...Option) (*Handler, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	cfg := &newConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &Handler{
		log:      slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		verifier: verifier,
		store:    store,
		realm:    cfg.realm,
		prm:      cfg.resourceMetadata,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /notes", h.requireScopes([]string{scopeReadNotes}, h.handleListNotes))
	mux.HandleFunc("GET /notes/{id}", h.requireScopes([]string{scopeReadNotes}, h.handleGetNote))
	mux.HandleFunc("POST /notes", h.requireScopes([]string{scopeWriteNotes}, h.handleCreateNote))
	mux.HandleFunc("DELETE /notes/{id}", h.requireScopes([]string{scopeWriteNotes}, h.handleDeleteNote))
	mux.HandleFunc("GET /.well-known/health", h.handleHealth)
	if h.prm != nil {
		mux.HandleFunc("GET /.well-known/oauth-protected-resource", h.handleResourceMetadata)
	}
	h.mux = mux
	return h, nil
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

// writeJSON emits a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError emits the canonical error body {"error":"<code>"}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

// buildBearerChallenge builds an RFC 6750 Bearer challenge header value.
// Realm is omitted if empty; params are emitted in the order error,
// error_description, scope.
func buildBearerChallenge(realm string, params map[string]string) string {
	pieces := make([]string, 0, 1+len(params))
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	for _, k := range []string{"error", "error_description", "scope"} {
		if v, ok := params[k]; ok {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc(v)))
		}
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}

// protectedHandler is a note route handler that runs behind the scope gate.
type protectedHandler func(w http.ResponseWriter, r *http.Request, info *auth.TokenInfo)

// requireScopes is the scope gate. It extracts the bearer token, runs the
// validation pipeline, and enforces the declared scope set. Authentication
// is checked before authorization: an unauthenticated caller never learns
// which scopes a route requires.
func (h *Handler) requireScopes(required []string, next protectedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tok, ok := bearerToken(r)
		if !ok {
			// RFC 6750 §3.1: no error code when the request carried no
			// credentials at all.
			h.log.InfoContext(ctx, "auth.check.missing")
			w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, nil))
			writeError(w, http.StatusUnauthorized, errMissingAuthorization)
			return
		}

		info, err := h.verifier.Verify(ctx, tok)
		if err != nil {
			h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
			w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, map[string]string{
				"error": "invalid_token",
			}))
			writeError(w, http.StatusUnauthorized, errInvalidToken)
			return
		}

		if missing := info.MissingScopes(required); len(missing) > 0 {
			scopeErr := fmt.Errorf("%w: missing %s", auth.ErrInsufficientScope, strings.Join(missing, " "))
			h.log.InfoContext(ctx, "auth.scope.fail", slog.String("err", scopeErr.Error()))
			w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, map[string]string{
				"error": "insufficient_scope",
				"scope": strings.Join(required, " "),
			}))
			writeJSON(w, http.StatusForbidden, map[string]any{
				"error":   errInsufficientScope,
				"missing": missing,
			})
			return
		}

		ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Subject: info.Subject})
		next(w, r.WithContext(ctx), info)
	}
}

// bearerToken extracts the bearer token from the Authorization header. A
// missing header, a non-Bearer scheme, and an empty token all report false:
// the caller supplied no usable credentials.
func bearerToken(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "
	authHeader := r.Header.Get(authorizationHeader)
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request, info *auth.TokenInfo) {
	start := time.Now()
	ctx := r.Context()

	list, err := h.store.ListByOwner(ctx, info.Subject)
	if err != nil {
		h.log.ErrorContext(ctx, "notes.list.fail", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, list)
	h.log.InfoContext(ctx, "notes.list.ok", slog.Int("count", len(list)), slog.Duration("dur", time.Since(start)))
}

func (h *Handler) handleGetNote(w http.ResponseWriter, r *http.Request, info *auth.TokenInfo) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}

	n, err := h.store.Get(ctx, info.Subject, id)
	if err != nil {
		if errors.Is(err, notes.ErrNotFound) {
			h.log.InfoContext(ctx, "notes.get.miss", slog.Int64("id", id))
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		h.log.ErrorContext(ctx, "notes.get.fail", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) handleCreateNote(w http.ResponseWriter, r *http.Request, info *auth.TokenInfo) {
	ctx := r.Context()

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errTitleRequired)
		h.log.WarnContext(ctx, "json.decode.fail", slog.String("err", err.Error()))
		return
	}
	if body.Title == "" {
		writeError(w, http.StatusBadRequest, errTitleRequired)
		return
	}

	n, err := h.store.Create(ctx, info.Subject, body.Title, body.Content)
	if err != nil {
		h.log.ErrorContext(ctx, "notes.create.fail", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, n)
	h.log.InfoContext(ctx, "notes.create.ok", slog.Int64("id", n.ID))
}

func (h *Handler) handleDeleteNote(w http.ResponseWriter, r *http.Request, info *auth.TokenInfo) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}

	if err := h.store.Delete(ctx, info.Subject, id); err != nil {
		if errors.Is(err, notes.ErrNotFound) {
			h.log.InfoContext(ctx, "notes.delete.miss", slog.Int64("id", id))
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		h.log.ErrorContext(ctx, "notes.delete.fail", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	h.log.InfoContext(ctx, "notes.delete.ok", slog.Int64("id", id))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleResourceMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.prm)
}
