// Command notes-api runs the protected notes resource server. All
// configuration comes from the environment; with no configuration at all it
// serves on :5001 with the development mock tokens enabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	goredis "github.com/redis/go-redis/v9"

	"github.com/notegate/notegate/auth"
	"github.com/notegate/notegate/httpapi"
	"github.com/notegate/notegate/internal/tokenauth"
	"github.com/notegate/notegate/internal/wellknown"
	"github.com/notegate/notegate/notes"
	notesmemory "github.com/notegate/notegate/notes/memory"
	notesredis "github.com/notegate/notegate/notes/redis"
)

type config struct {
	// Addr is the listen address. ENV: ADDR
	Addr string `env:"ADDR,default=:5001"`

	// Issuer enables OIDC discovery of the JWKS and introspection
	// endpoints. ENV: ISSUER
	Issuer string `env:"ISSUER"`
	// JWKSURL enables JWT verification. ENV: JWKS_URL
	JWKSURL string `env:"JWKS_URL"`
	// IntrospectionURL enables RFC 7662 validation of opaque tokens.
	// ENV: INTROSPECTION_URL
	IntrospectionURL string `env:"INTROSPECTION_URL"`
	// Client credentials for the introspection endpoint. The secret may
	// come from the environment or from a watched file (rotation without
	// restart); the file wins when both are set.
	IntrospectionClientID         string `env:"INTROSPECTION_CLIENT_ID"`
	IntrospectionClientSecret     string `env:"INTROSPECTION_CLIENT_SECRET"`
	IntrospectionClientSecretFile string `env:"INTROSPECTION_CLIENT_SECRET_FILE"`
	// MockTokens enables the fixed development tokens. ENV: MOCK_TOKENS
	MockTokens bool `env:"MOCK_TOKENS,default=true"`

	// RedisAddr selects the Redis-backed note store. Empty means the
	// in-memory store. ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR"`

	// Realm is advertised in WWW-Authenticate challenges. ENV: REALM
	Realm string `env:"REALM"`
	// ResourceURL is the externally visible base URL of this API, used
	// for the protected resource metadata document. ENV: RESOURCE_URL
	ResourceURL string `env:"RESOURCE_URL"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("notes-api.fail", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []auth.PipelineOption{auth.WithLogger(log)}
	if cfg.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.Issuer))
	}
	if cfg.JWKSURL != "" {
		opts = append(opts, auth.WithJWKSEndpoint(cfg.JWKSURL))
	}
	if cfg.IntrospectionURL != "" {
		opts = append(opts, auth.WithIntrospection(cfg.IntrospectionURL))
	}
	switch {
	case cfg.IntrospectionClientSecretFile != "":
		secret, err := tokenauth.NewFileSecret(ctx, cfg.IntrospectionClientSecretFile, log)
		if err != nil {
			return fmt.Errorf("introspection secret file: %w", err)
		}
		opts = append(opts, auth.WithIntrospectionClientSecretSource(cfg.IntrospectionClientID, secret))
	case cfg.IntrospectionClientSecret != "":
		opts = append(opts, auth.WithIntrospectionClientCredentials(cfg.IntrospectionClientID, cfg.IntrospectionClientSecret))
	}
	if cfg.MockTokens {
		opts = append(opts, auth.WithMockTokens())
	}

	verifier, err := auth.NewPipeline(ctx, opts...)
	if err != nil {
		return fmt.Errorf("auth pipeline: %w", err)
	}

	var store notes.Store
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		store, err = notesredis.New(notesredis.Config{Client: client})
		if err != nil {
			return fmt.Errorf("redis store: %w", err)
		}
		log.Info("notes.store.redis", slog.String("addr", cfg.RedisAddr))
	} else {
		store = notesmemory.NewSeeded()
		log.Info("notes.store.memory")
	}
	defer store.Close()

	hopts := []httpapi.Option{httpapi.WithLogger(log), httpapi.WithRealm(cfg.Realm)}
	if cfg.ResourceURL != "" && cfg.Issuer != "" {
		hopts = append(hopts, httpapi.WithResourceMetadata(wellknown.ProtectedResourceMetadata{
			Resource:               cfg.ResourceURL,
			AuthorizationServers:   []string{cfg.Issuer},
			JwksURI:                cfg.JWKSURL,
			ScopesSupported:        []string{"read:notes", "write:notes"},
			BearerMethodsSupported: []string{"authorization_header"},
			ResourceName:           "notes-api",
		}))
	}

	h, err := httpapi.New(verifier, store, hopts...)
	if err != nil {
		return fmt.Errorf("handler: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("notes-api.listen", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("notes-api.stopped")
	return nil
}
