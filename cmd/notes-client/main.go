// Command notes-client runs the confidential OAuth client backend that
// obtains authorization for the protected notes API via the authorization
// code flow.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/notegate/notegate/clientapp"
)

type config struct {
	// Addr is the listen address. ENV: ADDR
	Addr string `env:"ADDR,default=:5002"`

	// Authorization server endpoints and client registration.
	AuthURL      string `env:"OAUTH_AUTH_URL,required"`
	TokenURL     string `env:"OAUTH_TOKEN_URL,required"`
	ClientID     string `env:"CLIENT_ID,required"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI,required"`

	// NotesAPIURL is the base URL of the protected notes API.
	NotesAPIURL string `env:"NOTES_API_URL,required"`
	// Scopes is the space-delimited scope set requested during
	// authorization. ENV: OAUTH_SCOPES
	Scopes string `env:"OAUTH_SCOPES,default=read:notes write:notes"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("notes-client.fail", slog.String("err", err.Error()))
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

	h, err := clientapp.New(clientapp.Config{
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		NotesAPIURL:  cfg.NotesAPIURL,
		Scopes:       strings.Fields(cfg.Scopes),
	}, clientapp.WithLogger(log))
	if err != nil {
		return fmt.Errorf("handler: %w", err)
	}
	defer h.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("notes-client.listen", slog.String("addr", cfg.Addr))
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
	log.Info("notes-client.stopped")
	return nil
}
