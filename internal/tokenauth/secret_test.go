package tokenauth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStaticSecret(t *testing.T) {
	if got := StaticSecret("s3cret").Secret(); got != "s3cret" {
		t.Fatalf("want s3cret, got %q", got)
	}
}

func TestFileSecret_MissingFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := NewFileSecret(ctx, filepath.Join(t.TempDir(), "nope"), discardLogger()); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestFileSecret_InitialLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client-secret")
	if err := os.WriteFile(path, []byte("first\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs, err := NewFileSecret(ctx, path, discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := fs.Secret(); got != "first" {
		t.Fatalf("want first (trimmed), got %q", got)
	}

	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for fs.Secret() != "second" {
		if time.Now().After(deadline) {
			t.Fatalf("secret not reloaded, still %q", fs.Secret())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFileSecret_ReloadViaRename(t *testing.T) {
	// Kubernetes rotates mounted secrets by writing a new file and renaming
	// it over the old one.
	dir := t.TempDir()
	path := filepath.Join(dir, "client-secret")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs, err := NewFileSecret(ctx, path, discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tmp := filepath.Join(dir, "client-secret.tmp")
	if err := os.WriteFile(tmp, []byte("new"), 0o600); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for fs.Secret() != "new" {
		if time.Now().After(deadline) {
			t.Fatalf("secret not reloaded after rename, still %q", fs.Secret())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
