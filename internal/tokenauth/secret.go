package tokenauth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// SecretSource yields the current value of a client credential. The file
// variant lets deployments rotate the introspection client secret without a
// restart (the usual Kubernetes secret-mount pattern).
type SecretSource interface {
	Secret() string
}

// StaticSecret is a fixed credential value.
type StaticSecret string

func (s StaticSecret) Secret() string { return string(s) }

// FileSecret reads a credential from a file and reloads it when the file
// changes on disk.
type FileSecret struct {
	path string

	mu  sync.RWMutex
	val string
}

// NewFileSecret loads the secret from path and watches the containing
// directory for changes. Watching the directory rather than the file itself
// survives the atomic rename dance Kubernetes uses when rotating mounted
// secrets. The watcher stops when ctx is canceled.
func NewFileSecret(ctx context.Context, path string, log *slog.Logger) (*FileSecret, error) {
	if log == nil {
		log = slog.Default()
	}
	fs := &FileSecret{path: path}
	if err := fs.reload(); err != nil {
		return nil, fmt.Errorf("read secret file: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("secret watcher init: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("secret watcher add: %w", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) && filepath.Base(ev.Name) != filepath.Base(path) {
					continue
				}
				if err := fs.reload(); err != nil {
					log.Warn("tokenauth.secret.reload.fail", slog.String("err", err.Error()))
					continue
				}
				log.Info("tokenauth.secret.reload.ok")
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("tokenauth.secret.watch.err", slog.String("err", err.Error()))
			}
		}
	}()

	return fs, nil
}

func (f *FileSecret) reload() error {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.val = strings.TrimSpace(string(b))
	f.mu.Unlock()
	return nil
}

func (f *FileSecret) Secret() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.val
}

var (
	_ SecretSource = StaticSecret("")
	_ SecretSource = (*FileSecret)(nil)
)
