// Package memory provides an in-memory notes.Store suitable for tests,
// development, and single-process servers. All state is ephemeral and
// discarded on process exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/notegate/notegate/notes"
)

// Store implements notes.Store with a mutex-guarded map and an atomically
// incremented id counter.
type Store struct {
	mu      sync.RWMutex
	byID    map[int64]notes.Note
	counter atomic.Int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{byID: make(map[int64]notes.Note)}
}

// NewSeeded creates a store pre-populated with a welcome note for
// user:alice, matching the development fixture the mock tokens expect.
func NewSeeded() *Store {
	s := New()
	_, _ = s.Create(context.Background(), "user:alice", "Welcome", "This is your first note")
	return s
}

func (s *Store) ListByOwner(_ context.Context, owner string) ([]notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]notes.Note, 0)
	for _, n := range s.byID {
		if n.Owner == owner {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Get(_ context.Context, owner string, id int64) (*notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[id]
	if !ok || n.Owner != owner {
		return nil, notes.ErrNotFound
	}
	out := n
	return &out, nil
}

func (s *Store) Create(_ context.Context, owner, title, content string) (*notes.Note, error) {
	n := notes.Note{
		ID:        s.counter.Add(1),
		Owner:     owner,
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}

	s.mu.Lock()
	s.byID[n.ID] = n
	s.mu.Unlock()

	out := n
	return &out, nil
}

func (s *Store) Delete(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.Owner != owner {
		return notes.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Store) Close() error { return nil }

var _ notes.Store = (*Store)(nil)
