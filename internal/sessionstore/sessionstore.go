// Package sessionstore provides an in-memory session store for the
// confidential OAuth client backend. All state is ephemeral and discarded on
// process exit; sessions expire after a fixed TTL and are swept by a
// background janitor.
package sessionstore

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Session holds the per-browser OAuth state: the pending authorization
// request's anti-CSRF state value and, after the code exchange, the issued
// token.
type Session struct {
	// State is the pending authorization request's state parameter.
	// Cleared once the callback consumes it.
	State string
	// Token is the access/refresh token pair from the token endpoint.
	// Nil until the authorization code flow completes.
	Token *oauth2.Token
	// Scope is the scope string granted by the token endpoint.
	Scope string
}

type entry struct {
	sess      Session
	expiresAt time.Time
}

// Store is a mutex-guarded in-memory session map with TTL expiry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a store whose sessions expire ttl after their last write.
func New(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]entry),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Get returns the session for id, or false if absent or expired.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return Session{}, false
	}
	return e.sess, true
}

// Put stores sess under id and refreshes its expiry.
func (s *Store) Put(id string, sess Session) {
	s.mu.Lock()
	s.sessions[id] = entry{sess: sess, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// Delete removes the session for id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Close stops the background janitor.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Store) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, e := range s.sessions {
				if now.After(e.expiresAt) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
