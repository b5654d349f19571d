// Package notes defines the protected note resource and its storage
// contract. Every operation is scoped to an owner subject: a note that
// exists but belongs to someone else is indistinguishable from one that does
// not exist, so non-owners never learn whether an id is in use.
package notes

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a note is absent or not owned by the caller.
var ErrNotFound = errors.New("notes: not found")

// Note is the protected resource.
type Note struct {
	ID        int64  `json:"id"`
	Owner     string `json:"owner"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// Store is the persistence contract for notes. Implementations must be safe
// for concurrent use; id assignment is the store's responsibility.
type Store interface {
	// ListByOwner returns all notes owned by owner, ordered by id.
	ListByOwner(ctx context.Context, owner string) ([]Note, error)

	// Get returns the note with the given id if it is owned by owner.
	// Returns ErrNotFound for absent and foreign notes alike.
	Get(ctx context.Context, owner string, id int64) (*Note, error)

	// Create stores a new note for owner and assigns its id.
	Create(ctx context.Context, owner, title, content string) (*Note, error)

	// Delete removes the note with the given id if it is owned by owner.
	// Returns ErrNotFound for absent and foreign notes alike.
	Delete(ctx context.Context, owner string, id int64) error

	// Close releases backend resources.
	Close() error
}
