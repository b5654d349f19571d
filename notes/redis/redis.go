// Package redis provides a Redis-backed notes.Store for deployments that
// want notes to survive process restarts. Ids come from a Redis counter,
// note bodies are stored as JSON values, and per-owner id sets make listing
// cheap.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notegate/notegate/notes"
)

// Config contains configuration options for the Redis store.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys.
	// Default: "notes:"
	KeyPrefix string
}

// Store implements notes.Store using Redis.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New creates a new Redis-backed store.
func New(config Config) (*Store, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "notes:"
	}
	return &Store{client: config.Client, keyPrefix: config.KeyPrefix}, nil
}

func (s *Store) noteKey(id int64) string {
	return s.keyPrefix + "note:" + strconv.FormatInt(id, 10)
}

func (s *Store) ownerKey(owner string) string {
	return s.keyPrefix + "owner:" + owner
}

func (s *Store) counterKey() string {
	return s.keyPrefix + "next_id"
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]notes.Note, error) {
	ids, err := s.client.SMembers(ctx, s.ownerKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("list owner ids: %w", err)
	}
	out := make([]notes.Note, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		n, err := s.load(ctx, id)
		if err == notes.ErrNotFound {
			// Stale membership entry; drop it lazily.
			s.client.SRem(ctx, s.ownerKey(owner), raw)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Get(ctx context.Context, owner string, id int64) (*notes.Note, error) {
	n, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Owner != owner {
		return nil, notes.ErrNotFound
	}
	return n, nil
}

func (s *Store) Create(ctx context.Context, owner, title, content string) (*notes.Note, error) {
	id, err := s.client.Incr(ctx, s.counterKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("assign note id: %w", err)
	}

	n := notes.Note{
		ID:        id,
		Owner:     owner,
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal note: %w", err)
	}

	if err := s.client.Set(ctx, s.noteKey(id), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("store note %d: %w", id, err)
	}
	if err := s.client.SAdd(ctx, s.ownerKey(owner), strconv.FormatInt(id, 10)).Err(); err != nil {
		return nil, fmt.Errorf("index note %d: %w", id, err)
	}
	return &n, nil
}

func (s *Store) Delete(ctx context.Context, owner string, id int64) error {
	n, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if n.Owner != owner {
		return notes.ErrNotFound
	}
	if err := s.client.Del(ctx, s.noteKey(id)).Err(); err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	if err := s.client.SRem(ctx, s.ownerKey(owner), strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("unindex note %d: %w", id, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) load(ctx context.Context, id int64) (*notes.Note, error) {
	result := s.client.Get(ctx, s.noteKey(id))
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return nil, notes.ErrNotFound
		}
		return nil, fmt.Errorf("get note %d: %w", id, result.Err())
	}
	var n notes.Note
	if err := json.Unmarshal([]byte(result.Val()), &n); err != nil {
		return nil, fmt.Errorf("unmarshal note %d: %w", id, err)
	}
	return &n, nil
}

var _ notes.Store = (*Store)(nil)
