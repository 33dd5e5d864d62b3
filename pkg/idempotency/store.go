package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store deduplicates externally triggered work, such as replayed provider
// callbacks. Seen and Mark are separate so callers can mark only after the
// work has actually been persisted; a transient failure in between leaves the
// key unset and the retried delivery is processed again.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Seen reports whether the key has been marked.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the key with the store's TTL.
func (s *Store) Mark(ctx context.Context, key string) error {
	return s.rdb.SetNX(ctx, key, "1", s.ttl).Err()
}
