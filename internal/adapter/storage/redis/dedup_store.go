package redis

import (
	"context"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// DedupStore implements ports.DedupStore using Redis SET NX. It is the
// fast path in front of the webhook_events unique index: a hit lets the
// receiver acknowledge redelivered events without touching PostgreSQL.
type DedupStore struct {
	client *goredis.Client
	prefix string
}

// NewDedupStore creates a new Redis-backed webhook dedup store.
func NewDedupStore(client *goredis.Client) *DedupStore {
	return &DedupStore{
		client: client,
		prefix: "hookdedup:",
	}
}

// CheckAndSet atomically records the event id, returning true if it was
// not seen before.
func (s *DedupStore) CheckAndSet(ctx context.Context, provider domain.Provider, eventID string, ttl time.Duration) (bool, error) {
	key := s.prefix + string(provider) + ":" + eventID
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — event was already received
			return false, nil
		}
		return false, fmt.Errorf("redis dedup check: %w", err)
	}
	return result == "OK", nil
}
