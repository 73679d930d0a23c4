package redis

import (
	"context"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStore_CheckAndSet_NewEvent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, domain.ProviderKRXPay, "evt_001", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "first delivery should return true")
}

func TestDedupStore_CheckAndSet_Redelivery(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, domain.ProviderKRXPay, "evt_002", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckAndSet(ctx, domain.ProviderKRXPay, "evt_002", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "redelivered event should return false")
}

func TestDedupStore_CheckAndSet_ProvidersIsolated(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	// Providers choose their own event id formats; the same id from two
	// providers is two distinct events.
	ok1, err := store.CheckAndSet(ctx, domain.ProviderKRXPay, "evt_003", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := store.CheckAndSet(ctx, domain.ProviderStripe, "evt_003", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok2)
}

func TestDedupStore_CheckAndSet_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewDedupStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, domain.ProviderAppmax, "evt_004", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Second)

	// After TTL the fast path forgets; the webhook_events unique index
	// still guards against reprocessing.
	ok, err = store.CheckAndSet(ctx, domain.ProviderAppmax, "evt_004", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
