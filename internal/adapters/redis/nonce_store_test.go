package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceStore_MarkAndCheck(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewNonceStore(client)
	ctx := context.Background()

	superseded, err := store.IsSuperseded(ctx, "nonce-1")
	require.NoError(t, err)
	assert.False(t, superseded)

	require.NoError(t, store.MarkSuperseded(ctx, "nonce-1", time.Minute))

	superseded, err = store.IsSuperseded(ctx, "nonce-1")
	require.NoError(t, err)
	assert.True(t, superseded)

	// Other nonces are unaffected.
	superseded, err = store.IsSuperseded(ctx, "nonce-2")
	require.NoError(t, err)
	assert.False(t, superseded)
}

func TestNonceStore_MarkExpires(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewNonceStore(client)
	ctx := context.Background()

	require.NoError(t, store.MarkSuperseded(ctx, "nonce-ttl", 100*time.Millisecond))

	time.Sleep(200 * time.Millisecond)

	superseded, err := store.IsSuperseded(ctx, "nonce-ttl")
	require.NoError(t, err)
	assert.False(t, superseded)
}

func TestNonceStore_NonPositiveTTLIsNoop(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewNonceStore(client)
	ctx := context.Background()

	require.NoError(t, store.MarkSuperseded(ctx, "nonce-past", -time.Second))

	superseded, err := store.IsSuperseded(ctx, "nonce-past")
	require.NoError(t, err)
	assert.False(t, superseded)
}

func TestNonceStore_EmptyNonce(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewNonceStore(client)
	ctx := context.Background()

	require.Error(t, store.MarkSuperseded(ctx, "", time.Minute))

	superseded, err := store.IsSuperseded(ctx, "")
	require.NoError(t, err)
	assert.False(t, superseded)
}
