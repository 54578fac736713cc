//go:build integration

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givingchain/internal/auth"
	"givingchain/internal/keyring"
	"givingchain/pkg/platform/sentinel"
	"givingchain/pkg/testutil/containers"
)

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := auth.NewRedisSessionStore(rc.Client)

	key, err := keyring.Generate()
	require.NoError(t, err)

	session := &auth.Session{
		ID:        "sess-1",
		DID:       key.DID(),
		Username:  "alice",
		KeySeed:   key.Seed(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(ctx, session))

	t.Run("round trips the session and its key", func(t *testing.T) {
		got, err := store.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, session.DID, got.DID)
		assert.Equal(t, session.Username, got.Username)

		actor, err := got.Actor()
		require.NoError(t, err)
		assert.Equal(t, key.Address(), actor.Key.Address())
	})

	t.Run("delete removes the session", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "sess-1"))
		_, err := store.Get(ctx, "sess-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired sessions evict via TTL", func(t *testing.T) {
		short := &auth.Session{
			ID:        "sess-ttl",
			DID:       key.DID(),
			Username:  "alice",
			KeySeed:   key.Seed(),
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Second),
		}
		require.NoError(t, store.Create(ctx, short))

		assert.Eventually(t, func() bool {
			_, err := store.Get(ctx, "sess-ttl")
			return err != nil
		}, 5*time.Second, 200*time.Millisecond)
	})

	t.Run("rejects already expired sessions", func(t *testing.T) {
		stale := &auth.Session{
			ID:        "sess-stale",
			DID:       key.DID(),
			KeySeed:   key.Seed(),
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		assert.Error(t, store.Create(ctx, stale))
	})
}
