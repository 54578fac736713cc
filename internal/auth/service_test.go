package auth_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givingchain/internal/audit"
	"givingchain/internal/auth"
	"givingchain/internal/documents"
	"givingchain/internal/identity"
	dErrors "givingchain/pkg/domain-errors"
)

func newAuthService(t *testing.T) (*auth.Service, *audit.InMemoryStore) {
	t.Helper()
	store := documents.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	auditStore := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(auditStore)
	t.Cleanup(auditor.Close)

	ids := identity.NewService(store, []byte("givingchain.test"), logger)
	tokens := auth.NewTokenService("test-signing-key", "givingchain", "givingchain-clients")
	return auth.NewService(ids, auth.NewInMemorySessionStore(), tokens, auditor, logger), auditStore
}

func TestRegisterAndResume(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)

	result, err := svc.Register(ctx, "donor1", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)

	actor, err := svc.Resume(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.Actor.DID, actor.DID)
	assert.True(t, actor.Authenticated(), "resumed actor must carry a usable key")
	assert.Equal(t, result.Actor.Key.Address(), actor.Key.Address(),
		"resumed key must match the registered key")
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials open a session", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, err := svc.Register(ctx, "driver1", "hunter2")
		require.NoError(t, err)

		result, err := svc.Login(ctx, "driver1", "hunter2")
		require.NoError(t, err)

		actor, err := svc.Resume(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "driver1", actor.Username)
	})

	t.Run("bad credentials are audited", func(t *testing.T) {
		svc, auditStore := newAuthService(t)
		_, err := svc.Register(ctx, "driver1", "hunter2")
		require.NoError(t, err)

		_, err = svc.Login(ctx, "driver1", "wrong")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		recent, err := auditStore.ListRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, string(audit.EventLoginFailed), recent[0].Action)
	})
}

func TestResumeRejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Resume(ctx, "not-a-jwt")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("token from another signing key", func(t *testing.T) {
		foreign := auth.NewTokenService("other-key", "givingchain", "givingchain-clients")
		token, err := foreign.GenerateAccessToken(&auth.Session{ID: "x"}, time.Minute)
		require.NoError(t, err)

		_, err = svc.Resume(ctx, token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("logged-out session", func(t *testing.T) {
		result, err := svc.Register(ctx, "donor2", "pw")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, result.AccessToken))

		_, err = svc.Resume(ctx, result.AccessToken)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})
}

func TestSessionExpiry(t *testing.T) {
	store := auth.NewInMemorySessionStore()
	session := &auth.Session{
		ID:        "s1",
		DID:       "did:giving:x",
		KeySeed:   make([]byte, 32),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.Create(context.Background(), session))

	_, err := store.Get(context.Background(), "s1")
	assert.Error(t, err, "expired sessions must not resolve")
}
