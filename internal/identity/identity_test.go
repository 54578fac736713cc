package identity_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givingchain/internal/documents"
	"givingchain/internal/identity"
	dErrors "givingchain/pkg/domain-errors"
)

func newService() (*identity.Service, *documents.InMemoryStore) {
	store := documents.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	return identity.NewService(store, []byte("givingchain.test"), logger), store
}

func TestRegister(t *testing.T) {
	t.Run("creates an account and returns an authenticated actor", func(t *testing.T) {
		svc, store := newService()

		actor, err := svc.Register(context.Background(), "tobowers", "secret")
		require.NoError(t, err)
		assert.True(t, actor.Authenticated())
		assert.Equal(t, "tobowers", actor.Username)

		doc, err := store.ResolveLatest(context.Background(), actor.DID)
		require.NoError(t, err)
		username, ok := doc.Resolve(identity.UsernamePath)
		require.True(t, ok, "username must be recoverable from the document")
		assert.Equal(t, "tobowers", username)
		assert.Equal(t, []string{actor.Key.Address()}, doc.Ownership,
			"ownership must move to the secure key in the first write")
	})

	t.Run("duplicate username returns already_exists", func(t *testing.T) {
		svc, _ := newService()

		_, err := svc.Register(context.Background(), "taken", "pw1")
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), "taken", "pw2")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyExists))
	})
}

func TestVerify(t *testing.T) {
	t.Run("correct password authenticates", func(t *testing.T) {
		svc, _ := newService()
		registered, err := svc.Register(context.Background(), "driver1", "hunter2")
		require.NoError(t, err)

		actor, err := svc.Verify(context.Background(), "driver1", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, registered.DID, actor.DID)
		assert.True(t, actor.Authenticated())
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		svc, _ := newService()
		_, err := svc.Register(context.Background(), "driver1", "hunter2")
		require.NoError(t, err)

		_, err = svc.Verify(context.Background(), "driver1", "wrong")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown username is unauthorized, not not_found", func(t *testing.T) {
		svc, _ := newService()

		_, err := svc.Verify(context.Background(), "nobody", "pw")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized),
			"login must not leak which usernames exist")
	})
}

func TestFindAccount(t *testing.T) {
	svc, _ := newService()
	registered, err := svc.Register(context.Background(), "facility", "pw")
	require.NoError(t, err)

	t.Run("resolves without authentication", func(t *testing.T) {
		doc, err := svc.FindAccount(context.Background(), "facility")
		require.NoError(t, err)
		assert.Equal(t, registered.DID, doc.DID)
		assert.NotEmpty(t, doc.Ownership)
	})

	t.Run("unknown username returns not_found", func(t *testing.T) {
		_, err := svc.FindAccount(context.Background(), "ghost")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestActorContext(t *testing.T) {
	t.Run("zero actor when absent", func(t *testing.T) {
		assert.False(t, identity.ActorFrom(context.Background()).Authenticated())
	})

	t.Run("round trips through the context", func(t *testing.T) {
		svc, _ := newService()
		actor, err := svc.Register(context.Background(), "ctxuser", "pw")
		require.NoError(t, err)

		ctx := identity.WithActor(context.Background(), actor)
		assert.Equal(t, actor, identity.ActorFrom(ctx))
	})
}
