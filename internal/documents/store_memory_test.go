package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"givingchain/internal/keyring"
	"givingchain/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *MemoryStoreSuite) publish(key *keyring.Key, txns ...Transaction) *Document {
	doc, err := s.store.AppendTransactions(context.Background(), key.DID(), "", key, txns)
	s.Require().NoError(err)
	return doc
}

func (s *MemoryStoreSuite) TestResolveLatest() {
	s.Run("unknown did returns ErrNotFound", func() {
		_, err := s.store.ResolveLatest(context.Background(), "did:giving:missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns latest published state", func() {
		key := keyring.Derive([]byte("resolve-test"), []byte("ns"))
		published := s.publish(key, SetData("name", "box1"))

		doc, err := s.store.ResolveLatest(context.Background(), key.DID())
		s.Require().NoError(err)
		s.Equal(published.Tip, doc.Tip)
		name, ok := doc.Resolve("name")
		s.Require().True(ok)
		s.Equal("box1", name)
	})
}

func (s *MemoryStoreSuite) TestAppendTransactions() {
	s.Run("new document requires the deriving key", func() {
		key := keyring.Derive([]byte("owner"), []byte("ns"))
		other := keyring.Derive([]byte("intruder"), []byte("ns"))

		_, err := s.store.AppendTransactions(context.Background(), key.DID(), "", other, []Transaction{SetData("a", 1)})
		s.Require().ErrorIs(err, sentinel.ErrUnauthorized)

		_, err = s.store.AppendTransactions(context.Background(), key.DID(), "", key, []Transaction{SetData("a", 1)})
		s.Require().NoError(err)
	})

	s.Run("stale tip returns ErrConflict", func() {
		key := keyring.Derive([]byte("stale-tip"), []byte("ns"))
		first := s.publish(key, SetData("a", 1))

		_, err := s.store.AppendTransactions(context.Background(), key.DID(), first.Tip, key, []Transaction{SetData("b", 2)})
		s.Require().NoError(err)

		// second append against the already consumed tip
		_, err = s.store.AppendTransactions(context.Background(), key.DID(), first.Tip, key, []Transaction{SetData("c", 3)})
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("signer outside ownership set returns ErrUnauthorized", func() {
		key := keyring.Derive([]byte("sealed"), []byte("ns"))
		intruder := keyring.Derive([]byte("someone-else"), []byte("ns"))
		doc := s.publish(key, SetData("a", 1))

		_, err := s.store.AppendTransactions(context.Background(), key.DID(), doc.Tip, intruder, []Transaction{SetData("a", 2)})
		s.Require().ErrorIs(err, sentinel.ErrUnauthorized)
	})

	s.Run("setOwnership transfers write access", func() {
		creator := keyring.Derive([]byte("creator"), []byte("ns"))
		next := keyring.Derive([]byte("next-owner"), []byte("ns"))
		doc := s.publish(creator, SetOwnership(next.Address()))

		// the original creator lost access with the transfer
		_, err := s.store.AppendTransactions(context.Background(), creator.DID(), doc.Tip, creator, []Transaction{SetData("a", 1)})
		s.Require().ErrorIs(err, sentinel.ErrUnauthorized)

		_, err = s.store.AppendTransactions(context.Background(), creator.DID(), doc.Tip, next, []Transaction{SetData("a", 1)})
		s.Require().NoError(err)
	})
}

func (s *MemoryStoreSuite) TestGraftedOwnership() {
	s.Run("graft path authorizes members of the registry list", func() {
		registryKey := keyring.Derive([]byte("drivers-registry"), []byte("ns"))
		driver := keyring.Derive([]byte("driver-1"), []byte("ns"))
		outsider := keyring.Derive([]byte("driver-2"), []byte("ns"))

		s.publish(registryKey, SetData("drivers", []string{driver.DID()}))

		donationKey := keyring.Derive([]byte("donation"), []byte("ns"))
		doc := s.publish(donationKey,
			SetData("name", "box1"),
			SetOwnership(donationKey.Address(), GraftEntry(registryKey.DID(), "drivers")),
		)

		_, err := s.store.AppendTransactions(context.Background(), donationKey.DID(), doc.Tip, driver, []Transaction{SetData("status", "Accepted")})
		s.Require().NoError(err)

		latest, err := s.store.ResolveLatest(context.Background(), donationKey.DID())
		s.Require().NoError(err)
		_, err = s.store.AppendTransactions(context.Background(), donationKey.DID(), latest.Tip, outsider, []Transaction{SetData("status", "stolen")})
		s.Require().ErrorIs(err, sentinel.ErrUnauthorized)
	})

	s.Run("bare DID entry grafts to that document's owners", func() {
		registryKey := keyring.Derive([]byte("registry"), []byte("ns"))
		s.publish(registryKey, SetData("x", 1))

		docKey := keyring.Derive([]byte("grafted-doc"), []byte("ns"))
		doc := s.publish(docKey, SetOwnership(registryKey.DID()))

		_, err := s.store.AppendTransactions(context.Background(), docKey.DID(), doc.Tip, registryKey, []Transaction{SetData("y", 2)})
		s.Require().NoError(err)
	})

	s.Run("graft to unpublished registry authorizes nobody", func() {
		ghostRegistry := keyring.Derive([]byte("ghost"), []byte("ns"))
		driver := keyring.Derive([]byte("driver-x"), []byte("ns"))

		docKey := keyring.Derive([]byte("orphan"), []byte("ns"))
		doc := s.publish(docKey, SetOwnership(docKey.Address(), GraftEntry(ghostRegistry.DID(), "drivers")))

		_, err := s.store.AppendTransactions(context.Background(), docKey.DID(), doc.Tip, driver, []Transaction{SetData("a", 1)})
		s.Require().ErrorIs(err, sentinel.ErrUnauthorized)
	})
}

func (s *MemoryStoreSuite) TestPathTree() {
	key := keyring.Derive([]byte("paths"), []byte("ns"))
	doc := s.publish(key,
		SetData("updates/100", map[string]any{"message": "ready"}),
		SetData("updates/200", map[string]any{"message": "picked up"}),
	)

	updates, ok := doc.Resolve("updates")
	s.Require().True(ok)
	tree, ok := updates.(map[string]any)
	s.Require().True(ok)
	s.Len(tree, 2)

	_, ok = doc.Resolve("updates/300")
	s.False(ok, "absent path resolves to not-found, not an error")

	_, ok = doc.Resolve("updates/100/message/deeper")
	s.False(ok, "descending through a leaf resolves to not-found")
}
