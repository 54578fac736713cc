package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"givingchain/internal/documents"
	"givingchain/internal/registry"
	"givingchain/internal/trackable"
	dErrors "givingchain/pkg/domain-errors"
)

const testDriversNamespace = "givingchain.test/drivers"

type DriversSuite struct {
	suite.Suite
	store *documents.InMemoryStore
}

func TestDriversSuite(t *testing.T) {
	suite.Run(t, new(DriversSuite))
}

func (s *DriversSuite) SetupTest() {
	s.store = documents.NewInMemoryStore()
}

func (s *DriversSuite) newRegistry(region string) *registry.Drivers {
	d, err := registry.NewDrivers(context.Background(), s.store, []byte(region), []byte(testDriversNamespace))
	s.Require().NoError(err)
	return d
}

func (s *DriversSuite) TestSameRegionConvergesOnOneDocument() {
	a := s.newRegistry("teaneck")
	b := s.newRegistry("teaneck")
	other := s.newRegistry("hoboken")

	s.Equal(a.DID(), b.DID(), "region name determines the registry document")
	s.NotEqual(a.DID(), other.DID())
}

func (s *DriversSuite) TestAddDriverVisibleToOtherInstances() {
	ctx := context.Background()
	a := s.newRegistry("teaneck")
	b := s.newRegistry("teaneck")

	s.Require().NoError(a.AddDriver(ctx, "did:giving:driver1"))
	s.Require().NoError(b.AddDriver(ctx, "did:giving:driver2"))

	dids, err := a.List(ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"did:giving:driver1", "did:giving:driver2"}, dids)

	ok, err := b.IsDriver(ctx, "did:giving:driver1")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = b.IsDriver(ctx, "did:giving:nobody")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *DriversSuite) TestAddDriverIsIdempotent() {
	ctx := context.Background()
	d := s.newRegistry("teaneck")

	s.Require().NoError(d.AddDriver(ctx, "did:giving:driver1"))
	s.Require().NoError(d.AddDriver(ctx, "did:giving:driver1"))

	dids, err := d.List(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"did:giving:driver1"}, dids)
}

func (s *DriversSuite) TestGraftableOwnershipShape() {
	d := s.newRegistry("teaneck")
	own := d.GraftableOwnership()

	s.Require().Len(own, 2)
	s.Equal(d.DID(), own[0])
	s.Equal(documents.GraftEntry(d.DID(), registry.DriversPath), own[1])
}

func (s *DriversSuite) TestEmptyRegistryListsNothing() {
	dids, err := s.newRegistry("fresh").List(context.Background())
	s.Require().NoError(err)
	s.Empty(dids)
}

func TestCreateRecipient(t *testing.T) {
	ctx := context.Background()
	store := documents.NewInMemoryStore()
	addr := trackable.Address{Street: "99 Depot Way", CityStateZip: "Teaneck, NJ 07666"}

	rec, err := registry.CreateRecipient(ctx, store, "food-pantry", "pw", addr, "use the loading dock")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.DID)

	t.Run("profile is recoverable from the document", func(t *testing.T) {
		doc, err := store.ResolveLatest(ctx, rec.DID)
		require.NoError(t, err)

		got := registry.RecipientFromDocument(doc)
		assert.Equal(t, "food-pantry", got.Name)
		assert.Equal(t, addr, got.Address)
		assert.Equal(t, "use the loading dock", got.Instructions)
	})

	t.Run("duplicate facility name is rejected", func(t *testing.T) {
		_, err := registry.CreateRecipient(ctx, store, "food-pantry", "other", addr, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyExists))
	})
}

func TestRecipientDirectory(t *testing.T) {
	ctx := context.Background()
	store := documents.NewInMemoryStore()
	addr := trackable.Address{Street: "99 Depot Way", CityStateZip: "Teaneck, NJ 07666"}

	dir, err := registry.NewRecipients(ctx, store, []byte("teaneck"))
	require.NoError(t, err)

	t.Run("First with no recipients is not_found", func(t *testing.T) {
		_, err := dir.First(ctx)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	first, err := registry.CreateRecipient(ctx, store, "pantry-a", "pw", addr, "dock a")
	require.NoError(t, err)
	second, err := registry.CreateRecipient(ctx, store, "pantry-b", "pw", addr, "dock b")
	require.NoError(t, err)

	require.NoError(t, dir.Add(ctx, first.DID))
	require.NoError(t, dir.Add(ctx, second.DID))
	require.NoError(t, dir.Add(ctx, first.DID), "re-adding must not error")

	t.Run("All preserves insertion order without duplicates", func(t *testing.T) {
		dids, err := dir.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{first.DID, second.DID}, dids)
	})

	t.Run("First resolves the earliest-registered facility", func(t *testing.T) {
		got, err := dir.First(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.DID, got.DID)
		assert.Equal(t, "pantry-a", got.Name)
		assert.Equal(t, "dock a", got.Instructions)
	})
}
