package collection_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givingchain/internal/collection"
	"givingchain/internal/documents"
)

const namespace = "testnamespace"

func freshName() []byte {
	return fmt.Appendf(nil, "tree-%d", rand.Int63())
}

func TestCollection_UnknownTree(t *testing.T) {
	store := documents.NewInMemoryStore()
	c, err := collection.New(context.Background(), store, freshName(), []byte(namespace))
	require.NoError(t, err)

	require.NoError(t, c.Add(context.Background(), "did:giving:nonsense"))

	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "did:giving:nonsense", entries[0].DID)
	assert.Empty(t, entries[0].Owner, "new entries start unowned")
}

func TestCollection_EmptyIsNotAnError(t *testing.T) {
	store := documents.NewInMemoryStore()
	c, err := collection.New(context.Background(), store, freshName(), []byte(namespace))
	require.NoError(t, err)

	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCollection_TwoWritersConverge(t *testing.T) {
	store := documents.NewInMemoryStore()
	name := freshName()

	c1, err := collection.New(context.Background(), store, name, []byte(namespace))
	require.NoError(t, err)
	c2, err := collection.New(context.Background(), store, name, []byte(namespace))
	require.NoError(t, err)

	require.NoError(t, c1.Add(context.Background(), "did:giving:trackable1"))
	require.NoError(t, c2.Add(context.Background(), "did:giving:trackable2"))

	for _, c := range []*collection.Collection{c1, c2} {
		entries, err := c.Entries(context.Background())
		require.NoError(t, err)
		dids := make([]string, len(entries))
		for i, e := range entries {
			dids[i] = e.DID
		}
		assert.ElementsMatch(t, []string{"did:giving:trackable1", "did:giving:trackable2"}, dids)
	}
}

func TestCollection_Claim(t *testing.T) {
	store := documents.NewInMemoryStore()
	c, err := collection.New(context.Background(), store, freshName(), []byte(namespace))
	require.NoError(t, err)

	require.NoError(t, c.Add(context.Background(), "did:giving:box1"))
	require.NoError(t, c.Claim(context.Background(), "did:giving:box1", "did:giving:driver"))

	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "did:giving:driver", entries[0].Owner)
}

func TestCollection_IdempotentWrites(t *testing.T) {
	store := documents.NewInMemoryStore()
	c, err := collection.New(context.Background(), store, freshName(), []byte(namespace))
	require.NoError(t, err)

	require.NoError(t, c.Add(context.Background(), "did:giving:box1"))
	require.NoError(t, c.Add(context.Background(), "did:giving:box1"))

	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "re-adding must not duplicate or reset the entry")

	require.NoError(t, c.Claim(context.Background(), "did:giving:box1", "did:giving:driver"))
	require.NoError(t, c.Add(context.Background(), "did:giving:box1"))

	entries, err = c.Entries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "did:giving:driver", entries[0].Owner,
		"a retried add after a claim must not strip ownership")

	require.NoError(t, c.Claim(context.Background(), "did:giving:box1", "did:giving:driver"))
	entries, err = c.Entries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "did:giving:driver", entries[0].Owner)
}
