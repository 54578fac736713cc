package trackable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givingchain/internal/documents"
)

func TestStatusMachine(t *testing.T) {
	t.Run("forward single steps are the only legal transitions", func(t *testing.T) {
		ordered := []Status{StatusCreated, StatusPublished, StatusAccepted, StatusPickedUp, StatusDelivered}
		for i, from := range ordered {
			for j, to := range ordered {
				want := j == i+1
				assert.Equal(t, want, from.CanAdvanceTo(to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("unknown status never advances", func(t *testing.T) {
		assert.False(t, Status("Lost").CanAdvanceTo(StatusAccepted))
		assert.False(t, StatusPublished.CanAdvanceTo(Status("Lost")))
	})

	t.Run("Before follows lifecycle order", func(t *testing.T) {
		assert.True(t, StatusCreated.Before(StatusDelivered))
		assert.False(t, StatusDelivered.Before(StatusAccepted))
	})
}

func TestMetadataUnion(t *testing.T) {
	t.Run("location round trips through the document shape", func(t *testing.T) {
		entries := metadataFromTree(map[string]any{
			"location": map[string]any{"street": "1 Elm", "cityStateZip": "X, NJ 00000"},
		})
		require.Len(t, entries, 1)
		require.Equal(t, MetadataLocation, entries[0].Value.Kind)
		assert.Equal(t, "1 Elm", entries[0].Value.Location.Street)

		rendered := MetadataTree(entries)
		assert.Equal(t, map[string]any{
			"location": map[string]any{"street": "1 Elm", "cityStateZip": "X, NJ 00000"},
		}, rendered)
	})

	t.Run("confirmation image is an image ref", func(t *testing.T) {
		entries := metadataFromTree(map[string]any{ConfirmationImageKey: "img://x"})
		require.Len(t, entries, 1)
		assert.Equal(t, MetadataImageRef, entries[0].Value.Kind)
		assert.Equal(t, "img://x", entries[0].Value.URL)
	})

	t.Run("unrecognized shapes fall back to the Unknown variant", func(t *testing.T) {
		entries := metadataFromTree(map[string]any{
			"location": "not an address",
			"weight":   float64(12),
		})
		require.Len(t, entries, 2)
		byKey := map[string]MetadataValue{}
		for _, e := range entries {
			byKey[e.Key] = e.Value
		}
		assert.Equal(t, MetadataUnknown, byKey["location"].Kind, "known key, wrong shape")
		assert.Equal(t, "not an address", byKey["location"].Raw)
		assert.Equal(t, MetadataUnknown, byKey["weight"].Kind)
	})

	t.Run("free text under an unknown key stays readable", func(t *testing.T) {
		entries := metadataFromTree(map[string]any{"note": "ring the bell"})
		require.Len(t, entries, 1)
		assert.Equal(t, MetadataFreeform, entries[0].Value.Kind)
		assert.Equal(t, "ring the bell", entries[0].Value.Text)
	})
}

func TestFromDocument(t *testing.T) {
	doc := &documents.Document{
		DID: "did:giving:box1",
		Data: map[string]any{
			"name":   "box1",
			"image":  "blob://abc",
			"status": "Accepted",
			"driver": "did:giving:driverD",
			"metadata": map[string]any{
				"location": map[string]any{"street": "1 Elm", "cityStateZip": "X, NJ 00000"},
			},
			"collaborators": map[string]any{
				"did:giving:friend": true,
			},
			"updates": map[string]any{
				"2000": map[string]any{
					"id":        "u2",
					"timestamp": "2026-01-02T00:00:00Z",
					"message":   "accepted",
					"userDid":   "did:giving:driverD",
				},
				"1000": map[string]any{
					"id":       "u1",
					"message":  "ready for pickup",
					"userName": "donor",
				},
				"junk": "not an update",
			},
		},
	}

	tr := FromDocument(doc)

	assert.Equal(t, "box1", tr.Name)
	assert.Equal(t, StatusAccepted, tr.Status)
	assert.Equal(t, "did:giving:driverD", tr.Driver)
	assert.Equal(t, []string{"did:giving:friend"}, tr.Collaborators)

	require.Len(t, tr.Updates, 2)
	assert.Equal(t, "u1", tr.Updates[0].ID, "updates sorted by timestamp key")
	assert.Equal(t, "u2", tr.Updates[1].ID)
	assert.Equal(t, time.UnixMilli(1000).UTC(), tr.Updates[0].Timestamp,
		"millisecond key is the fallback timestamp")
	assert.Equal(t, "2026-01-02T00:00:00Z", tr.Updates[1].Timestamp.Format(time.RFC3339))
}

func TestFromDocument_EmptyDocument(t *testing.T) {
	tr := FromDocument(&documents.Document{DID: "did:giving:empty", Data: map[string]any{}})
	assert.Equal(t, "did:giving:empty", tr.DID)
	assert.Empty(t, tr.Updates)
	assert.Empty(t, tr.Metadata)
	assert.Equal(t, Status(""), tr.Status)
}
