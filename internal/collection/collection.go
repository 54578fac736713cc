// Package collection implements the shared index pattern: a document used as
// a registry mapping an entry DID to an owner marker. Donors add their
// donation's DID so drivers can discover it; a driver accepting the job
// overwrites the marker with their own DID. Entries are never removed.
package collection

import (
	"context"
	"fmt"
	"sort"

	"givingchain/internal/documents"
	"givingchain/internal/keyring"
)

// indexPath is the well-known node holding the entry map.
const indexPath = "trackables"

// Entry is one row of the index. Owner is empty while the entry is unowned.
type Entry struct {
	DID   string
	Owner string
}

// Collection is a handle on one index document, discoverable by any instance
// through its deterministic (name, namespace) key.
type Collection struct {
	handle *documents.Handle
}

// New derives the index key and loads or creates the backing document.
func New(ctx context.Context, store documents.Store, name, namespace []byte, opts ...documents.HandleOption) (*Collection, error) {
	key := keyring.Derive(name, namespace)
	handle, err := documents.FindOrCreate(ctx, store, key.DID(), key, opts...)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", name, err)
	}
	return &Collection{handle: handle}, nil
}

func (c *Collection) DID() string { return c.handle.DID() }

// Entries refreshes to the latest index state and lists every entry, sorted
// by DID for stable output. A brand-new collection is legitimately empty.
func (c *Collection) Entries(ctx context.Context) ([]Entry, error) {
	if err := c.handle.Refresh(ctx); err != nil {
		return nil, err
	}
	raw, found := c.handle.Resolve(indexPath)
	if !found {
		return []Entry{}, nil
	}
	tree, ok := raw.(map[string]any)
	if !ok {
		return []Entry{}, nil
	}
	entries := make([]Entry, 0, len(tree))
	for did, marker := range tree {
		e := Entry{DID: did}
		if owner, ok := marker.(string); ok {
			e.Owner = owner
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DID < entries[j].DID })
	return entries, nil
}

// Add records an entry as unowned. Re-adding an existing entry is a no-op
// success, which makes the document-write/index-write pair safe to retry.
func (c *Collection) Add(ctx context.Context, did string) error {
	return c.handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		if _, exists := doc.Resolve(entryPath(did)); exists {
			return nil, nil
		}
		// false marks "unowned"
		return []documents.Transaction{documents.SetData(entryPath(did), false)}, nil
	})
}

// Claim overwrites an entry's marker with the claiming owner's DID.
// Claiming an entry already held by the same owner is a no-op success.
func (c *Collection) Claim(ctx context.Context, did, ownerDID string) error {
	return c.handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		if cur, ok := doc.Resolve(entryPath(did)); ok {
			if owner, ok := cur.(string); ok && owner == ownerDID {
				return nil, nil
			}
		}
		return []documents.Transaction{documents.SetData(entryPath(did), ownerDID)}, nil
	})
}

func entryPath(did string) string {
	return indexPath + "/" + did
}
