// Package documents implements the key-owned, append-only document
// abstraction the rest of the system is built on. A Document is a
// path-addressed tree of JSON-like values plus an ordered ownership set; it
// advances by appending transactions against its current tip, and a store
// accepts a transaction batch only when the expected tip is still current and
// the signing key is authorized by the ownership set.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"givingchain/internal/keyring"
	"givingchain/pkg/platform/sentinel"
)

// Tip points at a document's latest verified state. The zero value marks a
// document that exists locally but has never been published.
type Tip string

// TxKind enumerates the transaction kinds the store consumes.
type TxKind string

const (
	TxSetData      TxKind = "setData"
	TxSetOwnership TxKind = "setOwnership"
)

// Transaction is one mutation in an append batch.
type Transaction struct {
	Kind      TxKind   `json:"kind"`
	Path      string   `json:"path,omitempty"`
	Value     any      `json:"value,omitempty"`
	Ownership []string `json:"ownership,omitempty"`
}

// SetData builds a transaction writing value at the given path, creating
// intermediate nodes as needed.
func SetData(path string, value any) Transaction {
	return Transaction{Kind: TxSetData, Path: path, Value: value}
}

// SetOwnership builds a transaction replacing the document's ownership set.
func SetOwnership(entries ...string) Transaction {
	return Transaction{Kind: TxSetOwnership, Ownership: entries}
}

// Document is the best-known state of one identifier. Instances returned by
// stores are snapshots; mutating one never affects the store.
type Document struct {
	DID       string
	Tip       Tip
	Data      map[string]any
	Ownership []string
}

// NewEmpty builds the unpublished initial state for a DID, owned by the
// given signer address.
func NewEmpty(did, ownerAddress string) *Document {
	return &Document{
		DID:       did,
		Data:      map[string]any{},
		Ownership: []string{ownerAddress},
	}
}

// Resolve reads the value at a path in the data tree.
func (d *Document) Resolve(path string) (any, bool) {
	return resolvePath(d.Data, path)
}

// Clone deep-copies the document through a JSON round trip, which also
// normalizes values to their JSON representations.
func (d *Document) Clone() *Document {
	out := &Document{DID: d.DID, Tip: d.Tip}
	out.Data = deepCopyTree(d.Data)
	out.Ownership = append([]string(nil), d.Ownership...)
	return out
}

// applyAll mutates the document in place with the batch and advances the tip.
func (d *Document) applyAll(txns []Transaction) {
	for _, tx := range txns {
		switch tx.Kind {
		case TxSetData:
			setPath(d.Data, tx.Path, tx.Value)
		case TxSetOwnership:
			d.Ownership = append([]string(nil), tx.Ownership...)
		}
	}
	d.Tip = nextTip(d.Tip, txns)
}

func deepCopyTree(in map[string]any) map[string]any {
	raw, err := json.Marshal(in)
	if err != nil {
		// data trees only ever hold JSON-marshaled values
		panic(fmt.Sprintf("documents: clone: %v", err))
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("documents: clone: %v", err))
	}
	return out
}

// nextTip derives the successor tip for an accepted batch.
func nextTip(prev Tip, txns []Transaction) Tip {
	h := sha256.New()
	h.Write([]byte(prev))
	raw, _ := json.Marshal(txns)
	h.Write(raw)
	return Tip(hex.EncodeToString(h.Sum(nil)))
}

// Store is the document store every higher layer talks to.
//
// ResolveLatest returns sentinel.ErrNotFound when the DID has no published
// document and sentinel.ErrUnavailable on infrastructure failure.
//
// AppendTransactions returns the post-append state. It fails with
// sentinel.ErrConflict when expected is stale, sentinel.ErrUnauthorized when
// the key is not in the ownership set (or, for a new document, did not derive
// the DID), and sentinel.ErrUnavailable on infrastructure failure.
type Store interface {
	ResolveLatest(ctx context.Context, did string) (*Document, error)
	AppendTransactions(ctx context.Context, did string, expected Tip, key *keyring.Key, txns []Transaction) (*Document, error)
}

// graftSeparator splits a graft ownership entry into registry DID and data
// path, e.g. "did:giving:abc/tree/data/drivers".
const graftSeparator = "/tree/data/"

// GraftEntry builds an ownership entry delegating write access to the DIDs
// listed at path inside the registry document.
func GraftEntry(registryDID, path string) string {
	return registryDID + graftSeparator + path
}

// maxGraftDepth bounds ownership recursion so mutually grafted documents
// cannot loop the authorization check.
const maxGraftDepth = 3

type resolver func(ctx context.Context, did string) (*Document, error)

// authorize checks that key may append to doc. Stores call this with their
// own lookup function so graft entries can be resolved against live state.
func authorize(ctx context.Context, resolve resolver, doc *Document, key *keyring.Key) error {
	if doc.Tip == "" {
		// brand-new document: only the key that derives the DID may publish it
		if key.DID() != doc.DID {
			return fmt.Errorf("key did not derive %s: %w", doc.DID, sentinel.ErrUnauthorized)
		}
		return nil
	}
	ok, err := ownershipAuthorizes(ctx, resolve, doc.Ownership, key, maxGraftDepth)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("signer %s not in ownership of %s: %w", key.Address(), doc.DID, sentinel.ErrUnauthorized)
	}
	return nil
}

func ownershipAuthorizes(ctx context.Context, resolve resolver, entries []string, key *keyring.Key, depth int) (bool, error) {
	if depth <= 0 {
		return false, nil
	}
	for _, entry := range entries {
		switch {
		case entry == key.Address() || entry == key.DID():
			return true, nil
		case strings.Contains(entry, graftSeparator):
			ok, err := graftPathAuthorizes(ctx, resolve, entry, key, depth)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		case strings.HasPrefix(entry, keyring.DIDPrefix):
			// a bare DID grafts to whoever currently owns that document
			target, err := resolve(ctx, entry)
			if err != nil {
				if errorsIsNotFound(err) {
					continue
				}
				return false, err
			}
			ok, err := ownershipAuthorizes(ctx, resolve, target.Ownership, key, depth-1)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// graftPathAuthorizes resolves a "<did>/tree/data/<path>" entry and checks
// the DID list stored there. A listed member matches the signer directly, or
// recursively through the ownership of the document it names, so a registry
// can list account DIDs while signing happens with the account's secure key.
func graftPathAuthorizes(ctx context.Context, resolve resolver, entry string, key *keyring.Key, depth int) (bool, error) {
	idx := strings.Index(entry, graftSeparator)
	registryDID := entry[:idx]
	path := entry[idx+len(graftSeparator):]

	registry, err := resolve(ctx, registryDID)
	if err != nil {
		if errorsIsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	val, found := registry.Resolve(path)
	if !found {
		return false, nil
	}
	members, ok := val.([]any)
	if !ok {
		return false, nil
	}
	var dids []string
	for _, m := range members {
		s, ok := m.(string)
		if !ok {
			continue
		}
		if s == key.DID() || s == key.Address() {
			return true, nil
		}
		dids = append(dids, s)
	}
	return ownershipAuthorizes(ctx, resolve, dids, key, depth-1)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
