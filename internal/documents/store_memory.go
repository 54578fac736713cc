package documents

import (
	"context"
	"fmt"
	"sync"

	"givingchain/internal/keyring"
	"givingchain/pkg/platform/sentinel"
)

// InMemoryStore keeps every document in process memory. It is the default
// for tests and single-node development; redis and postgres variants carry
// the same contract for shared deployments.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]*Document)}
}

func (s *InMemoryStore) ResolveLatest(_ context.Context, did string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[did]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", did, sentinel.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (s *InMemoryStore) AppendTransactions(ctx context.Context, did string, expected Tip, key *keyring.Key, txns []Transaction) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// graft entries resolve against the store's current state; the lock is
	// already held, so read the map directly
	resolveLocked := func(_ context.Context, graftDID string) (*Document, error) {
		if d, ok := s.docs[graftDID]; ok {
			return d.Clone(), nil
		}
		return nil, fmt.Errorf("document %s: %w", graftDID, sentinel.ErrNotFound)
	}

	var base *Document
	if cur, ok := s.docs[did]; ok {
		if cur.Tip != expected {
			return nil, fmt.Errorf("document %s at %s, expected %s: %w", did, cur.Tip, expected, sentinel.ErrConflict)
		}
		base = cur.Clone()
	} else {
		if expected != "" {
			return nil, fmt.Errorf("document %s not published, expected %s: %w", did, expected, sentinel.ErrConflict)
		}
		base = NewEmpty(did, key.Address())
	}

	if err := authorize(ctx, resolveLocked, base, key); err != nil {
		return nil, err
	}

	base.applyAll(txns)
	stored := base.Clone()
	s.docs[did] = stored
	return stored.Clone(), nil
}
