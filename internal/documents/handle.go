package documents

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"givingchain/internal/keyring"
	"givingchain/pkg/platform/sentinel"
)

// Handle is a process-local cache of the best-known state for one document,
// paired with the signing key used to mutate it. Every higher-level store
// (collections, registries, the lifecycle engine) follows the same
// refresh, read, decide, append pattern, so the policy for each step lives
// here and nowhere else.
//
// Operations on one handle are serialized by an internal mutex: a call always
// starts from the result of the previous one. Handles on different documents,
// or two handles on the same document, are not mutually excluded; the store's
// tip check decides those races.
type Handle struct {
	mu    sync.Mutex
	store Store
	key   *keyring.Key
	doc   *Document

	maxRetries int
}

// defaultMaxRetries bounds the refresh-and-retry loop in Update. The
// original system never retried and leaned on low throughput; a small bound
// keeps that assumption from being load-bearing.
const defaultMaxRetries = 3

type HandleOption func(*Handle)

// WithMaxRetries overrides how many times Update retries on a stale tip.
// Zero restores the strict no-retry behavior.
func WithMaxRetries(n int) HandleOption {
	return func(h *Handle) { h.maxRetries = n }
}

// FindOrCreate fetches the latest state for did, or wraps a brand-new empty
// document owned by key when the store has never seen the DID. Any store
// failure other than "not found" surfaces as sentinel.ErrUnavailable.
func FindOrCreate(ctx context.Context, store Store, did string, key *keyring.Key, opts ...HandleOption) (*Handle, error) {
	doc, err := store.ResolveLatest(ctx, did)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("resolve %s: %w", did, sentinel.ErrUnavailable)
		}
		doc = NewEmpty(did, key.Address())
	}
	h := &Handle{store: store, key: key, doc: doc, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handle) DID() string { return h.doc.DID }

// Key returns the signing key the handle mutates with.
func (h *Handle) Key() *keyring.Key { return h.key }

// Tip returns the currently believed tip.
func (h *Handle) Tip() Tip {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Tip
}

// Document returns a snapshot of the best-known state.
func (h *Handle) Document() *Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Clone()
}

// Resolve reads a path from the best-known state.
func (h *Handle) Resolve(path string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Resolve(path)
}

// Refresh re-fetches the latest state, preserving the signing key. A "not
// found" result leaves the handle at its prior state; that is how a
// just-created-but-unpublished document survives a premature refresh. Any
// other failure surfaces as sentinel.ErrUnavailable and leaves the previous
// state undisturbed.
func (h *Handle) Refresh(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshLocked(ctx)
}

func (h *Handle) refreshLocked(ctx context.Context) error {
	latest, err := h.store.ResolveLatest(ctx, h.doc.DID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("refresh %s: %w", h.doc.DID, sentinel.ErrUnavailable)
	}
	h.doc = latest
	return nil
}

// Apply submits the batch against the current tip, with no refresh and no
// retry. On success the handle reflects the new tip, so a subsequent call on
// the same handle observes its own write without a round trip. A stale tip
// surfaces as sentinel.ErrConflict.
func (h *Handle) Apply(ctx context.Context, txns ...Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.applyLocked(ctx, txns)
}

func (h *Handle) applyLocked(ctx context.Context, txns []Transaction) error {
	next, err := h.store.AppendTransactions(ctx, h.doc.DID, h.doc.Tip, h.key, txns)
	if err != nil {
		return err
	}
	h.doc = next
	return nil
}

// Update runs the refresh-then-append pattern: fetch latest, rebuild the
// batch from fresh state, append. On a stale tip it refreshes and retries up
// to the configured bound before surfacing sentinel.ErrConflict. A build
// function returning an empty batch short-circuits to success, which is what
// makes idempotent index writes cheap.
func (h *Handle) Update(ctx context.Context, build func(doc *Document) ([]Transaction, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	attempts := h.maxRetries + 1
	var lastErr error
	for range attempts {
		if err := h.refreshLocked(ctx); err != nil {
			return err
		}
		txns, err := build(h.doc.Clone())
		if err != nil {
			return err
		}
		if len(txns) == 0 {
			return nil
		}
		lastErr = h.applyLocked(ctx, txns)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, sentinel.ErrConflict) {
			return lastErr
		}
	}
	return lastErr
}
