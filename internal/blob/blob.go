// Package blob stores donation images outside the document layer. Documents
// only ever carry the returned reference, never the bytes themselves.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"givingchain/pkg/platform/sentinel"
)

// Scheme prefixes every reference issued by a Store.
const Scheme = "blob://"

// Store holds opaque binary payloads addressed by content.
type Store interface {
	// Upload persists data and returns a stable reference for it.
	Upload(ctx context.Context, contentType string, data []byte) (string, error)
	// Resolve returns the payload behind a reference.
	Resolve(ctx context.Context, ref string) (contentType string, data []byte, err error)
}

// Object is one stored payload.
type Object struct {
	ContentType string
	Data        []byte
}

// InMemoryStore is a content-addressed in-process blob store. Uploading the
// same bytes twice yields the same reference.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]Object)}
}

func (s *InMemoryStore) Upload(_ context.Context, contentType string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	ref := Scheme + hex.EncodeToString(sum[:])

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.objects[ref] = Object{ContentType: contentType, Data: stored}
	s.mu.Unlock()
	return ref, nil
}

func (s *InMemoryStore) Resolve(_ context.Context, ref string) (string, []byte, error) {
	if !strings.HasPrefix(ref, Scheme) {
		return "", nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	obj, ok := s.objects[ref]
	s.mu.RUnlock()
	if !ok {
		return "", nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(obj.Data))
	copy(out, obj.Data)
	return obj.ContentType, out, nil
}
