package audit

import "context"

// TeeStore fans writes out to every store and serves reads from the first.
// Typical wiring: an in-memory store for queries plus a Kafka sink.
type TeeStore struct {
	stores []Store
}

func NewTeeStore(stores ...Store) *TeeStore {
	return &TeeStore{stores: stores}
}

func (t *TeeStore) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, s := range t.stores {
		if err := s.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *TeeStore) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	return t.stores[0].ListBySubject(ctx, subject)
}

func (t *TeeStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return t.stores[0].ListRecent(ctx, limit)
}
