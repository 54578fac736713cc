package audit

import "context"

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
