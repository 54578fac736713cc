package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"givingchain/pkg/requestcontext"
)

// ErrBufferFull is returned by async Emit when the inbox cannot accept the
// event. Audit emission never blocks domain logic.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher writes events to a store, either synchronously or through a
// bounded channel drained by a background goroutine.
type Publisher struct {
	store Store

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with a bounded
// inbox of the given size.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records an event. A zero timestamp is filled in from the request
// context clock. In async mode a full inbox drops the event and returns
// ErrBufferFull rather than blocking the caller.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns the events recorded for one subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close drains any buffered events and stops the background goroutine.
// Safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox == nil {
			close(p.done)
			return
		}
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		// persistence failures are deliberately swallowed here; audit is
		// best-effort in async mode
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.store.Append(ctx, event)
		cancel()
	}
}
