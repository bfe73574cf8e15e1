package events

import (
	"context"
	"log/slog"
	"sync"
)

// Async hands events to a background goroutine that forwards them, in order, to
// the wrapped publisher. Publish never blocks the caller: when the buffer is full
// the event is dropped and logged.
type Async struct {
	next    Publisher
	events  chan Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	once    sync.Once
	closeMu sync.RWMutex
	closed  bool
}

// AsyncOption configures Async.
type AsyncOption func(*Async)

// WithAsyncLogger sets a logger for dropped events and delivery failures.
func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) {
		a.logger = logger
	}
}

// NewAsync starts forwarding to next with a buffer of the given size.
func NewAsync(next Publisher, size int, opts ...AsyncOption) *Async {
	if size <= 0 {
		size = 1
	}
	a := &Async{next: next, events: make(chan Event, size)}
	for _, opt := range opts {
		opt(a)
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for event := range a.events {
		if err := a.next.Publish(context.Background(), event); err != nil && a.logger != nil {
			a.logger.Error("failed to deliver registry event",
				"error", err,
				"event", string(event.Kind),
				"request_id", event.RequestID,
			)
		}
	}
}

func (a *Async) Publish(ctx context.Context, event Event) error {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()
	if a.closed {
		return ErrPublisherClosed
	}
	select {
	case a.events <- event:
	default:
		if a.logger != nil {
			a.logger.WarnContext(ctx, "registry event buffer full, event dropped",
				"event", string(event.Kind),
				"request_id", event.RequestID,
			)
		}
	}
	return nil
}

// Close stops accepting events and waits for buffered ones to drain.
func (a *Async) Close() {
	a.once.Do(func() {
		a.closeMu.Lock()
		a.closed = true
		close(a.events)
		a.closeMu.Unlock()
		a.wg.Wait()
	})
}

var _ Publisher = (*Async)(nil)
