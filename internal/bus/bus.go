// Package bus implements the typed, in-process, asynchronous pub/sub event
// bus at the center of the trading core. It generalizes the teacher's
// single-topic candle FanOut into multi-topic dispatch with per-publish
// handler isolation and a bounded event history.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"trading-systemv1/internal/ringbuf"

	"trading-systemv1/internal/model"
)

// historySize is the number of past events retained for debugging (§4.A).
const historySize = 1000

// Handler processes one event. A handler's error is logged and isolated: it
// never reaches sibling handlers or the publisher.
type Handler func(ctx context.Context, evt model.Event) error

// Recorder receives bus-level counters for external instrumentation
// (metrics). It is optional and defined here, not imported, so the bus has
// no dependency on any specific metrics backend.
type Recorder interface {
	EventPublished(eventType model.EventType)
	HandlerError(eventType model.EventType)
	HandlerPanic(eventType model.EventType)
}

// Subscription is the handle returned by Subscribe; pass it to Unsubscribe
// to remove the registration. Funcs are not comparable in Go, so Subscribe
// wraps each handler in a unique handle rather than requiring the caller to
// keep the original func value around for identity.
type Subscription struct {
	eventType model.EventType
	id        uint64
}

// Bus fans typed events out to subscribers. All exported methods are safe
// for concurrent use.
type Bus struct {
	logger   *slog.Logger
	recorder Recorder

	mu          sync.RWMutex
	subscribers map[model.EventType]map[uint64]Handler
	nextID      uint64

	history *ringbuf.Ring
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:      logger,
		subscribers: make(map[model.EventType]map[uint64]Handler),
		history:     ringbuf.New(historySize),
	}
}

// SetRecorder attaches a metrics Recorder, replacing any previous one. The
// assignment is not synchronized with Publish; call it once during startup
// before the bus takes traffic.
func (b *Bus) SetRecorder(r Recorder) {
	b.recorder = r
}

// Subscribe registers handler for eventType and returns a Subscription used
// to unsubscribe later. Each call creates a new, independent registration —
// idempotence at the (event_type, handler) level is the caller's
// responsibility to enforce by not calling Subscribe twice for logically
// the same handler.
func (b *Bus) Subscribe(eventType model.EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[uint64]Handler)
	}
	b.subscribers[eventType][id] = handler
	return Subscription{eventType: eventType, id: id}
}

// Unsubscribe removes a registration. An unknown subscription is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.subscribers[sub.eventType]
	if handlers == nil {
		return
	}
	delete(handlers, sub.id)
}

// Publish delivers evt to every handler currently subscribed to evt.Type.
// Sibling handlers run concurrently; Publish returns once all of them have
// completed or failed. A handler panic or error is recovered, logged with
// the event id, and does not affect delivery to other handlers or to
// subsequent publishes.
func (b *Bus) Publish(ctx context.Context, evt model.Event) {
	b.history.Push(evt)
	if b.recorder != nil {
		b.recorder.EventPublished(evt.Type)
	}

	b.mu.RLock()
	handlers := b.subscribers[evt.Type]
	snapshot := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(snapshot))
	for _, h := range snapshot {
		go func(handler Handler) {
			defer wg.Done()
			defer b.recoverHandler(evt)
			if err := handler(ctx, evt); err != nil {
				b.logger.Warn("event handler returned error",
					slog.String("event_id", evt.ID),
					slog.String("event_type", string(evt.Type)),
					slog.Any("error", err))
				if b.recorder != nil {
					b.recorder.HandlerError(evt.Type)
				}
			}
		}(h)
	}
	wg.Wait()
}

func (b *Bus) recoverHandler(evt model.Event) {
	if r := recover(); r != nil {
		b.logger.Error("event handler panicked",
			slog.String("event_id", evt.ID),
			slog.String("event_type", string(evt.Type)),
			slog.Any("panic", r))
		if b.recorder != nil {
			b.recorder.HandlerPanic(evt.Type)
		}
	}
}

// History returns the last min(N, 1000) published events, oldest first.
func (b *Bus) History() []model.Event {
	return b.history.Snapshot()
}

// SubscriberCount returns the number of active subscribers for eventType,
// used by tests and metrics.
func (b *Bus) SubscriberCount(eventType model.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}
