// Package bus is the in-process publish/subscribe point between the store
// integrations and the notification service.
package bus

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/handler/http/requestid"
)

// Handler receives an emitted event. It must not retain evt.Payload maps
// beyond the call unless it treats them as read-only.
type Handler func(ctx context.Context, evt entity.Event)

// Bus dispatches events to subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[entity.Trigger][]Handler
	any      []Handler
	now      func() time.Time
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[entity.Trigger][]Handler),
		now:      time.Now,
	}
}

// On subscribes h to one trigger.
func (b *Bus) On(trigger entity.Trigger, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[trigger] = append(b.handlers[trigger], h)
}

// OnAny subscribes h to every trigger. Catch-all handlers run after the
// trigger's own handlers.
func (b *Bus) OnAny(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.any = append(b.any, h)
}

// Emit delivers evt to its subscribers. A panicking handler is logged and
// skipped; Emit itself never fails.
func (b *Bus) Emit(ctx context.Context, evt entity.Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[evt.Trigger])+len(b.any))
	handlers = append(handlers, b.handlers[evt.Trigger]...)
	handlers = append(handlers, b.any...)
	b.mu.RUnlock()

	for i, h := range handlers {
		b.call(ctx, i, h, evt)
	}
}

func (b *Bus) call(ctx context.Context, idx int, h Handler, evt entity.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in event handler",
				slog.String("request_id", requestid.FromContext(ctx)),
				slog.String("trigger", string(evt.Trigger)),
				slog.Int("handler", idx),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	h(ctx, evt)
}
