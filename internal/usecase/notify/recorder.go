package notify

import (
	"context"
	"log/slog"
	"sync"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/repository"
)

// DeliveryRecorder is the optional debug sink for per-rule outcomes.
// Record must not block for long; it runs on the worker.
type DeliveryRecorder interface {
	Record(ctx context.Context, d entity.Delivery)
}

// History keeps a bounded list of recent deliveries.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []entity.Delivery
}

// NewHistory constructs a history with the provided capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{capacity: capacity}
}

// Record stores a delivery, evicting the oldest beyond capacity.
func (h *History) Record(_ context.Context, d entity.Delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, d)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

// Recent returns the stored deliveries in chronological order.
func (h *History) Recent() []entity.Delivery {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snapshot := make([]entity.Delivery, len(h.entries))
	copy(snapshot, h.entries)
	return snapshot
}

// SQLRecorder writes deliveries through a DeliveryRepository.
// Write failures are logged and swallowed.
type SQLRecorder struct {
	repo repository.DeliveryRepository
}

// NewSQLRecorder returns a recorder backed by repo.
func NewSQLRecorder(repo repository.DeliveryRepository) *SQLRecorder {
	return &SQLRecorder{repo: repo}
}

// Record implements DeliveryRecorder.
func (r *SQLRecorder) Record(ctx context.Context, d entity.Delivery) {
	if err := r.repo.Create(ctx, &d); err != nil {
		slog.Warn("failed to persist delivery",
			slog.String("delivery_id", d.ID),
			slog.Int64("rule_id", d.RuleID),
			slog.Any("error", err))
	}
}

// Recorders fans a delivery out to several recorders in order.
type Recorders []DeliveryRecorder

// Record implements DeliveryRecorder.
func (rs Recorders) Record(ctx context.Context, d entity.Delivery) {
	for _, r := range rs {
		r.Record(ctx, d)
	}
}
