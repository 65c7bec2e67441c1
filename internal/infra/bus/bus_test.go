package bus

import (
	"context"
	"testing"
	"time"

	"slack-bridge/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestBus_Emit(t *testing.T) {
	t.Run("TC-1: trigger handlers then catch-all, in order", func(t *testing.T) {
		b := New()
		var got []string
		b.OnAny(func(context.Context, entity.Event) { got = append(got, "any") })
		b.On(entity.TriggerPurchaseCompleted, func(context.Context, entity.Event) { got = append(got, "first") })
		b.On(entity.TriggerPurchaseCompleted, func(context.Context, entity.Event) { got = append(got, "second") })
		b.On(entity.TriggerReviewPosted, func(context.Context, entity.Event) { got = append(got, "review") })

		b.Emit(context.Background(), entity.Event{Trigger: entity.TriggerPurchaseCompleted})

		assert.Equal(t, []string{"first", "second", "any"}, got)
	})

	t.Run("TC-2: a panicking handler does not stop the others", func(t *testing.T) {
		b := New()
		called := false
		b.On(entity.TriggerCommentPosted, func(context.Context, entity.Event) { panic("boom") })
		b.On(entity.TriggerCommentPosted, func(context.Context, entity.Event) { called = true })

		assert.NotPanics(t, func() {
			b.Emit(context.Background(), entity.Event{Trigger: entity.TriggerCommentPosted})
		})
		assert.True(t, called)
	})

	t.Run("TC-3: occurred_at is stamped when missing", func(t *testing.T) {
		b := New()
		fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		b.now = func() time.Time { return fixed }

		var seen time.Time
		b.OnAny(func(_ context.Context, evt entity.Event) { seen = evt.OccurredAt })

		b.Emit(context.Background(), entity.Event{Trigger: entity.TriggerFraudFlagged})
		assert.Equal(t, fixed, seen)

		other := fixed.Add(time.Hour)
		b.Emit(context.Background(), entity.Event{Trigger: entity.TriggerFraudFlagged, OccurredAt: other})
		assert.Equal(t, other, seen)
	})

	t.Run("TC-4: no subscribers", func(t *testing.T) {
		assert.NotPanics(t, func() {
			New().Emit(context.Background(), entity.Event{Trigger: entity.TriggerVendorRegistered})
		})
	})
}
