package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/usecase/notify"
)

func TestDeliveriesHandler(t *testing.T) {
	history := notify.NewHistory(10)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		history.Record(t.Context(), entity.Delivery{
			ID:        string(rune('a' + i)),
			RuleID:    int64(i + 1),
			Namespace: "rbm",
			Trigger:   entity.TriggerPurchaseCompleted,
			Status:    entity.DeliverySent,
			Attempts:  1,
			Duration:  250 * time.Millisecond,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	type body struct {
		Deliveries []deliveryDTO `json:"deliveries"`
	}

	t.Run("TC-1: newest first", func(t *testing.T) {
		rr := httptest.NewRecorder()
		DeliveriesHandler(history).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/deliveries", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got body
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got.Deliveries, 3)
		assert.Equal(t, int64(3), got.Deliveries[0].RuleID)
		assert.Equal(t, int64(250), got.Deliveries[0].DurationMS)
		assert.Equal(t, "sent", got.Deliveries[0].Status)
	})

	t.Run("TC-2: limit", func(t *testing.T) {
		rr := httptest.NewRecorder()
		DeliveriesHandler(history).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/deliveries?limit=1", nil))

		var got body
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Len(t, got.Deliveries, 1)
	})

	t.Run("TC-3: invalid limit", func(t *testing.T) {
		for _, q := range []string{"0", "-2", "ten"} {
			rr := httptest.NewRecorder()
			DeliveriesHandler(history).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/deliveries?limit="+q, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})

	t.Run("TC-4: empty history is an empty list", func(t *testing.T) {
		rr := httptest.NewRecorder()
		DeliveriesHandler(notify.NewHistory(5)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/deliveries", nil))
		assert.JSONEq(t, `{"deliveries":[]}`, rr.Body.String())
	})
}

func TestBreakersHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	BreakersHandler(stubNotifier{dests: []notify.DestinationHealth{
		{Name: "web_api:chat.postMessage", State: "half-open"},
	}}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/breakers", nil))

	assert.JSONEq(t,
		`{"destinations":[{"name":"web_api:chat.postMessage","state":"half-open","circuit_breaker_open":false}]}`,
		rr.Body.String())
}
