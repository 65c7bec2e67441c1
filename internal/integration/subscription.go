package integration

import (
	"encoding/json"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"
)

// Subscription covers recurring payment profiles.
type Subscription struct{}

// NewSubscription returns the subscription adapter.
func NewSubscription() *Subscription { return &Subscription{} }

// Name implements notify.Adapter.
func (*Subscription) Name() string { return "subscription" }

// Triggers implements notify.Adapter.
func (*Subscription) Triggers() []entity.Trigger {
	return []entity.Trigger{entity.TriggerSubscriptionCreated, entity.TriggerSubscriptionCancelled}
}

// Register adds the subscription placeholders.
func (s *Subscription) Register(r *notify.Registry) {
	for _, t := range s.Triggers() {
		r.Contribute(t, func(evt entity.Event, repl render.Replacements) {
			d, _ := evt.Payload.Detail.(entity.SubscriptionDetail)
			repl.Set("subscription_id", formatInt(d.SubscriptionID))
			repl.Set("period", d.Period)
			repl.Set("status", d.Status)
			repl.Set("download", d.DownloadName)
		})
		r.Hint(t,
			render.Hint{Token: "%subscription_id%", Description: "Subscription ID"},
			render.Hint{Token: "%period%", Description: "Billing period"},
			render.Hint{Token: "%status%", Description: "Subscription status"},
			render.Hint{Token: "%download%", Description: "Subscribed download name"},
		)
	}
}

// DecodeDetail implements Decoder.
func (*Subscription) DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	return decode[entity.SubscriptionDetail](trigger, raw)
}

// CartOf returns the subscribed download at its price option.
func (*Subscription) CartOf(detail entity.Detail) entity.Cart {
	d, _ := detail.(entity.SubscriptionDetail)
	return singleCart(d.DownloadID, d.PriceID)
}
