package integration

import (
	"encoding/json"
	"strconv"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"
)

// Review covers product reviews. Download scoping uses the generic filter
// against the reviewed download, which CartOf puts in the event cart.
type Review struct{}

// NewReview returns the review adapter.
func NewReview() *Review { return &Review{} }

// Name implements notify.Adapter.
func (*Review) Name() string { return "review" }

// Triggers implements notify.Adapter.
func (*Review) Triggers() []entity.Trigger {
	return []entity.Trigger{entity.TriggerReviewPosted}
}

// Register adds the review placeholders.
func (*Review) Register(r *notify.Registry) {
	t := entity.TriggerReviewPosted
	r.Contribute(t, func(evt entity.Event, repl render.Replacements) {
		d, _ := evt.Payload.Detail.(entity.ReviewDetail)
		repl.Set("review_title", d.Title)
		repl.Set("review_content", d.Content)
		repl.Set("rating", strconv.Itoa(d.Rating))
		repl.Set("download", d.DownloadName)
	})
	r.Hint(t,
		render.Hint{Token: "%review_title%", Description: "Review title"},
		render.Hint{Token: "%review_content%", Description: "Review text"},
		render.Hint{Token: "%rating%", Description: "Star rating"},
		render.Hint{Token: "%download%", Description: "Reviewed download name"},
	)
}

// DecodeDetail implements Decoder.
func (*Review) DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	return decode[entity.ReviewDetail](trigger, raw)
}

// CartOf returns the reviewed download.
func (*Review) CartOf(detail entity.Detail) entity.Cart {
	d, _ := detail.(entity.ReviewDetail)
	return singleCart(d.DownloadID, 0)
}
