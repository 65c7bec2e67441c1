package integration

import (
	"encoding/json"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"
)

// Fraud action names carried back by the interactive endpoint.
const (
	ActionApprovePayment = "approve"
	ActionRejectPayment  = "reject"
)

// Fraud covers payments flagged by the fraud monitor. With interactive
// mode on, the message moves to the Web API and carries review buttons.
type Fraud struct {
	opts Options
}

// NewFraud returns the fraud adapter.
func NewFraud(opts Options) *Fraud { return &Fraud{opts: opts} }

// Name implements notify.Adapter.
func (*Fraud) Name() string { return "fraud" }

// Triggers implements notify.Adapter.
func (*Fraud) Triggers() []entity.Trigger {
	return []entity.Trigger{entity.TriggerFraudFlagged}
}

// Register adds the fraud placeholders and, in interactive mode, the review buttons.
func (f *Fraud) Register(r *notify.Registry) {
	t := entity.TriggerFraudFlagged
	r.Contribute(t, func(evt entity.Event, repl render.Replacements) {
		d, _ := evt.Payload.Detail.(entity.FraudDetail)
		repl.Set("payment_id", formatInt(d.PaymentID))
		repl.Set("reason", d.Reason)
	})
	r.Hint(t,
		render.Hint{Token: "%payment_id%", Description: "Flagged payment ID"},
		render.Hint{Token: "%reason%", Description: "Why the payment was flagged"},
	)
	if f.opts.Interactive {
		r.Override(t, f.override)
	}
}

func (f *Fraud) override(d notify.Draft) notify.Draft {
	detail, _ := d.Event.Payload.Detail.(entity.FraudDetail)
	id := formatInt(detail.PaymentID)
	return withActions(d,
		slack.Button(ActionApprovePayment, "Accept as valid", id, "primary"),
		slack.Button(ActionRejectPayment, "Refund payment", id, "danger"),
	)
}

// DecodeDetail implements Decoder.
func (*Fraud) DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	return decode[entity.FraudDetail](trigger, raw)
}
