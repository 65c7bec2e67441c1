package integration

import (
	"encoding/json"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"
)

// ActionApproveVendor is the button name on vendor registration messages.
const ActionApproveVendor = "approve_vendor"

// Vendor covers marketplace vendor applications. The approve button is only
// added to messages already on the Web API path; webhook rules stay plain.
type Vendor struct {
	opts Options
}

// NewVendor returns the vendor adapter.
func NewVendor(opts Options) *Vendor { return &Vendor{opts: opts} }

// Name implements notify.Adapter.
func (*Vendor) Name() string { return "vendor" }

// Triggers implements notify.Adapter.
func (*Vendor) Triggers() []entity.Trigger {
	return []entity.Trigger{entity.TriggerVendorRegistered}
}

// Register adds the vendor placeholders and the approve button override.
func (v *Vendor) Register(r *notify.Registry) {
	t := entity.TriggerVendorRegistered
	r.Contribute(t, func(evt entity.Event, repl render.Replacements) {
		d, _ := evt.Payload.Detail.(entity.VendorDetail)
		repl.Set("store_name", d.StoreName)
		repl.Set("vendor_id", formatInt(d.VendorID))
	})
	r.Hint(t,
		render.Hint{Token: "%store_name%", Description: "Vendor store name"},
		render.Hint{Token: "%vendor_id%", Description: "Vendor ID"},
	)
	if v.opts.Interactive {
		r.Override(t, func(d notify.Draft) notify.Draft {
			if d.Target == "" || slack.IsWebhookURL(d.Target) {
				return d
			}
			detail, _ := d.Event.Payload.Detail.(entity.VendorDetail)
			return withActions(d, slack.Button(ActionApproveVendor, "Approve vendor", formatInt(detail.VendorID), "primary"))
		})
	}
}

// DecodeDetail implements Decoder.
func (*Vendor) DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	return decode[entity.VendorDetail](trigger, raw)
}
