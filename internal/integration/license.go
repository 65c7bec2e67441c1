package integration

import (
	"encoding/json"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/usecase/filter"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"
)

// License covers software license activations.
type License struct{}

// NewLicense returns the license adapter.
func NewLicense() *License { return &License{} }

// Name implements notify.Adapter.
func (*License) Name() string { return "license" }

// Triggers implements notify.Adapter.
func (*License) Triggers() []entity.Trigger {
	return []entity.Trigger{entity.TriggerLicenseActivated, entity.TriggerLicenseDeactivated}
}

// Register adds the price_id predicate and license placeholders.
func (l *License) Register(r *notify.Registry) {
	for _, t := range l.Triggers() {
		r.Predicate(t, pricePredicate)
		r.Contribute(t, contributeLicense)
		r.Hint(t,
			render.Hint{Token: "%license_key%", Description: "License key"},
			render.Hint{Token: "%site_url%", Description: "Site the license was (de)activated on"},
			render.Hint{Token: "%download%", Description: "Licensed download name"},
		)
	}
}

// DecodeDetail implements Decoder.
func (*License) DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	return decode[entity.LicenseDetail](trigger, raw)
}

// CartOf returns the licensed download at its price option.
func (*License) CartOf(detail entity.Detail) entity.Cart {
	d, _ := detail.(entity.LicenseDetail)
	return singleCart(d.DownloadID, d.PriceID)
}

// pricePredicate limits a rule to one price option through Extra["price_id"].
func pricePredicate(rule entity.Rule, evt entity.Event) filter.Decision {
	d, _ := evt.Payload.Detail.(entity.LicenseDetail)
	return extraID(rule, "price_id", d.PriceID)
}

func contributeLicense(evt entity.Event, r render.Replacements) {
	d, _ := evt.Payload.Detail.(entity.LicenseDetail)
	r.Set("license_key", d.Key)
	r.Set("site_url", d.SiteURL)
	r.Set("download", d.DownloadName)
}
