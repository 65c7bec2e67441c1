package integration

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/usecase/filter"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"
)

// Purchase covers completed and refunded payments.
type Purchase struct{}

// NewPurchase returns the purchase adapter.
func NewPurchase() *Purchase { return &Purchase{} }

// Name implements notify.Adapter.
func (*Purchase) Name() string { return "purchase" }

// Triggers implements notify.Adapter.
func (*Purchase) Triggers() []entity.Trigger {
	return []entity.Trigger{entity.TriggerPurchaseCompleted, entity.TriggerPurchaseRefunded}
}

// Register adds the payment_id predicate and purchase placeholders.
func (p *Purchase) Register(r *notify.Registry) {
	for _, t := range p.Triggers() {
		r.Predicate(t, paymentPredicate)
		r.Contribute(t, contributePurchase)
		r.Hint(t,
			render.Hint{Token: "%cart%", Description: "One line per purchased item"},
			render.Hint{Token: "%total%", Description: "Payment total with currency"},
			render.Hint{Token: "%payment_id%", Description: "Payment ID"},
			render.Hint{Token: "%gateway%", Description: "Payment gateway"},
			render.Hint{Token: "%discount_code%", Description: "Applied discount code, if any"},
		)
	}
}

// DecodeDetail implements Decoder.
func (*Purchase) DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	return decode[entity.PurchaseDetail](trigger, raw)
}

// paymentPredicate restricts a rule to one payment id through Extra["payment_id"].
func paymentPredicate(rule entity.Rule, evt entity.Event) filter.Decision {
	d, _ := evt.Payload.Detail.(entity.PurchaseDetail)
	return extraID(rule, "payment_id", d.PaymentID)
}

func contributePurchase(evt entity.Event, r render.Replacements) {
	d, _ := evt.Payload.Detail.(entity.PurchaseDetail)

	r.Set("cart", CartLines(evt.Payload.Cart, d))
	r.Set("payment_id", formatInt(d.PaymentID))
	r.Set("gateway", d.Gateway)
	r.Set("total", formatAmount(d.Total, d.Currency))

	code := ""
	if evt.Payload.HasDiscount() {
		code = evt.Payload.DiscountCode
	}
	r.Set("discount_code", code)
}

// CartLines renders one line per purchased item. Without itemised lines the
// cart's product and price ids are listed instead.
func CartLines(cart entity.Cart, d entity.PurchaseDetail) string {
	lines := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		var b strings.Builder
		b.WriteString(l.Name)
		if l.PriceName != "" {
			fmt.Fprintf(&b, " (%s)", l.PriceName)
		}
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		fmt.Fprintf(&b, " x%d - %s", qty, formatAmount(l.Amount, d.Currency))
		lines = append(lines, b.String())
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n")
	}

	for _, productID := range cart.Products() {
		prices := cart[productID]
		if len(prices) == 0 || (len(prices) == 1 && prices.Has(0)) {
			lines = append(lines, fmt.Sprintf("Download #%d", productID))
			continue
		}
		ids := make([]int64, 0, len(prices))
		for id := range prices {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			lines = append(lines, fmt.Sprintf("Download #%d (price option %d)", productID, id))
		}
	}
	return strings.Join(lines, "\n")
}

func formatAmount(amount float64, currency string) string {
	s := fmt.Sprintf("%.2f", amount)
	if currency != "" {
		s += " " + currency
	}
	return s
}
