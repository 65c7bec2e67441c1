package integration

import (
	"encoding/json"
	"testing"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/usecase/filter"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry(opts Options) *notify.Registry {
	r := notify.NewRegistry()
	r.Use(Adapters(All(opts))...)
	return r
}

func TestAll_CoversEveryTrigger(t *testing.T) {
	decoders := Decoders(All(Options{}))

	for _, trig := range []entity.Trigger{
		entity.TriggerPurchaseCompleted, entity.TriggerPurchaseRefunded,
		entity.TriggerLicenseActivated, entity.TriggerLicenseDeactivated,
		entity.TriggerSubscriptionCreated, entity.TriggerSubscriptionCancelled,
		entity.TriggerCommentPosted, entity.TriggerReviewPosted,
		entity.TriggerFraudFlagged, entity.TriggerVendorRegistered,
	} {
		_, ok := decoders[trig]
		assert.True(t, ok, "no decoder for %s", trig)
	}
}

func TestDecodeDetail(t *testing.T) {
	t.Run("TC-1: typed detail", func(t *testing.T) {
		d, err := NewLicense().DecodeDetail(entity.TriggerLicenseActivated, json.RawMessage(`{"license_id":3,"key":"abc","price_id":2}`))
		require.NoError(t, err)
		assert.Equal(t, entity.LicenseDetail{LicenseID: 3, Key: "abc", PriceID: 2}, d)
	})

	t.Run("TC-2: missing detail decodes to the zero value", func(t *testing.T) {
		d, err := NewFraud(Options{}).DecodeDetail(entity.TriggerFraudFlagged, nil)
		require.NoError(t, err)
		assert.Equal(t, entity.FraudDetail{}, d)
	})

	t.Run("TC-3: malformed detail", func(t *testing.T) {
		_, err := NewPurchase().DecodeDetail(entity.TriggerPurchaseCompleted, json.RawMessage(`{"payment_id":"x"}`))
		assert.Error(t, err)
	})
}

func TestCartLines(t *testing.T) {
	t.Run("TC-1: itemised lines", func(t *testing.T) {
		got := CartLines(nil, entity.PurchaseDetail{
			Currency: "EUR",
			Lines: []entity.CartLine{
				{Name: "Pro", PriceName: "Agency", Quantity: 2, Amount: 198},
				{Name: "Addon", Amount: 9.5},
			},
		})
		assert.Equal(t, "Pro (Agency) x2 - 198.00 EUR\nAddon x1 - 9.50 EUR", got)
	})

	t.Run("TC-2: falls back to cart ids", func(t *testing.T) {
		cart := entity.Cart{}
		cart.Add(42, 0)
		cart.Add(7, 3)
		cart.Add(7, 1)
		assert.Equal(t, "Download #7 (price option 1)\nDownload #7 (price option 3)\nDownload #42", CartLines(cart, entity.PurchaseDetail{}))
	})
}

func TestPurchase_Placeholders(t *testing.T) {
	r := registry(Options{})
	evt := entity.Event{
		Trigger: entity.TriggerPurchaseRefunded,
		Payload: entity.Payload{
			DiscountCode: "SAVE10",
			Detail:       entity.PurchaseDetail{PaymentID: 9, Total: 10, Currency: "USD", Gateway: "stripe"},
		},
	}

	got := render.Render(render.Fields{Text: "%payment_id% %total% %gateway% %discount_code%"}, r.Replacements(nil, evt))
	assert.Equal(t, "9 10.00 USD stripe SAVE10", got.Text)

	evt.Payload.DiscountCode = entity.NoDiscount
	got = render.Render(render.Fields{Text: "[%discount_code%]"}, r.Replacements(nil, evt))
	assert.Equal(t, "[]", got.Text)
}

func TestPredicates(t *testing.T) {
	r := registry(Options{})
	eval := r.Evaluator()

	tests := []struct {
		name   string
		rule   entity.Rule
		evt    entity.Event
		bail   bool
		reason string
	}{
		{
			name:   "payment id mismatch",
			rule:   entity.Rule{Trigger: entity.TriggerPurchaseCompleted, Filters: entity.FilterFields{Extra: map[string]string{"payment_id": "5"}}},
			evt:    entity.Event{Trigger: entity.TriggerPurchaseCompleted, Payload: entity.Payload{Detail: entity.PurchaseDetail{PaymentID: 6}}},
			bail:   true,
			reason: "payment_id_mismatch",
		},
		{
			name: "payment id match",
			rule: entity.Rule{Trigger: entity.TriggerPurchaseCompleted, Filters: entity.FilterFields{Extra: map[string]string{"payment_id": "6"}}},
			evt:  entity.Event{Trigger: entity.TriggerPurchaseCompleted, Payload: entity.Payload{Detail: entity.PurchaseDetail{PaymentID: 6}}},
		},
		{
			name:   "license price id mismatch",
			rule:   entity.Rule{Trigger: entity.TriggerLicenseActivated, Filters: entity.FilterFields{Extra: map[string]string{"price_id": "2"}}},
			evt:    entity.Event{Trigger: entity.TriggerLicenseActivated, Payload: entity.Payload{Detail: entity.LicenseDetail{PriceID: 1}}},
			bail:   true,
			reason: "price_id_mismatch",
		},
		{
			name:   "license price id malformed",
			rule:   entity.Rule{Trigger: entity.TriggerLicenseActivated, Filters: entity.FilterFields{Extra: map[string]string{"price_id": "two"}}},
			evt:    entity.Event{Trigger: entity.TriggerLicenseActivated},
			bail:   true,
			reason: filter.ReasonInvalidConfiguration,
		},
		{
			name:   "reply comment on a top-level rule",
			rule:   entity.Rule{Trigger: entity.TriggerCommentPosted, Filters: entity.FilterFields{Extra: map[string]string{ExtraTopLevelOnly: "1"}}},
			evt:    entity.Event{Trigger: entity.TriggerCommentPosted, Payload: entity.Payload{Detail: entity.CommentDetail{ParentID: 3}}},
			bail:   true,
			reason: "reply_comment",
		},
		{
			name: "reply comment without restriction",
			rule: entity.Rule{Trigger: entity.TriggerCommentPosted},
			evt:  entity.Event{Trigger: entity.TriggerCommentPosted, Payload: entity.Payload{Detail: entity.CommentDetail{ParentID: 3}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := eval.Evaluate(tt.rule, tt.evt)
			assert.Equal(t, tt.bail, d.Bail)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestOverrides(t *testing.T) {
	hook := "https://hooks.slack.com/services/T/B/X"
	draft := func(trig entity.Trigger, target string, detail entity.Detail) notify.Draft {
		return notify.Draft{
			Trigger: trig,
			Target:  target,
			Event:   entity.Event{Trigger: trig, Payload: entity.Payload{Detail: detail}},
			Message: slack.Message{Attachments: []slack.Attachment{{Text: "x"}}},
		}
	}

	t.Run("TC-1: fraud stays on the webhook without interactive mode", func(t *testing.T) {
		out := registry(Options{}).ApplyOverrides(draft(entity.TriggerFraudFlagged, hook, entity.FraudDetail{PaymentID: 1}))
		assert.Equal(t, hook, out.Target)
		assert.Empty(t, out.Message.Attachments[0].Actions)
	})

	t.Run("TC-2: vendor buttons only on the Web API path", func(t *testing.T) {
		r := registry(Options{Interactive: true})

		out := r.ApplyOverrides(draft(entity.TriggerVendorRegistered, hook, entity.VendorDetail{VendorID: 4}))
		assert.Equal(t, hook, out.Target)
		assert.Empty(t, out.Message.Attachments[0].Actions)

		out = r.ApplyOverrides(draft(entity.TriggerVendorRegistered, WebAPIMethod, entity.VendorDetail{VendorID: 4}))
		require.Len(t, out.Message.Attachments[0].Actions, 1)
		assert.Equal(t, ActionApproveVendor, out.Message.Attachments[0].Actions[0].Name)
		assert.Equal(t, "4", out.Message.Attachments[0].Actions[0].Value)
	})

	t.Run("TC-3: a second adapter on the same trigger keeps earlier buttons", func(t *testing.T) {
		r := registry(Options{Interactive: true})
		r.Override(entity.TriggerFraudFlagged, func(d notify.Draft) notify.Draft {
			d.Message.Attachments[0].Actions = append(d.Message.Attachments[0].Actions, slack.Button("escalate", "Escalate", "1", ""))
			return d
		})

		out := r.ApplyOverrides(draft(entity.TriggerFraudFlagged, hook, entity.FraudDetail{PaymentID: 1}))
		assert.Equal(t, WebAPIMethod, out.Target)
		require.Len(t, out.Message.Attachments[0].Actions, 3)
		assert.Equal(t, "escalate", out.Message.Attachments[0].Actions[2].Name)
	})
}

func TestHints(t *testing.T) {
	r := registry(Options{})
	tokens := map[string]bool{}
	for _, h := range r.Hints().For(entity.TriggerReviewPosted) {
		tokens[h.Token] = true
	}
	assert.True(t, tokens["%rating%"])
	assert.True(t, tokens["%name%"], "universal hints are always included")
}
