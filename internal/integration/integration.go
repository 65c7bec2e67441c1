// Package integration holds the store adapters. Each adapter owns a set of
// triggers and registers filters, placeholders and transport overrides for
// them on a notify.Registry.
package integration

import (
	"encoding/json"
	"fmt"
	"strconv"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/usecase/filter"
	"slack-bridge/internal/usecase/notify"
)

// WebAPIMethod is the method used when an adapter moves a message off the
// webhook path.
const WebAPIMethod = "chat.postMessage"

// Options configure adapter behaviour that depends on deployment.
type Options struct {
	// Interactive enables Web API overrides that attach buttons. It must
	// only be set when a bot token is configured.
	Interactive bool
}

// Decoder turns the raw detail of an ingested event into its typed variant.
type Decoder interface {
	DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error)
}

// CartSource is implemented by decoders whose detail names the product an
// event is about. Ingest uses it when the store sent no cart.
type CartSource interface {
	CartOf(detail entity.Detail) entity.Cart
}

// Integration is an adapter that can also decode its own payloads.
type Integration interface {
	notify.Adapter
	Decoder
}

// All returns every bundled integration in registration order.
func All(opts Options) []Integration {
	return []Integration{
		NewPurchase(),
		NewLicense(),
		NewSubscription(),
		NewComment(),
		NewReview(),
		NewFraud(opts),
		NewVendor(opts),
	}
}

// Adapters converts integrations for notify.Registry.Use.
func Adapters(list []Integration) []notify.Adapter {
	out := make([]notify.Adapter, len(list))
	for i, in := range list {
		out[i] = in
	}
	return out
}

// Decoders indexes integrations by the triggers they own.
func Decoders(list []Integration) map[entity.Trigger]Decoder {
	out := make(map[entity.Trigger]Decoder)
	for _, in := range list {
		for _, t := range in.Triggers() {
			out[t] = in
		}
	}
	return out
}

func decode[T entity.Detail](trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	var d T
	if len(raw) == 0 || string(raw) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %s detail: %w", trigger, err)
	}
	return d, nil
}

// extraID compares a numeric Extra filter against got. An empty or
// unparseable filter value never bails; the latter is a configuration error.
func extraID(rule entity.Rule, key string, got int64) filter.Decision {
	want := rule.Extra(key)
	if want == "" {
		return filter.Continue
	}
	id, err := strconv.ParseInt(want, 10, 64)
	if err != nil {
		return filter.Decision{
			Bail:   true,
			Reason: filter.ReasonInvalidConfiguration,
			Err:    &entity.ConfigurationError{RuleID: rule.ID, Field: key, Message: err.Error()},
		}
	}
	if id != got {
		return filter.BailWith(key + "_mismatch")
	}
	return filter.Continue
}

// withActions moves d to the Web API when it is on the webhook path and
// appends actions to its first attachment.
func withActions(d notify.Draft, actions ...slack.Action) notify.Draft {
	if d.Target == "" || slack.IsWebhookURL(d.Target) {
		d.Target = WebAPIMethod
	}
	if len(d.Message.Attachments) == 0 {
		d.Message.Attachments = []slack.Attachment{{}}
	}
	first := &d.Message.Attachments[0]
	first.Actions = append(first.Actions, actions...)
	return d
}

// singleCart is the cart of an event about one product. It is nil when
// the product is unknown.
func singleCart(downloadID, priceID int64) entity.Cart {
	if downloadID <= 0 {
		return nil
	}
	cart := entity.Cart{}
	cart.Add(downloadID, max(priceID, 0))
	return cart
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
