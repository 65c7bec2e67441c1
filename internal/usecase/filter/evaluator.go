// Package filter decides whether a notification rule applies to an event.
// It covers product and price scoping, discount code scoping, and
// trigger-specific predicates contributed by integrations.
package filter

import (
	"sync"

	"slack-bridge/internal/domain/entity"
)

// Reasons reported with a bail decision.
const (
	ReasonInvalidConfiguration = "invalid_configuration"
	ReasonDownloadMismatch     = "download_mismatch"
	ReasonDownloadExcluded     = "download_excluded"
	ReasonDiscountMismatch     = "discount_mismatch"
)

// Decision is the outcome of evaluating one rule against one event.
// A bail is an expected short-circuit, not an error; Err is only set when
// the rule itself is malformed.
type Decision struct {
	Bail   bool
	Reason string
	Err    error
}

// Continue is the non-bail decision.
var Continue = Decision{}

// BailWith returns a bail decision carrying reason.
func BailWith(reason string) Decision {
	return Decision{Bail: true, Reason: reason}
}

// Predicate is an additional, trigger-specific check. It may only bail.
type Predicate func(rule entity.Rule, evt entity.Event) Decision

// Evaluator runs the generic filters followed by the predicates registered
// for the event's trigger. It is safe for concurrent use.
type Evaluator struct {
	mu         sync.RWMutex
	predicates map[entity.Trigger][]Predicate
}

// NewEvaluator returns an evaluator with no trigger predicates.
func NewEvaluator() *Evaluator {
	return &Evaluator{predicates: make(map[entity.Trigger][]Predicate)}
}

// Register appends p to the predicates of trigger. Predicates run in
// registration order and the first bail wins.
func (e *Evaluator) Register(trigger entity.Trigger, p Predicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.predicates[trigger] = append(e.predicates[trigger], p)
}

// Evaluate checks rule against evt.
//
// Order: download selectors, discount code, trigger predicates.
// An unparseable selector yields a bail with ReasonInvalidConfiguration and
// an *entity.ConfigurationError in Err.
func (e *Evaluator) Evaluate(rule entity.Rule, evt entity.Event) Decision {
	if d := evaluateDownload(rule, evt.Payload.Cart); d.Bail {
		return d
	}
	if d := evaluateDiscount(rule, evt.Payload); d.Bail {
		return d
	}

	e.mu.RLock()
	preds := e.predicates[evt.Trigger]
	e.mu.RUnlock()

	for _, p := range preds {
		if d := p(rule, evt); d.Bail {
			if d.Reason == "" {
				d.Reason = string(evt.Trigger)
			}
			return d
		}
	}
	return Continue
}

func evaluateDownload(rule entity.Rule, cart entity.Cart) Decision {
	include, err := ParseSelectors(rule.Filters.Download)
	if err != nil {
		return invalid(rule, entity.FieldDownload, err)
	}
	exclude, err := ParseSelectors(rule.Filters.ExcludeDownload)
	if err != nil {
		return invalid(rule, entity.FieldExcludeDownload, err)
	}

	candidates := cart
	if include != nil {
		candidates = include.Matched(cart)
		if len(candidates) == 0 {
			return BailWith(ReasonDownloadMismatch)
		}
	}

	if exclude != nil && len(candidates) > 0 {
		remaining := 0
		for productID, prices := range candidates {
			for priceID := range prices {
				if !exclude.Matches(productID, priceID) {
					remaining++
				}
			}
		}
		if remaining == 0 {
			return BailWith(ReasonDownloadExcluded)
		}
	}

	return Continue
}

func evaluateDiscount(rule entity.Rule, p entity.Payload) Decision {
	code := rule.Filters.DiscountCode
	if code == "" || code == entity.NoDiscount {
		return Continue
	}
	if !p.HasDiscount() || p.DiscountCode != code {
		return BailWith(ReasonDiscountMismatch)
	}
	return Continue
}

func invalid(rule entity.Rule, field string, err error) Decision {
	return Decision{
		Bail:   true,
		Reason: ReasonInvalidConfiguration,
		Err: &entity.ConfigurationError{
			RuleID:  rule.ID,
			Field:   field,
			Message: err.Error(),
		},
	}
}
