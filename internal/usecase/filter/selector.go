package filter

import (
	"fmt"
	"strconv"
	"strings"

	"slack-bridge/internal/domain/entity"
)

// allSelector is the "no restriction" sentinel of the download fields.
const allSelector = "all"

// PriceMap maps a product id to the price ids a rule selects.
// Price id 0 selects the product regardless of price option.
type PriceMap map[int64]entity.PriceSet

// ParseSelector parses "42" or "42-3" into a product id and a price id.
func ParseSelector(s string) (productID, priceID int64, err error) {
	s = strings.TrimSpace(s)
	head, tail, hasPrice := strings.Cut(s, "-")

	productID, err = strconv.ParseInt(head, 10, 64)
	if err != nil || productID <= 0 {
		return 0, 0, fmt.Errorf("selector %q: invalid product id", s)
	}
	if !hasPrice {
		return productID, 0, nil
	}

	priceID, err = strconv.ParseInt(tail, 10, 64)
	if err != nil || priceID < 0 {
		return 0, 0, fmt.Errorf("selector %q: invalid price id", s)
	}
	return productID, priceID, nil
}

// ParseSelectors builds a PriceMap from a rule's selectors. A nil map means
// "no restriction": returned for no selectors, blank selectors, or "all".
func ParseSelectors(selectors []string) (PriceMap, error) {
	var m PriceMap
	for _, s := range selectors {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s == allSelector {
			return nil, nil
		}

		productID, priceID, err := ParseSelector(s)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = make(PriceMap)
		}
		set, ok := m[productID]
		if !ok {
			set = entity.PriceSet{}
			m[productID] = set
		}
		set[priceID] = struct{}{}
	}
	return m, nil
}

// Matches reports whether the selector map selects productID at priceID.
func (m PriceMap) Matches(productID, priceID int64) bool {
	set, ok := m[productID]
	if !ok {
		return false
	}
	return set.Has(0) || set.Has(priceID)
}

// Intersects reports whether any cart entry is selected by m.
func (m PriceMap) Intersects(cart entity.Cart) bool {
	return len(m.Matched(cart)) > 0
}

// Matched returns the cart entries selected by m, keyed by product id.
func (m PriceMap) Matched(cart entity.Cart) entity.Cart {
	out := entity.Cart{}
	for productID, prices := range cart {
		for priceID := range prices {
			if m.Matches(productID, priceID) {
				out.Add(productID, priceID)
			}
		}
	}
	return out
}
