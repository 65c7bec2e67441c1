package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-bridge/internal/domain/entity"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in        string
		product   int64
		price     int64
		expectErr bool
	}{
		{"42", 42, 0, false},
		{"42-3", 42, 3, false},
		{" 7-0 ", 7, 0, false},
		{"abc", 0, 0, true},
		{"42-", 0, 0, true},
		{"-3", 0, 0, true},
		{"42-x", 0, 0, true},
		{"0", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			product, price, err := ParseSelector(tt.in)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.product, product)
			assert.Equal(t, tt.price, price)
		})
	}
}

func TestParseSelectors_NoRestriction(t *testing.T) {
	for name, in := range map[string][]string{
		"nil":   nil,
		"blank": {"", " "},
		"all":   {"all"},
		"mixed": {"42", "all"},
	} {
		t.Run(name, func(t *testing.T) {
			m, err := ParseSelectors(in)
			require.NoError(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestPriceMap_Matches(t *testing.T) {
	m, err := ParseSelectors([]string{"42-3", "7"})
	require.NoError(t, err)

	assert.True(t, m.Matches(42, 3))
	assert.False(t, m.Matches(42, 1))
	assert.False(t, m.Matches(42, 0), "base product does not satisfy a specific price option")
	assert.True(t, m.Matches(7, 0))
	assert.True(t, m.Matches(7, 5), "product-only selector matches any price option")
	assert.False(t, m.Matches(8, 0))
}

func TestPriceMap_DuplicateProductDifferentPrices(t *testing.T) {
	// Same product twice in one cart with different price options.
	cart := entity.Cart{}
	cart.Add(42, 1)
	cart.Add(42, 3)

	m, err := ParseSelectors([]string{"42-3"})
	require.NoError(t, err)

	matched := m.Matched(cart)
	require.Contains(t, matched, int64(42))
	assert.True(t, matched[42].Has(3))
	assert.False(t, matched[42].Has(1))
}
