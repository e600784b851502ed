package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_HomeCurrencyIsIdentity(t *testing.T) {
	n := NewCurrencyNormalizer("EUR")

	// No conversion is materialized for home-currency documents
	conv := n.Normalize("EUR", 121.07, 0.92)
	assert.Nil(t, conv)

	sub, tax, total := n.ConvertForSave(nil, 100.06, 21.01, 121.07)
	assert.Equal(t, 100.06, sub)
	assert.Equal(t, 21.01, tax)
	assert.Equal(t, 121.07, total)
}

func TestNormalize_ForeignCurrency(t *testing.T) {
	n := NewCurrencyNormalizer("EUR")

	conv := n.Normalize("USD", 100, 0.92)
	require.NotNil(t, conv)
	assert.Equal(t, "USD", conv.OriginalCurrency)
	assert.Equal(t, 92.00, conv.HomeAmount)

	// Editing the rate recomputes the home amount
	n.SetExchangeRate(conv, 0.90)
	assert.Equal(t, 90.00, conv.HomeAmount)

	// Editing the total recomputes as well
	n.SetTotal(conv, 200)
	assert.Equal(t, 180.00, conv.HomeAmount)
}

func TestSetHomeAmount_ManualOverrideDoesNotBackCompute(t *testing.T) {
	n := NewCurrencyNormalizer("EUR")

	conv := n.Normalize("USD", 100, 0.92)
	require.NotNil(t, conv)

	n.SetHomeAmount(conv, 95.00)
	assert.Equal(t, 95.00, conv.HomeAmount)
	assert.True(t, conv.ManualOverride)
	// Rate stays untouched
	assert.Equal(t, 0.92, conv.ExchangeRate)

	// The override carries through to save
	_, _, total := n.ConvertForSave(conv, 80, 20, 100)
	assert.Equal(t, 95.00, total)

	// A later rate edit clears the override
	n.SetExchangeRate(conv, 0.90)
	assert.False(t, conv.ManualOverride)
	assert.Equal(t, 90.00, conv.HomeAmount)
}

func TestConvertForSave_AppliesSameRateAcrossAmounts(t *testing.T) {
	n := NewCurrencyNormalizer("EUR")

	conv := n.Normalize("GBP", 120, 1.15)
	require.NotNil(t, conv)

	sub, tax, total := n.ConvertForSave(conv, 100, 20, 120)
	assert.Equal(t, 115.00, sub)
	assert.Equal(t, 23.00, tax)
	assert.Equal(t, 138.00, total)
}

func TestConvert_RoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 92.35, Convert(100.38, 0.92))
	assert.Equal(t, 0.01, Convert(0.011, 1))
}
