package resolver

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// CurrencyNormalizer converts foreign-currency amounts to the home
// currency. Documents already in the home currency are left untouched;
// no conversion is materialized and no exchange rate is stored for them.
type CurrencyNormalizer struct {
	homeCurrency string
}

// NewCurrencyNormalizer creates a normalizer for the given home currency
func NewCurrencyNormalizer(homeCurrency string) *CurrencyNormalizer {
	return &CurrencyNormalizer{homeCurrency: strings.ToUpper(homeCurrency)}
}

// HomeCurrency returns the configured home currency code
func (n *CurrencyNormalizer) HomeCurrency() string {
	return n.homeCurrency
}

// IsHome reports whether the currency is the home currency
func (n *CurrencyNormalizer) IsHome(currency string) bool {
	return strings.ToUpper(strings.TrimSpace(currency)) == n.homeCurrency
}

// Normalize builds the conversion for a document total. Returns nil for
// home-currency documents: their home amount is the total itself, exactly,
// with no rounding step in between. A non-positive rate falls back to the
// identity rate.
func (n *CurrencyNormalizer) Normalize(currency string, total, exchangeRate float64) *entity.CurrencyConversion {
	if n.IsHome(currency) {
		return nil
	}
	if exchangeRate <= 0 {
		exchangeRate = 1.0
	}
	return &entity.CurrencyConversion{
		OriginalAmount:   total,
		OriginalCurrency: strings.ToUpper(strings.TrimSpace(currency)),
		ExchangeRate:     exchangeRate,
		HomeAmount:       Convert(total, exchangeRate),
	}
}

// SetTotal updates the original amount and recomputes the home amount,
// clearing any manual override.
func (n *CurrencyNormalizer) SetTotal(conv *entity.CurrencyConversion, total float64) {
	conv.OriginalAmount = total
	conv.HomeAmount = Convert(total, conv.ExchangeRate)
	conv.ManualOverride = false
}

// SetExchangeRate updates the rate and recomputes the home amount,
// clearing any manual override.
func (n *CurrencyNormalizer) SetExchangeRate(conv *entity.CurrencyConversion, rate float64) {
	if rate <= 0 {
		rate = 1.0
	}
	conv.ExchangeRate = rate
	conv.HomeAmount = Convert(conv.OriginalAmount, rate)
	conv.ManualOverride = false
}

// SetHomeAmount overrides the home amount directly. The exchange rate is
// deliberately not back-computed.
func (n *CurrencyNormalizer) SetHomeAmount(conv *entity.CurrencyConversion, homeAmount float64) {
	conv.HomeAmount = homeAmount
	conv.ManualOverride = true
}

// ConvertForSave converts subtotal, tax and total at the same rate so a
// foreign-currency document is persisted consistently. Home-currency
// documents (nil conversion) pass through unchanged.
func (n *CurrencyNormalizer) ConvertForSave(conv *entity.CurrencyConversion, subtotal, taxAmount, total float64) (homeSubtotal, homeTax, homeTotal float64) {
	if conv == nil {
		return subtotal, taxAmount, total
	}
	homeSubtotal = Convert(subtotal, conv.ExchangeRate)
	homeTax = Convert(taxAmount, conv.ExchangeRate)
	if conv.ManualOverride {
		return homeSubtotal, homeTax, conv.HomeAmount
	}
	return homeSubtotal, homeTax, Convert(total, conv.ExchangeRate)
}

// Convert multiplies an amount by a rate and rounds to two decimals.
func Convert(amount, rate float64) float64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(2).
		InexactFloat64()
}
