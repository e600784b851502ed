package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanVAT(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NL123456789B01", "NL123456789B01"},
		{"BTW-nr. NL123456789B01", "NL123456789B01"},
		{"VAT number: DE 123 456 789", "DE123456789"},
		{"USt-IdNr. DE123456789", "DE123456789"},
		{"btw nr nl123456789b01", "NL123456789B01"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanVAT(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "EUR", NormalizeCurrency("€", "EUR"))
	assert.Equal(t, "USD", NormalizeCurrency("$", "EUR"))
	assert.Equal(t, "GBP", NormalizeCurrency("£", "EUR"))
	assert.Equal(t, "USD", NormalizeCurrency("usd", "EUR"))
	assert.Equal(t, "EUR", NormalizeCurrency("", "EUR"))
	assert.Equal(t, "EUR", NormalizeCurrency("dollars", "EUR"))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"121.00", 121.00},
		{"€ 121,00", 121.00},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"$99", 99},
		{"-45.50", -45.50},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAmount(tt.in), "input %q", tt.in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, ParseDate("2026-03-15"))
	assert.Equal(t, want, ParseDate("15-03-2026"))
	assert.Equal(t, want, ParseDate("15/03/2026"))
	assert.True(t, ParseDate("not a date").IsZero())
	assert.True(t, ParseDate("").IsZero())
}
