package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCountry(t *testing.T) {
	tests := []struct {
		name    string
		vat     string
		country string
		address string
		iban    string
		want    string
	}{
		{name: "VAT prefix wins", vat: "DE123456789", country: "Netherlands", want: "DE"},
		{name: "greek EL prefix maps to GR", vat: "EL123456789", want: "GR"},
		{name: "explicit ISO code", country: "us", want: "US"},
		{name: "country name", country: "Germany", want: "DE"},
		{name: "dutch postcode in address", address: "Keizersgracht 1, 1015 CJ Amsterdam", want: "NL"},
		{name: "uk postcode in address", address: "10 Downing St, London SW1A 2AA", want: "GB"},
		{name: "us state and zip", address: "100 Main St, Austin, TX 73301, United States", want: "US"},
		{name: "country name inside address", address: "Hauptstrasse 5, 10115 Berlin, Deutschland", want: "DE"},
		{name: "iban prefix as last resort", iban: "FR7630006000011234567890189", want: "FR"},
		{name: "nothing matches", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCountry(tt.vat, tt.country, tt.address, tt.iban)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsEU(t *testing.T) {
	assert.True(t, IsEU("NL"))
	assert.True(t, IsEU("de"))
	assert.True(t, IsEU("EL"))
	assert.False(t, IsEU("US"))
	assert.False(t, IsEU("GB"))
	assert.False(t, IsEU(""))
}
