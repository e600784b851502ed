package resolver

import (
	"regexp"
	"strings"
)

// euCountries holds the ISO 3166-1 alpha-2 codes of EU member states.
// EL is the VAT-prefix alias Greece uses alongside GR.
var euCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true,
	"CZ": true, "DK": true, "EE": true, "FI": true, "FR": true,
	"DE": true, "GR": true, "EL": true, "HU": true, "IE": true,
	"IT": true, "LV": true, "LT": true, "LU": true, "MT": true,
	"NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true,
}

// euCountryNames maps common country spellings to ISO codes.
var euCountryNames = map[string]string{
	"netherlands": "NL", "the netherlands": "NL", "nederland": "NL",
	"germany": "DE", "deutschland": "DE",
	"belgium": "BE", "belgie": "BE", "belgique": "BE",
	"france": "FR", "spain": "ES", "espana": "ES",
	"italy": "IT", "italia": "IT",
	"austria": "AT", "osterreich": "AT",
	"ireland": "IE", "portugal": "PT", "poland": "PL", "polska": "PL",
	"sweden": "SE", "denmark": "DK", "finland": "FI",
	"luxembourg": "LU", "greece": "GR", "czech republic": "CZ",
	"czechia": "CZ", "hungary": "HU", "romania": "RO", "bulgaria": "BG",
	"croatia": "HR", "slovenia": "SI", "slovakia": "SK",
	"estonia": "EE", "latvia": "LV", "lithuania": "LT",
	"cyprus": "CY", "malta": "MT",
	"united states": "US", "usa": "US", "united kingdom": "GB",
	"great britain": "GB", "switzerland": "CH", "norway": "NO",
	"canada": "CA", "australia": "AU", "japan": "JP", "china": "CN",
	"india": "IN", "singapore": "SG", "united arab emirates": "AE",
}

// IsEU reports whether the ISO code belongs to an EU member state.
func IsEU(code string) bool {
	return euCountries[strings.ToUpper(strings.TrimSpace(code))]
}

var (
	vatPrefixRe  = regexp.MustCompile(`^([A-Z]{2})`)
	usAddressRe  = regexp.MustCompile(`(?i)\b[A-Z]{2}\s+\d{5}(?:-\d{4})?\b`)
	nlPostcodeRe = regexp.MustCompile(`\b\d{4}\s?[A-Z]{2}\b`)
	ukPostcodeRe = regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}\b`)
	ibanRe       = regexp.MustCompile(`\b([A-Z]{2})\d{2}[A-Z0-9]{10,30}\b`)
)

// DetectCountry derives a counterparty's ISO country code from the
// extracted fields, in priority order: VAT number prefix, explicit
// country field, address patterns, IBAN prefix. Returns "" when nothing
// matches.
func DetectCountry(vatNumber, country, address, iban string) string {
	// VAT prefix is the strongest signal
	vat := strings.ToUpper(strings.ReplaceAll(vatNumber, " ", ""))
	if m := vatPrefixRe.FindStringSubmatch(vat); m != nil {
		code := m[1]
		if code == "EL" {
			code = "GR"
		}
		if euCountries[code] || code == "GB" || code == "CH" || code == "NO" {
			return code
		}
	}

	// Explicit country field, either a code or a spelled-out name
	if c := strings.TrimSpace(country); c != "" {
		upper := strings.ToUpper(c)
		if len(upper) == 2 {
			if upper == "EL" {
				return "GR"
			}
			return upper
		}
		if code, ok := euCountryNames[strings.ToLower(c)]; ok {
			return code
		}
	}

	// Address heuristics
	if address != "" {
		lower := strings.ToLower(address)
		for name, code := range euCountryNames {
			if strings.Contains(lower, name) {
				return code
			}
		}
		if usAddressRe.MatchString(address) && strings.Contains(lower, "united states") {
			return "US"
		}
		if nlPostcodeRe.MatchString(address) {
			return "NL"
		}
		if ukPostcodeRe.MatchString(address) {
			return "GB"
		}
		if usAddressRe.MatchString(address) {
			return "US"
		}
	}

	// IBAN country prefix as a last resort
	if m := ibanRe.FindStringSubmatch(strings.ToUpper(strings.ReplaceAll(iban, " ", ""))); m != nil {
		return m[1]
	}

	return ""
}
