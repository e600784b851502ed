package extraction

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// vatLabelRe strips the label prefixes vendors print in front of their
// VAT number ("BTW-nr.", "USt-IdNr.", "VAT no" and friends).
var vatLabelRe = regexp.MustCompile(`(?i)^(NL\s+VAT|BTW[- ]?nr\.?|VAT[- ]?(number|nr|no)?\.?|USt[- ]?IdNr\.?|TVA|IVA|MwSt[- ]?Nr\.?)[:\s]*`)

// CleanVAT strips label prefixes and whitespace from a VAT number and
// uppercases it.
func CleanVAT(vat string) string {
	cleaned := vatLabelRe.ReplaceAllString(strings.TrimSpace(vat), "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	return strings.ToUpper(cleaned)
}

// NormalizeCurrency maps currency symbols and lowercase codes to ISO
// codes. Unknown input falls back to the given default.
func NormalizeCurrency(currency, fallback string) string {
	switch strings.TrimSpace(currency) {
	case "":
		return fallback
	case "€":
		return "EUR"
	case "$":
		return "USD"
	case "£":
		return "GBP"
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) == 3 {
		return code
	}
	return fallback
}

var amountJunkRe = regexp.MustCompile(`[€$£\s]`)

// ParseAmount converts an amount string to a float, tolerating currency
// symbols, thousands separators and European decimal commas.
func ParseAmount(s string) float64 {
	s = amountJunkRe.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return 0
	}

	// "1.234,56" uses comma as the decimal separator
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// toNum decodes a raw JSON value that may be a number or a formatted
// amount string.
func toNum(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseAmount(s)
	}
	return 0
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"January 2, 2006",
	"2 January 2006",
	time.RFC3339,
}

// ParseDate parses the date formats that show up on invoices. Returns
// the zero time when nothing matches.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
