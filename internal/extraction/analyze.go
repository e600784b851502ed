package extraction

import (
	"fmt"
	"math"
	"strings"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// Tolerances for the arithmetic checks, in document currency.
const (
	totalTolerance   = 0.10
	lineSumTolerance = 1.00
)

// Confidence weights per extraction aspect. They sum to 1.
const (
	weightVendor    = 0.20
	weightAmounts   = 0.30
	weightLineItems = 0.15
	weightTax       = 0.20
	weightDocType   = 0.15
)

// glCodes maps expense categories to general ledger account codes.
var glCodes = map[string]string{
	"software":              "6100",
	"hosting":               "6110",
	"telecom":               "6120",
	"subscriptions":         "6130",
	"hardware":              "6150",
	"marketing":             "6200",
	"travel":                "6300",
	"office_supplies":       "6400",
	"utilities":             "6410",
	"insurance":             "6420",
	"rent":                  "6430",
	"professional_services": "6500",
	"bank_charges":          "6600",
	"other":                 "6900",
}

// GLCodeForCategory returns the ledger account for a category, falling
// back to the catch-all account.
func GLCodeForCategory(category string) string {
	if code, ok := glCodes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return code
	}
	return glCodes["other"]
}

var recurringKeywords = []string{
	"subscription", "abonnement", "monthly fee", "maandelijks",
	"recurring", "renewal", "billing period", "service period",
}

// DetectRecurring guesses whether a document describes a recurring
// charge from keywords in its text.
func DetectRecurring(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range recurringKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ValidateMath checks the document arithmetic and returns review reasons
// for anything that does not add up. The amounts are never corrected;
// the user decides.
func ValidateMath(doc *entity.ExtractedDocument) []string {
	var reasons []string

	if doc.Subtotal != 0 || doc.TaxAmount != 0 {
		if diff := math.Abs(doc.Subtotal + doc.TaxAmount - doc.Total); diff > totalTolerance {
			reasons = append(reasons,
				fmt.Sprintf("subtotal %.2f + tax %.2f differs from total %.2f by %.2f",
					doc.Subtotal, doc.TaxAmount, doc.Total, diff))
		}
	}

	if len(doc.LineItems) > 0 {
		var sum float64
		for _, li := range doc.LineItems {
			sum += li.LineTotal
		}
		if diff := math.Abs(sum - doc.Subtotal); diff > lineSumTolerance {
			reasons = append(reasons,
				fmt.Sprintf("line items sum to %.2f but subtotal is %.2f", sum, doc.Subtotal))
		}
	}

	return reasons
}

// ScoreConfidence combines the per-aspect scores into an overall score
// and derives the advisory review flag.
func ScoreConfidence(doc *entity.ExtractedDocument, reviewReasons []string) {
	c := &doc.Confidence
	c.Overall = weightVendor*c.Vendor +
		weightAmounts*c.Amounts +
		weightLineItems*c.LineItems +
		weightTax*c.Tax +
		weightDocType*c.DocType

	doc.ReviewReasons = reviewReasons
	doc.RequiresReview = len(reviewReasons) > 0 || c.Overall < 0.75
}
