package resolver

import (
	"fmt"
	"strings"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// Dutch VAT return rubrics for the cross-border mechanisms.
const (
	rubricReverseCharge  = "4b"
	rubricIntracommunity = "3b"
	rubricExport         = "3a"
)

// TaxRules resolves the tax mechanism for a document. It is a pure
// function of trade direction, counterparty country and nominal rate,
// relative to the configured home jurisdiction.
type TaxRules struct {
	homeCountry  string
	standardRate float64
}

// NewTaxRules creates a tax rule resolver for the given home jurisdiction
func NewTaxRules(homeCountry string, standardRate float64) *TaxRules {
	return &TaxRules{
		homeCountry:  strings.ToUpper(homeCountry),
		standardRate: standardRate,
	}
}

// Resolve maps (direction, country, nominal rate) to a tax decision.
// A missing or unrecognized country defaults to domestic treatment. It
// never fails.
func (t *TaxRules) Resolve(direction entity.Direction, counterpartyCountry string, nominalRatePercent float64) entity.TaxDecision {
	country := strings.ToUpper(strings.TrimSpace(counterpartyCountry))
	if country == "EL" {
		country = "GR"
	}

	decision := entity.TaxDecision{
		Mechanism:           entity.MechanismStandard,
		CounterpartyCountry: country,
	}

	if country == "" || country == t.homeCountry {
		decision.Explanation = fmt.Sprintf("Domestic transaction, standard VAT applies (%s)", t.homeCountry)
		return decision
	}

	if direction == entity.DirectionSale {
		if IsEU(country) {
			decision.Mechanism = entity.MechanismIntracommunity
			decision.RubricCode = rubricIntracommunity
			decision.Explanation = fmt.Sprintf("Intracommunity supply to %s, zero-rated", country)
		} else {
			decision.Mechanism = entity.MechanismExport
			decision.RubricCode = rubricExport
			decision.Explanation = fmt.Sprintf("Export to %s, zero-rated", country)
		}
		return decision
	}

	// Purchase direction
	if IsEU(country) {
		rate := nominalRatePercent
		if rate <= 0 {
			rate = t.standardRate
		}
		decision.Mechanism = entity.MechanismReverseCharge
		decision.SelfAssessRate = rate
		decision.RubricCode = rubricReverseCharge
		decision.Explanation = fmt.Sprintf("EU purchase from %s, VAT reverse charged at %.0f%%", country, rate)
		return decision
	}

	decision.Mechanism = entity.MechanismImportNoVAT
	decision.Explanation = fmt.Sprintf("Import from %s, no VAT charged on invoice", country)
	return decision
}

// ApplyZeroRating forces the effective amounts of a zero-rated sale:
// tax becomes zero and total collapses to subtotal. Other mechanisms
// pass through unchanged. Callers must reapply this whenever the
// counterparty country changes after resolution.
func ApplyZeroRating(decision entity.TaxDecision, subtotal, taxAmount, total float64) (effectiveTax, effectiveTotal float64) {
	if decision.ZeroRated() {
		return 0, subtotal
	}
	return taxAmount, total
}
