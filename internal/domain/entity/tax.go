package entity

// TaxMechanism names the treatment applied to a document's VAT.
type TaxMechanism string

const (
	// MechanismStandard applies domestic VAT as charged on the document.
	MechanismStandard TaxMechanism = "standard"
	// MechanismReverseCharge shifts VAT reporting to the buyer for
	// intra-EU business purchases, self-assessed at the nominal rate.
	MechanismReverseCharge TaxMechanism = "reverse_charge"
	// MechanismImportNoVAT covers purchases from outside the union.
	MechanismImportNoVAT TaxMechanism = "import_no_vat"
	// MechanismIntracommunity is a zero-rated sale to an EU business.
	MechanismIntracommunity TaxMechanism = "intracommunity"
	// MechanismExport is a zero-rated sale outside the union.
	MechanismExport TaxMechanism = "export"
)

// TaxDecision is the output of the tax rule resolver.
type TaxDecision struct {
	Mechanism           TaxMechanism `json:"mechanism"`
	SelfAssessRate      float64      `json:"self_assess_rate"`
	RubricCode          string       `json:"rubric_code,omitempty"`
	Explanation         string       `json:"explanation"`
	CounterpartyCountry string       `json:"counterparty_country,omitempty"`
}

// ZeroRated reports whether the mechanism forces effective tax to zero
// and effective total down to subtotal. The effect must be reapplied any
// time the counterparty country changes after resolution.
func (d TaxDecision) ZeroRated() bool {
	return d.Mechanism == MechanismIntracommunity || d.Mechanism == MechanismExport
}
