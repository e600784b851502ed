package entity

import "time"

// RecordStatus is the lifecycle state of a persisted ledger record.
type RecordStatus string

const (
	StatusPosted        RecordStatus = "posted"
	StatusOpen          RecordStatus = "open"
	StatusDraft         RecordStatus = "draft"
	StatusIssued        RecordStatus = "issued"
	StatusPendingReview RecordStatus = "pending_review"
)

// LedgerFields are the fields every ledger record variant shares.
type LedgerFields struct {
	ID             string       `json:"id"`
	CounterpartyID string       `json:"counterparty_id,omitempty"`
	Reference      string       `json:"reference,omitempty"`
	IssueDate      time.Time    `json:"issue_date"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	Currency       string       `json:"currency"`
	Subtotal       float64      `json:"subtotal"`
	TaxAmount      float64      `json:"tax_amount"`
	Total          float64      `json:"total"`
	ExchangeRate   float64      `json:"exchange_rate,omitempty"`
	HomeAmount     float64      `json:"home_amount,omitempty"`
	TaxMechanism   TaxMechanism `json:"tax_mechanism"`
	SelfAssessRate float64      `json:"self_assess_rate,omitempty"`
	RubricCode     string       `json:"rubric_code,omitempty"`
	Category       string       `json:"category,omitempty"`
	GLCode         string       `json:"gl_code,omitempty"`
	LineItems      []LineItem   `json:"line_items,omitempty"`
	Status         RecordStatus `json:"status"`
	FileRef        string       `json:"file_ref,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// LedgerRecord is the tagged union produced by the document router.
// Exactly one variant field is non-nil; Type is the discriminant.
type LedgerRecord struct {
	Type         DocumentType  `json:"type"`
	Expense      *Expense      `json:"expense,omitempty"`
	Bill         *Bill         `json:"bill,omitempty"`
	SalesInvoice *SalesInvoice `json:"sales_invoice,omitempty"`
	CreditNote   *CreditNote   `json:"credit_note,omitempty"`
	Proforma     *Proforma     `json:"proforma,omitempty"`
}

// Fields returns the shared fields of whichever variant is set.
func (r LedgerRecord) Fields() *LedgerFields {
	switch r.Type {
	case DocTypeExpense:
		return &r.Expense.LedgerFields
	case DocTypeBill:
		return &r.Bill.LedgerFields
	case DocTypeSalesInvoice:
		return &r.SalesInvoice.LedgerFields
	case DocTypeCreditNote:
		return &r.CreditNote.LedgerFields
	case DocTypeProforma:
		return &r.Proforma.LedgerFields
	}
	return nil
}

// Expense is a purchase posted to the ledger immediately.
type Expense struct {
	LedgerFields
	PaymentMethod string `json:"payment_method,omitempty"`
}

// Bill is an unpaid purchase obligation with an outstanding balance.
type Bill struct {
	LedgerFields
	BalanceDue float64 `json:"balance_due"`
}

// SalesInvoice is an outgoing invoice, persisted as a draft.
type SalesInvoice struct {
	LedgerFields
}

// CreditNote reverses a prior charge. Amounts are stored as absolute
// values regardless of sign in the source document.
type CreditNote struct {
	LedgerFields
	OriginalReference string `json:"original_reference,omitempty"`
}

// Proforma is an anticipated charge awaiting review. Same shape as an
// expense but never posted to the general ledger.
type Proforma struct {
	LedgerFields
}

// GLPosting is a general ledger posting generated for an expense, bill
// or credit note.
type GLPosting struct {
	ID             string       `json:"id"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentID     string       `json:"document_id"`
	GLCode         string       `json:"gl_code"`
	Description    string       `json:"description"`
	Debit          float64      `json:"debit"`
	Credit         float64      `json:"credit"`
	TaxMechanism   TaxMechanism `json:"tax_mechanism"`
	SelfAssessRate float64      `json:"self_assess_rate,omitempty"`
	PostedAt       time.Time    `json:"posted_at"`
}
