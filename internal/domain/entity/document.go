package entity

import "time"

// Direction indicates which side of the trade the administration is on.
type Direction string

const (
	DirectionPurchase Direction = "purchase"
	DirectionSale     Direction = "sale"
)

// DocumentType selects which ledger record a reviewed document becomes.
// Exactly one router branch executes per type.
type DocumentType string

const (
	DocTypeExpense      DocumentType = "expense"
	DocTypeBill         DocumentType = "bill"
	DocTypeSalesInvoice DocumentType = "sales_invoice"
	DocTypeCreditNote   DocumentType = "credit_note"
	DocTypeProforma     DocumentType = "proforma"
)

// DocumentTypes lists every routable document type. Router tests range
// over this to make sure no variant goes unhandled.
var DocumentTypes = []DocumentType{
	DocTypeExpense,
	DocTypeBill,
	DocTypeSalesInvoice,
	DocTypeCreditNote,
	DocTypeProforma,
}

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeExpense, DocTypeBill, DocTypeSalesInvoice, DocTypeCreditNote, DocTypeProforma:
		return true
	}
	return false
}

// TradeDirection returns the trade side the type books on. Sales
// invoices are the only sale-side variant; every other type settles
// against a vendor.
func (t DocumentType) TradeDirection() Direction {
	if t == DocTypeSalesInvoice {
		return DirectionSale
	}
	return DirectionPurchase
}

// LineItem is a single line of an extracted or persisted document.
type LineItem struct {
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	TaxRatePercent float64 `json:"tax_rate_percent"`
	LineTotal      float64 `json:"line_total"`
}

// Classification carries the category and recurrence hints produced by
// the extraction step.
type Classification struct {
	Category        string `json:"category"`
	GLCode          string `json:"gl_code,omitempty"`
	IsReverseCharge bool   `json:"is_reverse_charge"`
	IsRecurring     bool   `json:"is_recurring"`
	Frequency       string `json:"frequency,omitempty"`
}

// Confidence holds per-field extraction confidence scores in [0,1].
type Confidence struct {
	Overall   float64 `json:"overall"`
	Vendor    float64 `json:"vendor"`
	Amounts   float64 `json:"amounts"`
	LineItems float64 `json:"line_items"`
	Tax       float64 `json:"tax"`
	DocType   float64 `json:"doc_type"`
}

// ExtractedDocument is the structured payload produced by the extraction
// step. It lives only for the duration of a review session. Total is not
// required to equal subtotal plus tax; once the user edits it the edited
// value is authoritative.
type ExtractedDocument struct {
	VendorName    string         `json:"vendor_name"`
	VendorVAT     string         `json:"vendor_vat,omitempty"`
	VendorEmail   string         `json:"vendor_email,omitempty"`
	VendorCountry string         `json:"vendor_country,omitempty"`
	VendorAddress string         `json:"vendor_address,omitempty"`
	VendorIBAN    string         `json:"vendor_iban,omitempty"`
	VendorWebsite string         `json:"vendor_website,omitempty"`
	InvoiceNumber string         `json:"invoice_number,omitempty"`
	InvoiceDate   time.Time      `json:"invoice_date"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	Currency      string         `json:"currency"`
	Subtotal      float64        `json:"subtotal"`
	TaxAmount     float64        `json:"tax_amount"`
	Total         float64        `json:"total"`
	LineItems     []LineItem     `json:"line_items"`
	Class         Classification `json:"classification"`
	Confidence    Confidence     `json:"confidence"`

	// RequiresReview is advisory only; it never blocks saving.
	RequiresReview bool     `json:"requires_review"`
	ReviewReasons  []string `json:"review_reasons,omitempty"`
}

// CurrencyConversion is materialized only when the document currency
// differs from the home currency.
type CurrencyConversion struct {
	OriginalAmount   float64 `json:"original_amount"`
	OriginalCurrency string  `json:"original_currency"`
	ExchangeRate     float64 `json:"exchange_rate"`
	HomeAmount       float64 `json:"home_amount"`
	ManualOverride   bool    `json:"manual_override"`
}
