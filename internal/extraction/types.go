package extraction

import "encoding/json"

// rawDocument mirrors the JSON the model returns. Amount fields arrive
// as numbers or as strings with currency symbols and thousands
// separators, so they are decoded lazily.
type rawDocument struct {
	VendorName    string          `json:"vendor_name"`
	VendorVAT     string          `json:"vendor_vat"`
	VendorEmail   string          `json:"vendor_email"`
	VendorCountry string          `json:"vendor_country"`
	VendorAddress string          `json:"vendor_address"`
	VendorIBAN    string          `json:"vendor_iban"`
	VendorWebsite string          `json:"vendor_website"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	DueDate       string          `json:"due_date"`
	Currency      string          `json:"currency"`
	Subtotal      json.RawMessage `json:"subtotal"`
	TaxAmount     json.RawMessage `json:"tax_amount"`
	Total         json.RawMessage `json:"total"`
	LineItems     []rawLineItem   `json:"line_items"`
	DocumentKind  string          `json:"document_kind"`
	Category      string          `json:"category"`
	IsRecurring   bool            `json:"is_recurring"`
	Frequency     string          `json:"frequency"`
	Confidence    rawConfidence   `json:"confidence"`
}

type rawLineItem struct {
	Description string          `json:"description"`
	Quantity    json.RawMessage `json:"quantity"`
	UnitPrice   json.RawMessage `json:"unit_price"`
	TaxRate     json.RawMessage `json:"tax_rate"`
	LineTotal   json.RawMessage `json:"line_total"`
}

type rawConfidence struct {
	Vendor    float64 `json:"vendor"`
	Amounts   float64 `json:"amounts"`
	LineItems float64 `json:"line_items"`
	Tax       float64 `json:"tax"`
	DocType   float64 `json:"doc_type"`
}
