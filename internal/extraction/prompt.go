package extraction

import "fmt"

const systemPrompt = "You are an expert bookkeeping assistant that extracts structured data " +
	"from invoices, receipts, bills, credit notes and proforma invoices. " +
	"You read Dutch, English and German documents. Always respond with valid JSON."

func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(`Extract all financial data from the following document text.

Document text:
"""
%s
"""

Return a JSON object with this exact structure:
{
  "vendor_name": "string",
  "vendor_vat": "VAT number exactly as printed, or empty string",
  "vendor_email": "string",
  "vendor_country": "ISO 3166-1 alpha-2 code or country name, or empty string",
  "vendor_address": "string",
  "vendor_iban": "string",
  "vendor_website": "string",
  "invoice_number": "string",
  "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD or empty string",
  "currency": "ISO 4217 code",
  "subtotal": number,
  "tax_amount": number,
  "total": number,
  "line_items": [{"description": "string", "quantity": number, "unit_price": number, "tax_rate": number, "line_total": number}],
  "document_kind": "invoice | receipt | credit_note | proforma",
  "category": "software | hosting | telecom | subscriptions | hardware | marketing | travel | office_supplies | utilities | insurance | rent | professional_services | bank_charges | other",
  "is_recurring": boolean,
  "frequency": "weekly | monthly | quarterly | annual or empty string",
  "confidence": {"vendor": number, "amounts": number, "line_items": number, "tax": number, "doc_type": number}
}

IMPORTANT:
- Extract EXACTLY what the document says. Do not guess missing values.
- Amounts must be plain numbers without currency symbols or thousands separators.
- tax_rate is a percentage, e.g. 21 for 21%%.
- Confidence scores are between 0.0 and 1.0 per aspect.
- For credit notes, keep amounts with the sign printed on the document.
- If a field is not present, use empty string "" or 0.`, text)
}
