package entity

import "time"

// CounterpartyKind separates the vendor registry from the customer registry.
type CounterpartyKind string

const (
	KindVendor   CounterpartyKind = "vendor"
	KindCustomer CounterpartyKind = "customer"
)

// KindForDirection returns the registry consulted for a trade direction.
func KindForDirection(d Direction) CounterpartyKind {
	if d == DirectionSale {
		return KindCustomer
	}
	return KindVendor
}

// Counterparty is a registry entry, either a vendor or a customer.
// Uniqueness per (kind, vat_number) and (kind, email) is intended but not
// enforced transactionally.
type Counterparty struct {
	ID        string    `json:"id"`
	Kind      CounterpartyKind `json:"kind"`
	Name      string    `json:"name"`
	VATNumber string    `json:"vat_number,omitempty"`
	Email     string    `json:"email,omitempty"`
	Country   string    `json:"country,omitempty"`
	Address   string    `json:"address,omitempty"`
	IBAN      string    `json:"iban,omitempty"`
	Website   string    `json:"website,omitempty"`
	Tags      string    `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchType tells which tier of the resolver cascade produced a match.
type MatchType string

const (
	MatchExactVAT   MatchType = "exact_vat"
	MatchExactEmail MatchType = "exact_email"
	MatchFuzzyName  MatchType = "fuzzy_name"
	MatchNew        MatchType = "new"
)

// MatchResult is the outcome of one resolver run. Matched is nil when
// MatchType is new; Preview then carries a record built from the
// extracted fields. Alternatives are populated only for fuzzy matches.
type MatchResult struct {
	Matched      *Counterparty  `json:"matched,omitempty"`
	MatchType    MatchType      `json:"match_type"`
	Confidence   float64        `json:"confidence"`
	Alternatives []Counterparty `json:"alternatives,omitempty"`
	Preview      *Counterparty  `json:"preview,omitempty"`
}

// IsNew reports whether saving must create a counterparty.
func (m *MatchResult) IsNew() bool {
	return m == nil || m.MatchType == MatchNew || m.Matched == nil
}
