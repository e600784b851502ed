package entity

import "time"

// AmountType tells whether a subscription bills a fixed or variable amount.
type AmountType string

const (
	AmountFixed    AmountType = "fixed"
	AmountVariable AmountType = "variable"
)

// BillingCycle is the recurrence interval of a subscription.
type BillingCycle string

const (
	CycleWeekly    BillingCycle = "weekly"
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// AmountObservation is a single observed charge for a subscription.
type AmountObservation struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// MaxAmountHistory caps how many observations a subscription retains.
const MaxAmountHistory = 12

// Subscription aggregates a recurring obligation across observed charges.
// AmountHistory keeps the most recent observations only, oldest first.
type Subscription struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	CounterpartyID  string              `json:"counterparty_id,omitempty"`
	AmountType      AmountType          `json:"amount_type"`
	AmountHistory   []AmountObservation `json:"amount_history"`
	EstimatedAmount float64             `json:"estimated_amount"`
	Currency        string              `json:"currency"`
	BillingCycle    BillingCycle        `json:"billing_cycle"`
	NextBillingDate time.Time           `json:"next_billing_date"`
	Status          string              `json:"status"`
	Category        string              `json:"category,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// RecurringTemplate records a document for future auto-generation. It is
// created unconditionally when a saved document is flagged recurring.
type RecurringTemplate struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	DocumentType   DocumentType `json:"document_type"`
	CounterpartyID string       `json:"counterparty_id,omitempty"`
	Amount         float64      `json:"amount"`
	Currency       string       `json:"currency"`
	BillingCycle   BillingCycle `json:"billing_cycle"`
	Category       string       `json:"category,omitempty"`
	NextRunDate    time.Time    `json:"next_run_date"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NextDate advances a date by one billing cycle. Unknown cycles default
// to monthly.
func (c BillingCycle) NextDate(from time.Time) time.Time {
	switch c {
	case CycleWeekly:
		return from.AddDate(0, 0, 7)
	case CycleQuarterly:
		return from.AddDate(0, 3, 0)
	case CycleYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// CycleFromFrequency maps an extraction frequency hint to a billing cycle.
func CycleFromFrequency(freq string) BillingCycle {
	switch freq {
	case "weekly":
		return CycleWeekly
	case "quarterly":
		return CycleQuarterly
	case "annual", "annually", "yearly":
		return CycleYearly
	default:
		return CycleMonthly
	}
}
