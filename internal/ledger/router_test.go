package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/internal/resolver"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTransaction(fn func(*sql.Tx) error) error { return fn(nil) }

type fakeCounterparties struct {
	created   []*entity.Counterparty
	updated   []*entity.Counterparty
	existing  map[string]bool
	createErr error
}

func (f *fakeCounterparties) Create(_ *sql.Tx, c *entity.Counterparty) error {
	if f.createErr != nil {
		return f.createErr
	}
	c.ID = "cp-" + strings.ToLower(strings.ReplaceAll(c.Name, " ", "-"))
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCounterparties) Update(_ *sql.Tx, c *entity.Counterparty) error {
	f.updated = append(f.updated, c)
	return nil
}

func (f *fakeCounterparties) ExistsByNameOrVAT(_ context.Context, _ entity.CounterpartyKind, name, _ string) (bool, error) {
	return f.existing[strings.ToLower(name)], nil
}

type fakeRecords struct {
	expenses  []*entity.Expense
	bills     []*entity.Bill
	invoices  []*entity.SalesInvoice
	notes     []*entity.CreditNote
	proformas []*entity.Proforma
	lineItems map[string][]entity.LineItem
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{lineItems: make(map[string][]entity.LineItem)}
}

func (f *fakeRecords) CreateExpense(_ *sql.Tx, e *entity.Expense) error {
	e.ID = "exp-1"
	f.expenses = append(f.expenses, e)
	return nil
}

func (f *fakeRecords) CreateBill(_ *sql.Tx, b *entity.Bill) error {
	b.ID = "bill-1"
	f.bills = append(f.bills, b)
	return nil
}

func (f *fakeRecords) CreateSalesInvoice(_ *sql.Tx, si *entity.SalesInvoice) error {
	si.ID = "inv-1"
	f.invoices = append(f.invoices, si)
	return nil
}

func (f *fakeRecords) CreateCreditNote(_ *sql.Tx, cn *entity.CreditNote) error {
	cn.ID = "cn-1"
	f.notes = append(f.notes, cn)
	return nil
}

func (f *fakeRecords) CreateProforma(_ *sql.Tx, p *entity.Proforma) error {
	p.ID = "pf-1"
	f.proformas = append(f.proformas, p)
	return nil
}

func (f *fakeRecords) CreateLineItems(_ *sql.Tx, docType entity.DocumentType, docID string, items []entity.LineItem) error {
	f.lineItems[string(docType)+"/"+docID] = items
	return nil
}

type fakePoster struct {
	posted []entity.DocumentType
	err    error
}

func (f *fakePoster) PostDocument(_ context.Context, docType entity.DocumentType, _ *entity.LedgerFields) error {
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, docType)
	return nil
}

type fakeTracker struct {
	tracked int
	err     error
}

func (f *fakeTracker) Track(_ context.Context, _ *entity.ExtractedDocument, _ entity.DocumentType, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.tracked++
	return nil
}

type routerFixture struct {
	router         *Router
	counterparties *fakeCounterparties
	records        *fakeRecords
	poster         *fakePoster
	tracker        *fakeTracker
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		counterparties: &fakeCounterparties{existing: make(map[string]bool)},
		records:        newFakeRecords(),
		poster:         &fakePoster{},
		tracker:        &fakeTracker{},
	}
	f.router = NewRouter(fakeTxRunner{}, f.counterparties, f.records, f.poster, f.tracker,
		resolver.NewTaxRules("NL", 21.0), resolver.NewCurrencyNormalizer("EUR"), zap.NewNop())
	return f
}

func baseDoc() *entity.ExtractedDocument {
	return &entity.ExtractedDocument{
		VendorName:    "Acme BV",
		InvoiceNumber: "INV-100",
		InvoiceDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Currency:      "EUR",
		Subtotal:      100,
		TaxAmount:     21,
		Total:         121,
		LineItems: []entity.LineItem{
			{Description: "Licenses", Quantity: 1, UnitPrice: 100, TaxRatePercent: 21, LineTotal: 100},
		},
		Class: entity.Classification{Category: "software", GLCode: "6100"},
	}
}

func matchedVendor() *entity.MatchResult {
	return &entity.MatchResult{
		Matched: &entity.Counterparty{
			ID: "v1", Kind: entity.KindVendor, Name: "Acme BV", VATNumber: "NL123456789B01",
		},
		MatchType:  entity.MatchExactVAT,
		Confidence: 0.99,
	}
}

func TestSave_ExpenseDomestic(t *testing.T) {
	f := newRouterFixture()

	outcome, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       baseDoc(),
		DocType:   entity.DocTypeExpense,
		Direction: entity.DirectionPurchase,
		Match:     matchedVendor(),
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismStandard, CounterpartyCountry: "NL"},
	})
	require.NoError(t, err)

	require.Len(t, f.records.expenses, 1)
	expense := f.records.expenses[0]
	assert.Equal(t, 121.0, expense.Total)
	assert.Equal(t, 21.0, expense.TaxAmount)
	assert.Equal(t, entity.MechanismStandard, expense.TaxMechanism)
	// Home currency: home amount equals total exactly
	assert.Equal(t, 121.0, expense.HomeAmount)
	assert.Equal(t, entity.StatusPosted, expense.Status)
	assert.Equal(t, "v1", expense.CounterpartyID)

	// Line items persisted for the record
	assert.Len(t, f.records.lineItems["expense/exp-1"], 1)

	// Posted to the GL
	assert.Equal(t, []entity.DocumentType{entity.DocTypeExpense}, f.poster.posted)
	assert.False(t, outcome.PartiallyFiled)
	assert.False(t, outcome.CounterpartyCreated)
}

func TestSave_ExpenseCreatesNewVendorOnce(t *testing.T) {
	f := newRouterFixture()

	doc := baseDoc()
	doc.VendorName = "Newco"

	outcome, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeExpense,
		Direction: entity.DirectionPurchase,
		Match: &entity.MatchResult{
			MatchType:  entity.MatchNew,
			Confidence: 1.0,
			Preview:    &entity.Counterparty{Kind: entity.KindVendor, Name: "Newco"},
		},
		Tax: entity.TaxDecision{Mechanism: entity.MechanismStandard},
	})
	require.NoError(t, err)

	// Exactly one vendor created, plus the best-effort customer mirror
	var vendors, customers int
	for _, c := range f.counterparties.created {
		switch c.Kind {
		case entity.KindVendor:
			vendors++
			assert.Equal(t, "Newco", c.Name)
		case entity.KindCustomer:
			customers++
			assert.Equal(t, "supplier", c.Tags)
		}
	}
	assert.Equal(t, 1, vendors)
	assert.Equal(t, 1, customers)
	assert.True(t, outcome.CounterpartyCreated)
}

func TestSave_ExpenseMirrorSkippedWhenCustomerExists(t *testing.T) {
	f := newRouterFixture()
	f.counterparties.existing["newco"] = true

	doc := baseDoc()
	doc.VendorName = "Newco"

	outcome, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeExpense,
		Direction: entity.DirectionPurchase,
		Match: &entity.MatchResult{
			MatchType: entity.MatchNew,
			Preview:   &entity.Counterparty{Kind: entity.KindVendor, Name: "Newco"},
		},
		Tax: entity.TaxDecision{Mechanism: entity.MechanismStandard},
	})
	require.NoError(t, err)

	for _, effect := range outcome.SideEffects {
		if effect.Name == EffectCRMMirror {
			assert.Equal(t, EffectSkipped, effect.Status)
		}
	}
	require.Len(t, f.counterparties.created, 1)
}

func TestSave_BillRequiresCounterparty(t *testing.T) {
	f := newRouterFixture()

	_, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       baseDoc(),
		DocType:   entity.DocTypeBill,
		Direction: entity.DirectionPurchase,
		Match:     &entity.MatchResult{MatchType: entity.MatchNew},
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismStandard},
	})
	require.Error(t, err)
	assert.Empty(t, f.records.bills)
}

func TestSave_BillBalanceDueIsHomeAmount(t *testing.T) {
	f := newRouterFixture()

	doc := baseDoc()
	doc.Currency = "USD"

	outcome, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeBill,
		Direction: entity.DirectionPurchase,
		Match:     matchedVendor(),
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismImportNoVAT, CounterpartyCountry: "US"},
		Conversion: &entity.CurrencyConversion{
			OriginalAmount: 121, OriginalCurrency: "USD", ExchangeRate: 0.92, HomeAmount: 111.32,
		},
	})
	require.NoError(t, err)

	require.Len(t, f.records.bills, 1)
	bill := f.records.bills[0]
	assert.Equal(t, 111.32, bill.HomeAmount)
	assert.Equal(t, 111.32, bill.BalanceDue)
	assert.Equal(t, 0.92, bill.ExchangeRate)
	assert.Equal(t, entity.StatusOpen, bill.Status)
	assert.False(t, outcome.PartiallyFiled)
}

func TestSave_ExpenseForeignCurrencyConvertsAllAmounts(t *testing.T) {
	f := newRouterFixture()

	doc := baseDoc()
	doc.Currency = "USD"

	_, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeExpense,
		Direction: entity.DirectionPurchase,
		Match:     matchedVendor(),
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismImportNoVAT, CounterpartyCountry: "US"},
		Conversion: &entity.CurrencyConversion{
			OriginalAmount: 121, OriginalCurrency: "USD", ExchangeRate: 0.92, HomeAmount: 111.32,
		},
	})
	require.NoError(t, err)

	require.Len(t, f.records.expenses, 1)
	expense := f.records.expenses[0]
	// Subtotal and tax are stored converted at the same rate as the
	// home amount; the total keeps the native figure
	assert.Equal(t, 92.0, expense.Subtotal)
	assert.Equal(t, 19.32, expense.TaxAmount)
	assert.Equal(t, 121.0, expense.Total)
	assert.Equal(t, 111.32, expense.HomeAmount)
	assert.Equal(t, 0.92, expense.ExchangeRate)
}

func TestSave_SalesInvoiceIgnoresPurchaseSideTax(t *testing.T) {
	f := newRouterFixture()

	customer := &entity.Counterparty{ID: "c2", Kind: entity.KindCustomer, Name: "Müller GmbH"}

	// A decision resolved for the purchase side must not survive the
	// sales invoice branch
	_, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       baseDoc(),
		DocType:   entity.DocTypeSalesInvoice,
		Direction: entity.DirectionPurchase,
		Match:     &entity.MatchResult{Matched: customer, MatchType: entity.MatchExactVAT},
		Tax: entity.TaxDecision{
			Mechanism:           entity.MechanismReverseCharge,
			SelfAssessRate:      21,
			RubricCode:          "4b",
			CounterpartyCountry: "DE",
		},
	})
	require.NoError(t, err)

	require.Len(t, f.records.invoices, 1)
	invoice := f.records.invoices[0]
	assert.Equal(t, entity.MechanismIntracommunity, invoice.TaxMechanism)
	assert.Equal(t, "3b", invoice.RubricCode)
	assert.Equal(t, 0.0, invoice.SelfAssessRate)
	// Intracommunity supplies are zero-rated
	assert.Equal(t, 0.0, invoice.TaxAmount)
	assert.Equal(t, 100.0, invoice.Total)
}

func TestSave_SalesInvoiceZeroRatedAndEnriches(t *testing.T) {
	f := newRouterFixture()

	doc := baseDoc()
	doc.VendorVAT = "US-EIN-12345"
	doc.VendorEmail = "ap@acme.example"

	customer := &entity.Counterparty{ID: "c1", Kind: entity.KindCustomer, Name: "Acme Inc", Email: "existing@acme.example"}

	outcome, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeSalesInvoice,
		Direction: entity.DirectionSale,
		Match:     &entity.MatchResult{Matched: customer, MatchType: entity.MatchFuzzyName},
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismExport, CounterpartyCountry: "US", RubricCode: "3a"},
	})
	require.NoError(t, err)

	require.Len(t, f.records.invoices, 1)
	invoice := f.records.invoices[0]
	// Export zero-rating forces tax to zero and total to subtotal
	assert.Equal(t, 0.0, invoice.TaxAmount)
	assert.Equal(t, 100.0, invoice.Total)
	assert.Equal(t, entity.StatusDraft, invoice.Status)

	// No GL posting for draft sales invoices
	assert.Empty(t, f.poster.posted)

	// Enrichment fills only empty fields: VAT and country set, email kept
	require.Len(t, f.counterparties.updated, 1)
	assert.Equal(t, "US-EIN-12345", customer.VATNumber)
	assert.Equal(t, "US", customer.Country)
	assert.Equal(t, "existing@acme.example", customer.Email)
	assert.False(t, outcome.PartiallyFiled)
}

func TestSave_CreditNoteAbsoluteAmounts(t *testing.T) {
	f := newRouterFixture()

	doc := baseDoc()
	doc.Subtotal = -100
	doc.TaxAmount = -21
	doc.Total = -121

	_, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeCreditNote,
		Direction: entity.DirectionPurchase,
		Match:     matchedVendor(),
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismStandard},
	})
	require.NoError(t, err)

	require.Len(t, f.records.notes, 1)
	note := f.records.notes[0]
	assert.Equal(t, 100.0, note.Subtotal)
	assert.Equal(t, 21.0, note.TaxAmount)
	assert.Equal(t, 121.0, note.Total)
	assert.Equal(t, entity.StatusIssued, note.Status)
}

func TestSave_ProformaNeverPosted(t *testing.T) {
	f := newRouterFixture()

	outcome, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       baseDoc(),
		DocType:   entity.DocTypeProforma,
		Direction: entity.DirectionPurchase,
		Match:     matchedVendor(),
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismStandard},
	})
	require.NoError(t, err)

	require.Len(t, f.records.proformas, 1)
	assert.Equal(t, entity.StatusPendingReview, f.records.proformas[0].Status)
	assert.Empty(t, f.poster.posted)

	var found bool
	for _, effect := range outcome.SideEffects {
		if effect.Name == EffectGLPosting {
			found = true
			assert.Equal(t, EffectSkipped, effect.Status)
		}
	}
	assert.True(t, found)
}

func TestSave_SideEffectFailureDoesNotRollBack(t *testing.T) {
	f := newRouterFixture()
	f.poster.err = errors.New("posting service down")
	f.tracker.err = errors.New("tracker down")

	doc := baseDoc()
	doc.Class.IsRecurring = true
	doc.Class.Frequency = "monthly"

	outcome, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeExpense,
		Direction: entity.DirectionPurchase,
		Match:     matchedVendor(),
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismStandard},
	})
	require.NoError(t, err)

	// Record exists despite both side effects failing
	require.Len(t, f.records.expenses, 1)
	assert.True(t, outcome.PartiallyFiled)

	statuses := make(map[string]SideEffectStatus)
	for _, effect := range outcome.SideEffects {
		statuses[effect.Name] = effect.Status
	}
	assert.Equal(t, EffectFailed, statuses[EffectGLPosting])
	assert.Equal(t, EffectFailed, statuses[EffectRecurring])
}

func TestSave_RecurringTracked(t *testing.T) {
	f := newRouterFixture()

	doc := baseDoc()
	doc.Class.IsRecurring = true

	_, err := f.router.Save(context.Background(), SaveRequest{
		Doc:       doc,
		DocType:   entity.DocTypeExpense,
		Direction: entity.DirectionPurchase,
		Match:     matchedVendor(),
		Tax:       entity.TaxDecision{Mechanism: entity.MechanismStandard},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.tracker.tracked)
}

func TestSave_UnknownDocumentType(t *testing.T) {
	f := newRouterFixture()

	_, err := f.router.Save(context.Background(), SaveRequest{
		Doc:     baseDoc(),
		DocType: entity.DocumentType("purchase_order"),
	})
	require.Error(t, err)
}
