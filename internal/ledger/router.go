package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/internal/resolver"
)

// CounterpartyStore is the registry surface the router needs at save time.
type CounterpartyStore interface {
	Create(tx *sql.Tx, c *entity.Counterparty) error
	Update(tx *sql.Tx, c *entity.Counterparty) error
	ExistsByNameOrVAT(ctx context.Context, kind entity.CounterpartyKind, name, vatNumber string) (bool, error)
}

// RecordStore persists ledger records and their line items.
type RecordStore interface {
	CreateExpense(tx *sql.Tx, e *entity.Expense) error
	CreateBill(tx *sql.Tx, b *entity.Bill) error
	CreateSalesInvoice(tx *sql.Tx, si *entity.SalesInvoice) error
	CreateCreditNote(tx *sql.Tx, cn *entity.CreditNote) error
	CreateProforma(tx *sql.Tx, p *entity.Proforma) error
	CreateLineItems(tx *sql.Tx, docType entity.DocumentType, docID string, items []entity.LineItem) error
}

// Poster creates GL postings for saved records.
type Poster interface {
	PostDocument(ctx context.Context, docType entity.DocumentType, f *entity.LedgerFields) error
}

// RecurringTracker maintains subscription aggregates for recurring
// documents. Its failures must never fail the save.
type RecurringTracker interface {
	Track(ctx context.Context, doc *entity.ExtractedDocument, docType entity.DocumentType, counterpartyID string) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTransaction(fn func(*sql.Tx) error) error
}

// SaveRequest carries everything the router needs to file one reviewed
// document. The document type is fixed by the caller and not re-derived
// from content.
type SaveRequest struct {
	Doc        *entity.ExtractedDocument
	DocType    entity.DocumentType
	Direction  entity.Direction
	Match      *entity.MatchResult
	Tax        entity.TaxDecision
	Conversion *entity.CurrencyConversion
	FileRef    string
}

// Router files a reviewed document as exactly one ledger record variant.
// The primary record and its line items are transactional; GL posting,
// directory mirroring and subscription tracking are best-effort side
// effects reported in the outcome.
type Router struct {
	tx             TxRunner
	counterparties CounterpartyStore
	records        RecordStore
	poster         Poster
	tracker        RecurringTracker
	taxRules       *resolver.TaxRules
	normalizer     *resolver.CurrencyNormalizer
	logger         *zap.Logger
}

// NewRouter creates a document router
func NewRouter(
	tx TxRunner,
	counterparties CounterpartyStore,
	records RecordStore,
	poster Poster,
	tracker RecurringTracker,
	taxRules *resolver.TaxRules,
	normalizer *resolver.CurrencyNormalizer,
	logger *zap.Logger,
) *Router {
	return &Router{
		tx:             tx,
		counterparties: counterparties,
		records:        records,
		poster:         poster,
		tracker:        tracker,
		taxRules:       taxRules,
		normalizer:     normalizer,
		logger:         logger,
	}
}

// Save routes the document to its ledger record variant. Exactly one
// branch executes. A missing required counterparty aborts the save; side
// effect failures do not.
func (r *Router) Save(ctx context.Context, req SaveRequest) (*SaveOutcome, error) {
	if !req.DocType.Valid() {
		return nil, fmt.Errorf("unknown document type %q", req.DocType)
	}
	if req.Doc == nil {
		return nil, fmt.Errorf("no document to save")
	}

	outcome := &SaveOutcome{}

	// A sales invoice never reuses a decision made for the purchase
	// side; its tax is resolved afresh under sale rules
	if req.DocType == entity.DocTypeSalesInvoice {
		req.Tax = r.taxRules.Resolve(entity.DirectionSale,
			req.Tax.CounterpartyCountry, nominalRatePercent(req.Doc))
	}

	fields, err := r.buildFields(req)
	if err != nil {
		return nil, err
	}

	switch req.DocType {
	case entity.DocTypeExpense:
		err = r.saveExpense(ctx, req, fields, outcome)
	case entity.DocTypeBill:
		err = r.saveBill(ctx, req, fields, outcome)
	case entity.DocTypeSalesInvoice:
		err = r.saveSalesInvoice(ctx, req, fields, outcome)
	case entity.DocTypeCreditNote:
		err = r.saveCreditNote(ctx, req, fields, outcome)
	case entity.DocTypeProforma:
		err = r.saveProforma(ctx, req, fields, outcome)
	default:
		err = fmt.Errorf("unhandled document type %q", req.DocType)
	}
	if err != nil {
		return nil, err
	}

	r.trackRecurring(ctx, req, outcome)

	r.logger.Info("Document filed",
		zap.String("type", string(req.DocType)),
		zap.String("id", outcome.Record.Fields().ID),
		zap.Bool("partially_filed", outcome.PartiallyFiled))

	return outcome, nil
}

// buildFields assembles the shared record fields: effective amounts
// after zero-rating, home-currency conversion, and the tax decision.
func (r *Router) buildFields(req SaveRequest) (entity.LedgerFields, error) {
	doc := req.Doc

	effectiveTax, effectiveTotal := resolver.ApplyZeroRating(req.Tax, doc.Subtotal, doc.TaxAmount, doc.Total)
	// Subtotal and tax are persisted in home currency at the same rate
	// as the total; only the total keeps its native figure next to the
	// converted home_amount
	homeSubtotal, homeTax, homeTotal := r.normalizer.ConvertForSave(req.Conversion, doc.Subtotal, effectiveTax, effectiveTotal)

	issueDate := doc.InvoiceDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}

	fields := entity.LedgerFields{
		Reference:      doc.InvoiceNumber,
		IssueDate:      issueDate,
		DueDate:        doc.DueDate,
		Currency:       doc.Currency,
		Subtotal:       homeSubtotal,
		TaxAmount:      homeTax,
		Total:          effectiveTotal,
		HomeAmount:     homeTotal,
		TaxMechanism:   req.Tax.Mechanism,
		SelfAssessRate: req.Tax.SelfAssessRate,
		RubricCode:     req.Tax.RubricCode,
		Category:       doc.Class.Category,
		GLCode:         doc.Class.GLCode,
		LineItems:      doc.LineItems,
		FileRef:        req.FileRef,
	}
	if req.Conversion != nil {
		fields.ExchangeRate = req.Conversion.ExchangeRate
	}
	return fields, nil
}

// nominalRatePercent derives the document's VAT percentage from its
// amounts.
func nominalRatePercent(doc *entity.ExtractedDocument) float64 {
	if doc.Subtotal <= 0 || doc.TaxAmount <= 0 {
		return 0
	}
	return doc.TaxAmount / doc.Subtotal * 100
}

// ensureCounterparty returns the counterparty for the record, creating
// one from the match preview when the resolver decided "new". When
// required is true a missing counterparty aborts the save.
func (r *Router) ensureCounterparty(req SaveRequest, outcome *SaveOutcome, required bool) (*entity.Counterparty, error) {
	if req.Match != nil && req.Match.Matched != nil {
		outcome.Counterparty = req.Match.Matched
		return req.Match.Matched, nil
	}

	var preview *entity.Counterparty
	if req.Match != nil {
		preview = req.Match.Preview
	}
	if preview == nil || preview.Name == "" {
		if required {
			return nil, fmt.Errorf("%s requires a counterparty but none was resolved or extracted", req.DocType)
		}
		return nil, nil
	}

	// Creation happens outside the record transaction; a duplicate from
	// a racing save is possible and accepted (see ExistsByNameOrVAT for
	// the mirror path).
	created := *preview
	if err := r.counterparties.Create(nil, &created); err != nil {
		return nil, fmt.Errorf("failed to create counterparty %q: %w", preview.Name, err)
	}
	outcome.Counterparty = &created
	outcome.CounterpartyCreated = true

	r.logger.Info("Counterparty created",
		zap.String("id", created.ID),
		zap.String("name", created.Name),
		zap.String("kind", string(created.Kind)))
	return &created, nil
}

// persist writes the record and its line items in one transaction.
func (r *Router) persist(create func(tx *sql.Tx) error, docType entity.DocumentType, fields *entity.LedgerFields) error {
	return r.tx.WithTransaction(func(tx *sql.Tx) error {
		if err := create(tx); err != nil {
			return err
		}
		return r.records.CreateLineItems(tx, docType, fields.ID, fields.LineItems)
	})
}

func (r *Router) saveExpense(ctx context.Context, req SaveRequest, fields entity.LedgerFields, outcome *SaveOutcome) error {
	// Expenses auto-create an unmatched vendor but do not require one
	cp, err := r.ensureCounterparty(req, outcome, false)
	if err != nil {
		return err
	}
	if cp != nil {
		fields.CounterpartyID = cp.ID
	}
	fields.Status = entity.StatusPosted

	expense := &entity.Expense{LedgerFields: fields}
	if err := r.persist(func(tx *sql.Tx) error {
		return r.records.CreateExpense(tx, expense)
	}, entity.DocTypeExpense, &expense.LedgerFields); err != nil {
		return err
	}
	outcome.Record = entity.LedgerRecord{Type: entity.DocTypeExpense, Expense: expense}

	r.postToLedger(ctx, entity.DocTypeExpense, &expense.LedgerFields, outcome)
	r.mirrorVendor(ctx, cp, outcome)
	return nil
}

func (r *Router) saveBill(ctx context.Context, req SaveRequest, fields entity.LedgerFields, outcome *SaveOutcome) error {
	cp, err := r.ensureCounterparty(req, outcome, true)
	if err != nil {
		return err
	}
	fields.CounterpartyID = cp.ID
	fields.Status = entity.StatusOpen

	bill := &entity.Bill{
		LedgerFields: fields,
		BalanceDue:   fields.HomeAmount,
	}
	if err := r.persist(func(tx *sql.Tx) error {
		return r.records.CreateBill(tx, bill)
	}, entity.DocTypeBill, &bill.LedgerFields); err != nil {
		return err
	}
	outcome.Record = entity.LedgerRecord{Type: entity.DocTypeBill, Bill: bill}

	r.postToLedger(ctx, entity.DocTypeBill, &bill.LedgerFields, outcome)
	return nil
}

func (r *Router) saveSalesInvoice(ctx context.Context, req SaveRequest, fields entity.LedgerFields, outcome *SaveOutcome) error {
	cp, err := r.ensureCounterparty(req, outcome, true)
	if err != nil {
		return err
	}
	fields.CounterpartyID = cp.ID

	// Drafted, not finalized; no GL posting until confirmation
	fields.Status = entity.StatusDraft

	invoice := &entity.SalesInvoice{LedgerFields: fields}
	if err := r.persist(func(tx *sql.Tx) error {
		return r.records.CreateSalesInvoice(tx, invoice)
	}, entity.DocTypeSalesInvoice, &invoice.LedgerFields); err != nil {
		return err
	}
	outcome.Record = entity.LedgerRecord{Type: entity.DocTypeSalesInvoice, SalesInvoice: invoice}

	// Enrich an existing matched customer with extracted identity
	// fields, filling only what was empty
	if !outcome.CounterpartyCreated && req.Match != nil && req.Match.Matched != nil {
		r.enrichCounterparty(req, cp, outcome)
	}
	return nil
}

func (r *Router) saveCreditNote(ctx context.Context, req SaveRequest, fields entity.LedgerFields, outcome *SaveOutcome) error {
	cp, err := r.ensureCounterparty(req, outcome, false)
	if err != nil {
		return err
	}
	if cp != nil {
		fields.CounterpartyID = cp.ID
	}

	// Credit note amounts are absolute regardless of the sign printed
	// on the source document
	fields.Subtotal = math.Abs(fields.Subtotal)
	fields.TaxAmount = math.Abs(fields.TaxAmount)
	fields.Total = math.Abs(fields.Total)
	fields.HomeAmount = math.Abs(fields.HomeAmount)

	// Issued immediately, no draft state
	fields.Status = entity.StatusIssued

	note := &entity.CreditNote{
		LedgerFields:      fields,
		OriginalReference: req.Doc.InvoiceNumber,
	}
	if err := r.persist(func(tx *sql.Tx) error {
		return r.records.CreateCreditNote(tx, note)
	}, entity.DocTypeCreditNote, &note.LedgerFields); err != nil {
		return err
	}
	outcome.Record = entity.LedgerRecord{Type: entity.DocTypeCreditNote, CreditNote: note}

	r.postToLedger(ctx, entity.DocTypeCreditNote, &note.LedgerFields, outcome)
	return nil
}

func (r *Router) saveProforma(ctx context.Context, req SaveRequest, fields entity.LedgerFields, outcome *SaveOutcome) error {
	cp, err := r.ensureCounterparty(req, outcome, false)
	if err != nil {
		return err
	}
	if cp != nil {
		fields.CounterpartyID = cp.ID
	}
	fields.Status = entity.StatusPendingReview

	proforma := &entity.Proforma{LedgerFields: fields}
	if err := r.persist(func(tx *sql.Tx) error {
		return r.records.CreateProforma(tx, proforma)
	}, entity.DocTypeProforma, &proforma.LedgerFields); err != nil {
		return err
	}
	outcome.Record = entity.LedgerRecord{Type: entity.DocTypeProforma, Proforma: proforma}

	// Proformas are anticipated charges and never reach the general ledger
	outcome.addEffect(EffectGLPosting, EffectSkipped, nil)
	return nil
}

// postToLedger posts the record to the general ledger as a best-effort
// side effect. The record is already committed when this runs.
func (r *Router) postToLedger(ctx context.Context, docType entity.DocumentType, fields *entity.LedgerFields, outcome *SaveOutcome) {
	if err := r.poster.PostDocument(ctx, docType, fields); err != nil {
		r.logger.Error("GL posting failed",
			zap.String("document_id", fields.ID),
			zap.Error(err))
		outcome.addEffect(EffectGLPosting, EffectFailed, err)
		return
	}
	outcome.addEffect(EffectGLPosting, EffectApplied, nil)
}

// mirrorVendor copies a vendor into the customer directory tagged as a
// supplier, skipping when an equivalent entry exists. Best effort.
func (r *Router) mirrorVendor(ctx context.Context, vendor *entity.Counterparty, outcome *SaveOutcome) {
	if vendor == nil || vendor.Kind != entity.KindVendor {
		outcome.addEffect(EffectCRMMirror, EffectSkipped, nil)
		return
	}

	exists, err := r.counterparties.ExistsByNameOrVAT(ctx, entity.KindCustomer, vendor.Name, vendor.VATNumber)
	if err != nil {
		outcome.addEffect(EffectCRMMirror, EffectFailed, err)
		return
	}
	if exists {
		outcome.addEffect(EffectCRMMirror, EffectSkipped, nil)
		return
	}

	mirror := *vendor
	mirror.ID = ""
	mirror.Kind = entity.KindCustomer
	mirror.Tags = "supplier"
	if err := r.counterparties.Create(nil, &mirror); err != nil {
		r.logger.Warn("Vendor mirror failed", zap.String("name", vendor.Name), zap.Error(err))
		outcome.addEffect(EffectCRMMirror, EffectFailed, err)
		return
	}
	outcome.addEffect(EffectCRMMirror, EffectApplied, nil)
}

// enrichCounterparty copies extracted identity fields onto a matched
// counterparty, but only into fields that were empty. Populated fields
// are never overwritten.
func (r *Router) enrichCounterparty(req SaveRequest, cp *entity.Counterparty, outcome *SaveOutcome) {
	doc := req.Doc
	changed := false

	if cp.VATNumber == "" && doc.VendorVAT != "" {
		cp.VATNumber = doc.VendorVAT
		changed = true
	}
	if cp.Email == "" && doc.VendorEmail != "" {
		cp.Email = doc.VendorEmail
		changed = true
	}
	if cp.Country == "" && req.Tax.CounterpartyCountry != "" {
		cp.Country = req.Tax.CounterpartyCountry
		changed = true
	}
	if cp.Address == "" && doc.VendorAddress != "" {
		cp.Address = doc.VendorAddress
		changed = true
	}

	if !changed {
		outcome.addEffect(EffectCounterparty, EffectSkipped, nil)
		return
	}
	if err := r.counterparties.Update(nil, cp); err != nil {
		r.logger.Warn("Counterparty enrichment failed", zap.String("id", cp.ID), zap.Error(err))
		outcome.addEffect(EffectCounterparty, EffectFailed, err)
		return
	}
	outcome.addEffect(EffectCounterparty, EffectApplied, nil)
}

// trackRecurring feeds the recurring tracker when the document is
// flagged recurring. Never fatal.
func (r *Router) trackRecurring(ctx context.Context, req SaveRequest, outcome *SaveOutcome) {
	if !req.Doc.Class.IsRecurring {
		return
	}

	counterpartyID := ""
	if outcome.Counterparty != nil {
		counterpartyID = outcome.Counterparty.ID
	}
	if err := r.tracker.Track(ctx, req.Doc, req.DocType, counterpartyID); err != nil {
		r.logger.Warn("Recurring tracking failed",
			zap.String("vendor", req.Doc.VendorName),
			zap.Error(err))
		outcome.addEffect(EffectRecurring, EffectFailed, err)
		return
	}
	outcome.addEffect(EffectRecurring, EffectApplied, nil)
}
