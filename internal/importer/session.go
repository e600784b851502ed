package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/internal/domain/session"
	"github.com/dstam/smart-import/internal/ledger"
	"github.com/dstam/smart-import/internal/resolver"
)

// Pipeline stages reported on failure.
const (
	StageUpload     = "upload"
	StagePDFText    = "pdf_text"
	StageExtraction = "extraction"
)

// TextExtractor turns raw document text into a structured document.
type TextExtractor interface {
	Extract(ctx context.Context, text string) (*entity.ExtractedDocument, error)
}

// PDFReader extracts the text layer from a PDF.
type PDFReader interface {
	ExtractText(content []byte) (string, error)
}

// FileStore persists the uploaded file and returns a reference.
type FileStore interface {
	Save(fileName string, content []byte) (string, error)
}

// Matcher resolves extracted identity fields against a registry.
type Matcher interface {
	Resolve(ctx context.Context, in resolver.ResolveInput) *entity.MatchResult
}

// RateSource supplies an exchange rate for a currency pair on a date.
type RateSource interface {
	Rate(ctx context.Context, from, to string, date time.Time) (float64, error)
}

// Filer routes the reviewed document into the ledger.
type Filer interface {
	Save(ctx context.Context, req ledger.SaveRequest) (*ledger.SaveOutcome, error)
}

// StageFailure records which pipeline stage broke for which file, so the
// review screen can say more than "it failed".
type StageFailure struct {
	FileName string `json:"file_name"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
}

// Snapshot is a point-in-time view of the review session.
type Snapshot struct {
	State             session.State               `json:"state"`
	PermittedTriggers []session.Trigger           `json:"permitted_triggers"`
	FileName          string                      `json:"file_name,omitempty"`
	FileRef           string                      `json:"file_ref,omitempty"`
	DocType           entity.DocumentType         `json:"doc_type,omitempty"`
	Direction         entity.Direction            `json:"direction,omitempty"`
	Document          *entity.ExtractedDocument   `json:"document,omitempty"`
	Match             *entity.MatchResult         `json:"match,omitempty"`
	Tax               *entity.TaxDecision         `json:"tax,omitempty"`
	Conversion        *entity.CurrencyConversion  `json:"conversion,omitempty"`
	Advice            *resolver.ReviewAdvice      `json:"advice,omitempty"`
	Failure           *StageFailure               `json:"failure,omitempty"`
}

// FieldPatch is a partial edit of the document under review. Nil fields
// are untouched. Edits that invalidate derived state trigger the
// relevant re-resolution.
type FieldPatch struct {
	DocType       *entity.DocumentType `json:"doc_type,omitempty"`
	Direction     *entity.Direction    `json:"direction,omitempty"`
	VendorName    *string              `json:"vendor_name,omitempty"`
	VendorVAT     *string              `json:"vendor_vat,omitempty"`
	VendorEmail   *string              `json:"vendor_email,omitempty"`
	VendorCountry *string              `json:"vendor_country,omitempty"`
	VendorAddress *string              `json:"vendor_address,omitempty"`
	InvoiceNumber *string              `json:"invoice_number,omitempty"`
	Subtotal      *float64             `json:"subtotal,omitempty"`
	TaxAmount     *float64             `json:"tax_amount,omitempty"`
	Total         *float64             `json:"total,omitempty"`
	Currency      *string              `json:"currency,omitempty"`
	ExchangeRate  *float64             `json:"exchange_rate,omitempty"`
	HomeAmount    *float64             `json:"home_amount,omitempty"`
	Category      *string              `json:"category,omitempty"`
}

// Session owns one document review at a time. A new upload atomically
// replaces everything the previous document derived; there is never a
// half-reset mix of old and new state.
type Session struct {
	store      FileStore
	pdf        PDFReader
	extractor  TextExtractor
	matcher    Matcher
	taxRules   *resolver.TaxRules
	normalizer *resolver.CurrencyNormalizer
	rates      RateSource
	filer      Filer
	logger     *zap.Logger

	mu         sync.Mutex
	machine    *session.Machine
	fileName   string
	fileRef    string
	docType    entity.DocumentType
	direction  entity.Direction
	doc        *entity.ExtractedDocument
	match      *entity.MatchResult
	tax        entity.TaxDecision
	conversion *entity.CurrencyConversion
	advice     resolver.ReviewAdvice
	failure    *StageFailure
}

// NewSession creates a review session in the idle state
func NewSession(
	store FileStore,
	pdf PDFReader,
	extractor TextExtractor,
	matcher Matcher,
	taxRules *resolver.TaxRules,
	normalizer *resolver.CurrencyNormalizer,
	rates RateSource,
	filer Filer,
	logger *zap.Logger,
) *Session {
	return &Session{
		store:      store,
		pdf:        pdf,
		extractor:  extractor,
		matcher:    matcher,
		taxRules:   taxRules,
		normalizer: normalizer,
		rates:      rates,
		filer:      filer,
		logger:     logger,
		machine:    session.NewMachine(),
	}
}

// Upload runs the full intake pipeline for one file: store, text
// extraction, structured extraction, then resolution. Uploading while a
// previous document is under review discards that document first.
func (s *Session) Upload(ctx context.Context, fileName string, content []byte) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Filed and discarded are terminal per document; the next upload
	// starts a fresh lifecycle.
	if s.machine.State().IsTerminal() {
		s.machine = session.NewMachine()
	}
	if err := s.machine.Fire(session.TriggerUpload); err != nil {
		return nil, err
	}
	s.reset(fileName)

	ref, err := s.store.Save(fileName, content)
	if err != nil {
		return nil, s.fail(StageUpload, err)
	}
	s.fileRef = ref

	if err := s.machine.Fire(session.TriggerExtract); err != nil {
		return nil, err
	}
	text, err := s.pdf.ExtractText(content)
	if err != nil {
		return nil, s.fail(StagePDFText, err)
	}
	doc, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, s.fail(StageExtraction, err)
	}
	s.doc = doc

	if err := s.machine.Fire(session.TriggerAnalyze); err != nil {
		return nil, err
	}
	s.analyze(ctx)

	if err := s.machine.Fire(session.TriggerAnalyzed); err != nil {
		return nil, err
	}

	s.logger.Info("Document ready for review",
		zap.String("file", fileName),
		zap.String("vendor", doc.VendorName),
		zap.Float64("total", doc.Total),
		zap.Bool("requires_review", doc.RequiresReview))
	return s.snapshotLocked(), nil
}

// reset clears every piece of state derived from the previous document.
func (s *Session) reset(fileName string) {
	s.fileName = fileName
	s.fileRef = ""
	s.docType = entity.DocTypeExpense
	s.direction = entity.DirectionPurchase
	s.doc = nil
	s.match = nil
	s.tax = entity.TaxDecision{}
	s.conversion = nil
	s.advice = resolver.ReviewAdvice{}
	s.failure = nil
}

// analyze derives match, tax, conversion and review advice from the
// extracted document and the current direction.
func (s *Session) analyze(ctx context.Context) {
	s.resolveMatch(ctx)
	s.resolveTax()
	s.normalizeCurrency(ctx)
	s.advice = resolver.GateConfidence(s.doc)
}

func (s *Session) resolveMatch(ctx context.Context) {
	doc := s.doc
	s.match = s.matcher.Resolve(ctx, resolver.ResolveInput{
		Name:      doc.VendorName,
		VATNumber: doc.VendorVAT,
		Email:     doc.VendorEmail,
		Country:   doc.VendorCountry,
		Address:   doc.VendorAddress,
		IBAN:      doc.VendorIBAN,
		Website:   doc.VendorWebsite,
		Direction: s.direction,
	})
}

func (s *Session) resolveTax() {
	doc := s.doc
	country := doc.VendorCountry
	if country == "" {
		country = resolver.DetectCountry(doc.VendorVAT, "", doc.VendorAddress, doc.VendorIBAN)
	}
	s.tax = s.taxRules.Resolve(s.direction, country, nominalRate(doc))
}

// nominalRate derives the document's VAT percentage from its amounts.
func nominalRate(doc *entity.ExtractedDocument) float64 {
	if doc.Subtotal <= 0 || doc.TaxAmount <= 0 {
		return 0
	}
	return doc.TaxAmount / doc.Subtotal * 100
}

func (s *Session) normalizeCurrency(ctx context.Context) {
	doc := s.doc
	if s.normalizer.IsHome(doc.Currency) {
		s.conversion = nil
		return
	}

	date := doc.InvoiceDate
	if date.IsZero() {
		date = time.Now().UTC()
	}
	rate, err := s.rates.Rate(ctx, doc.Currency, s.normalizer.HomeCurrency(), date)
	if err != nil {
		s.logger.Warn("Exchange rate unavailable, falling back to identity",
			zap.String("currency", doc.Currency),
			zap.Error(err))
		rate = 0
	}
	s.conversion = s.normalizer.Normalize(doc.Currency, doc.Total, rate)
}

// fail records the stage failure and moves the machine to failed. The
// file name is kept so the failure is attributable after the fact.
func (s *Session) fail(stage string, err error) error {
	s.failure = &StageFailure{FileName: s.fileName, Stage: stage, Error: err.Error()}
	if ferr := s.machine.Fire(session.TriggerFail); ferr != nil {
		s.logger.Error("Session could not enter failed state", zap.Error(ferr))
	}
	s.logger.Error("Intake pipeline stage failed",
		zap.String("file", s.fileName),
		zap.String("stage", stage),
		zap.Error(err))
	return fmt.Errorf("%s failed for %s: %w", stage, s.fileName, err)
}

// Snapshot returns a point-in-time view of the session.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		State:             s.machine.State(),
		PermittedTriggers: s.machine.PermittedTriggers(),
		FileName:          s.fileName,
		FileRef:           s.fileRef,
		Failure:           s.failure,
	}
	if s.doc != nil {
		snap.DocType = s.docType
		snap.Direction = s.direction
		snap.Document = s.doc
		snap.Match = s.match
		tax := s.tax
		snap.Tax = &tax
		snap.Conversion = s.conversion
		advice := s.advice
		snap.Advice = &advice
	}
	return snap
}

// UpdateFields applies a partial edit to the document under review and
// re-resolves whatever the edit invalidated: a direction switch discards
// the match and tax decision and resolves both against the other
// registry, identity edits re-run the matcher, a country edit re-runs
// the tax rules, and amount edits flow through the currency rules.
func (s *Session) UpdateFields(ctx context.Context, patch FieldPatch) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.State() != session.StateReadyForReview {
		return nil, fmt.Errorf("no document under review (state %s)", s.machine.State())
	}
	doc := s.doc

	if patch.Category != nil {
		doc.Class.Category = *patch.Category
	}
	if patch.InvoiceNumber != nil {
		doc.InvoiceNumber = *patch.InvoiceNumber
	}

	rematch := false
	retax := false

	if patch.DocType != nil {
		if !patch.DocType.Valid() {
			return nil, fmt.Errorf("unknown document type %q", *patch.DocType)
		}
		s.docType = *patch.DocType
		// The type determines the trade side; a type that books on the
		// other side invalidates both the registry match and the tax
		// decision
		if d := s.docType.TradeDirection(); d != s.direction {
			s.direction = d
			rematch = true
			retax = true
		}
	}

	if patch.VendorName != nil {
		doc.VendorName = *patch.VendorName
		rematch = true
	}
	if patch.VendorVAT != nil {
		doc.VendorVAT = *patch.VendorVAT
		rematch = true
		retax = true
	}
	if patch.VendorEmail != nil {
		doc.VendorEmail = *patch.VendorEmail
		rematch = true
	}
	if patch.VendorAddress != nil {
		doc.VendorAddress = *patch.VendorAddress
		rematch = true
	}
	if patch.VendorCountry != nil {
		doc.VendorCountry = strings.ToUpper(strings.TrimSpace(*patch.VendorCountry))
		// A new-match preview carries the detected country, so the
		// matcher has to run again as well
		rematch = true
		retax = true
	}

	if patch.Direction != nil && *patch.Direction != s.direction {
		s.direction = *patch.Direction
		// Match and tax were resolved for the other direction; both are
		// stale now, not just the match
		rematch = true
		retax = true
	}

	if patch.Subtotal != nil {
		doc.Subtotal = *patch.Subtotal
		retax = true
	}
	if patch.TaxAmount != nil {
		doc.TaxAmount = *patch.TaxAmount
		retax = true
	}

	if patch.Currency != nil && !strings.EqualFold(*patch.Currency, doc.Currency) {
		doc.Currency = strings.ToUpper(strings.TrimSpace(*patch.Currency))
		s.normalizeCurrency(ctx)
	}
	if patch.Total != nil {
		doc.Total = *patch.Total
		if s.conversion != nil {
			s.normalizer.SetTotal(s.conversion, *patch.Total)
		}
	}
	if patch.ExchangeRate != nil && s.conversion != nil {
		s.normalizer.SetExchangeRate(s.conversion, *patch.ExchangeRate)
	}
	if patch.HomeAmount != nil && s.conversion != nil {
		s.normalizer.SetHomeAmount(s.conversion, *patch.HomeAmount)
	}

	if rematch {
		s.resolveMatch(ctx)
	}
	if retax {
		s.resolveTax()
	}

	return s.snapshotLocked(), nil
}

// PromoteAlternative makes a fuzzy-match alternative the primary match.
func (s *Session) PromoteAlternative(alternativeID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.State() != session.StateReadyForReview {
		return nil, fmt.Errorf("no document under review (state %s)", s.machine.State())
	}
	if !resolver.Promote(s.match, alternativeID) {
		return nil, fmt.Errorf("no alternative with id %q", alternativeID)
	}
	return s.snapshotLocked(), nil
}

// Save files the reviewed document into the ledger and moves the session
// to filed. A failed save moves to failed; the retry trigger brings the
// session back to idle.
func (s *Session) Save(ctx context.Context) (*ledger.SaveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Fire(session.TriggerSave); err != nil {
		return nil, err
	}

	outcome, err := s.filer.Save(ctx, ledger.SaveRequest{
		Doc:        s.doc,
		DocType:    s.docType,
		Direction:  s.direction,
		Match:      s.match,
		Tax:        s.tax,
		Conversion: s.conversion,
		FileRef:    s.fileRef,
	})
	if err != nil {
		s.failure = &StageFailure{FileName: s.fileName, Stage: "save", Error: err.Error()}
		if ferr := s.machine.Fire(session.TriggerFail); ferr != nil {
			s.logger.Error("Session could not enter failed state", zap.Error(ferr))
		}
		return nil, err
	}

	if err := s.machine.Fire(session.TriggerFiled); err != nil {
		return nil, err
	}
	return outcome, nil
}

// Discard abandons the document under review.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Fire(session.TriggerDiscard)
}

// Retry returns a failed session to idle.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Fire(session.TriggerRetry)
}
