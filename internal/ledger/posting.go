package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// PostingStore persists GL postings.
type PostingStore interface {
	Create(ctx context.Context, p *entity.GLPosting) error
}

// PostingService turns saved ledger records into general ledger
// postings. Expenses and bills debit their expense account; credit
// notes credit it.
type PostingService struct {
	store  PostingStore
	logger *zap.Logger
}

// NewPostingService creates a posting service
func NewPostingService(store PostingStore, logger *zap.Logger) *PostingService {
	return &PostingService{
		store:  store,
		logger: logger,
	}
}

// PostDocument creates the GL posting for a saved record. Amounts are
// posted in home currency; HomeAmount is already the converted total.
func (s *PostingService) PostDocument(ctx context.Context, docType entity.DocumentType, f *entity.LedgerFields) error {
	posting := &entity.GLPosting{
		DocumentType:   docType,
		DocumentID:     f.ID,
		GLCode:         f.GLCode,
		Description:    fmt.Sprintf("%s %s", docType, f.Reference),
		TaxMechanism:   f.TaxMechanism,
		SelfAssessRate: f.SelfAssessRate,
	}

	amount := f.HomeAmount
	if amount == 0 {
		amount = f.Total
	}

	if docType == entity.DocTypeCreditNote {
		posting.Credit = amount
	} else {
		posting.Debit = amount
	}

	if err := s.store.Create(ctx, posting); err != nil {
		return fmt.Errorf("failed to post %s %s: %w", docType, f.ID, err)
	}

	s.logger.Info("GL posting created",
		zap.String("document_type", string(docType)),
		zap.String("document_id", f.ID),
		zap.String("gl_code", f.GLCode),
		zap.Float64("debit", posting.Debit),
		zap.Float64("credit", posting.Credit))
	return nil
}
