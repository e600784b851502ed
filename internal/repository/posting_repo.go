package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/pkg/database"
)

// PostingRepository persists general ledger postings.
type PostingRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewPostingRepository creates a new posting repository
func NewPostingRepository(db *database.DB, logger *zap.Logger) *PostingRepository {
	return &PostingRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a GL posting
func (r *PostingRepository) Create(ctx context.Context, p *entity.GLPosting) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PostedAt.IsZero() {
		p.PostedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO gl_postings (id, document_type, document_id, gl_code, description, debit, credit, tax_mechanism, self_assess_rate, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.DocumentType, p.DocumentID, p.GLCode, p.Description,
		p.Debit, p.Credit, p.TaxMechanism, p.SelfAssessRate, p.PostedAt)
	if err != nil {
		r.logger.Error("Failed to create GL posting",
			zap.String("document_id", p.DocumentID),
			zap.Error(err))
		return fmt.Errorf("failed to create GL posting: %w", err)
	}
	return nil
}

// DeleteForDocument removes the postings of one document. Batch
// regeneration calls this before re-posting.
func (r *PostingRepository) DeleteForDocument(ctx context.Context, docType entity.DocumentType, docID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM gl_postings WHERE document_type = ? AND document_id = ?",
		docType, docID)
	if err != nil {
		return fmt.Errorf("failed to delete GL postings: %w", err)
	}
	return nil
}
