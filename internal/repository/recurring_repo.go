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

// RecurringTemplateRepository persists recurring document templates.
type RecurringTemplateRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRecurringTemplateRepository creates a new recurring template repository
func NewRecurringTemplateRepository(db *database.DB, logger *zap.Logger) *RecurringTemplateRepository {
	return &RecurringTemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a recurring template
func (r *RecurringTemplateRepository) Create(ctx context.Context, t *entity.RecurringTemplate) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO recurring_templates (id, name, document_type, counterparty_id, amount, currency, billing_cycle, category, next_run_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var cpID any
	if t.CounterpartyID != "" {
		cpID = t.CounterpartyID
	}
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.DocumentType, cpID, t.Amount, t.Currency,
		t.BillingCycle, t.Category, t.NextRunDate, t.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create recurring template", zap.String("name", t.Name), zap.Error(err))
		return fmt.Errorf("failed to create recurring template: %w", err)
	}
	return nil
}
