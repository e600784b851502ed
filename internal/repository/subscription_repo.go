package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/pkg/database"
)

// SubscriptionRepository handles subscription aggregates. Amount history
// is stored as a JSON array in a single column.
type SubscriptionRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *database.DB, logger *zap.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:     db,
		logger: logger,
	}
}

const subscriptionColumns = `id, name, counterparty_id, amount_type, amount_history,
	estimated_amount, currency, billing_cycle, next_billing_date, status,
	COALESCE(category, ''), created_at, updated_at`

func (r *SubscriptionRepository) scan(row interface{ Scan(...any) error }) (*entity.Subscription, error) {
	var s entity.Subscription
	var cpID sql.NullString
	var history string
	var nextBilling sql.NullTime

	err := row.Scan(&s.ID, &s.Name, &cpID, &s.AmountType, &history,
		&s.EstimatedAmount, &s.Currency, &s.BillingCycle, &nextBilling, &s.Status,
		&s.Category, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.CounterpartyID = cpID.String
	if nextBilling.Valid {
		s.NextBillingDate = nextBilling.Time
	}
	if err := json.Unmarshal([]byte(history), &s.AmountHistory); err != nil {
		r.logger.Warn("Corrupt amount history, resetting", zap.String("id", s.ID), zap.Error(err))
		s.AmountHistory = nil
	}
	return &s, nil
}

// FindActiveByName returns the active subscription whose name matches
// case-insensitively, or nil.
func (r *SubscriptionRepository) FindActiveByName(ctx context.Context, name string) (*entity.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE status = 'active' AND LOWER(name) = LOWER(?)
		LIMIT 1
	`, subscriptionColumns)

	s, err := r.scan(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return s, nil
}

// List returns all subscriptions, optionally filtered by status
func (r *SubscriptionRepository) List(ctx context.Context, status string) ([]entity.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE (? = '' OR status = ?)
		ORDER BY name
	`, subscriptionColumns)

	rows, err := r.db.QueryContext(ctx, query, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []entity.Subscription
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// Create inserts a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, s *entity.Subscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = "active"
	}

	history, err := json.Marshal(s.AmountHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal amount history: %w", err)
	}

	query := `
		INSERT INTO subscriptions (id, name, counterparty_id, amount_type, amount_history, estimated_amount, currency, billing_cycle, next_billing_date, status, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var cpID any
	if s.CounterpartyID != "" {
		cpID = s.CounterpartyID
	}
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Name, cpID, s.AmountType, string(history), s.EstimatedAmount,
		s.Currency, s.BillingCycle, s.NextBillingDate, s.Status, s.Category,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create subscription", zap.String("name", s.Name), zap.Error(err))
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a subscription
func (r *SubscriptionRepository) Update(ctx context.Context, s *entity.Subscription) error {
	s.UpdatedAt = time.Now().UTC()

	history, err := json.Marshal(s.AmountHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal amount history: %w", err)
	}

	query := `
		UPDATE subscriptions
		SET amount_type = ?, amount_history = ?, estimated_amount = ?, billing_cycle = ?, next_billing_date = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		s.AmountType, string(history), s.EstimatedAmount, s.BillingCycle,
		s.NextBillingDate, s.Status, s.UpdatedAt, s.ID)
	if err != nil {
		r.logger.Error("Failed to update subscription", zap.String("id", s.ID), zap.Error(err))
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}
