package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/pkg/database"
)

// RateRepository caches exchange rates keyed by currency pair and day.
// It implements rates.Store.
type RateRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRateRepository creates a new rate repository
func NewRateRepository(db *database.DB, logger *zap.Logger) *RateRepository {
	return &RateRepository{
		db:     db,
		logger: logger,
	}
}

// GetRate returns a cached rate and whether it exists
func (r *RateRepository) GetRate(ctx context.Context, from, to, date string) (float64, bool, error) {
	var rate float64
	err := r.db.QueryRowContext(ctx,
		"SELECT rate FROM exchange_rates WHERE currency_from = ? AND currency_to = ? AND rate_date = ?",
		from, to, date).Scan(&rate)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	return rate, true, nil
}

// SaveRate stores a rate, replacing any prior value for the same key
func (r *RateRepository) SaveRate(ctx context.Context, from, to, date string, rate float64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO exchange_rates (currency_from, currency_to, rate_date, rate) VALUES (?, ?, ?, ?)",
		from, to, date, rate)
	if err != nil {
		return fmt.Errorf("failed to save exchange rate: %w", err)
	}
	return nil
}
