package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/pkg/database"
)

// CounterpartyRepository handles counterparty database operations. It
// implements the resolver.Registry lookups.
type CounterpartyRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCounterpartyRepository creates a new counterparty repository
func NewCounterpartyRepository(db *database.DB, logger *zap.Logger) *CounterpartyRepository {
	return &CounterpartyRepository{
		db:     db,
		logger: logger,
	}
}

const counterpartyColumns = `id, kind, name, COALESCE(vat_number, ''), COALESCE(email, ''),
	COALESCE(country, ''), COALESCE(address, ''), COALESCE(iban, ''), COALESCE(website, ''),
	COALESCE(tags, ''), created_at, updated_at`

func scanCounterparty(row interface{ Scan(...any) error }) (*entity.Counterparty, error) {
	var c entity.Counterparty
	err := row.Scan(&c.ID, &c.Kind, &c.Name, &c.VATNumber, &c.Email,
		&c.Country, &c.Address, &c.IBAN, &c.Website, &c.Tags,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new counterparty, assigning an id if absent
func (r *CounterpartyRepository) Create(tx *sql.Tx, c *entity.Counterparty) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO counterparties (id, kind, name, vat_number, email, country, address, iban, website, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{c.ID, c.Kind, c.Name, c.VATNumber, c.Email, c.Country, c.Address, c.IBAN, c.Website, c.Tags, c.CreatedAt, c.UpdatedAt}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create counterparty", zap.String("name", c.Name), zap.Error(err))
		return fmt.Errorf("failed to create counterparty: %w", err)
	}
	return nil
}

// Update persists all mutable fields of an existing counterparty
func (r *CounterpartyRepository) Update(tx *sql.Tx, c *entity.Counterparty) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE counterparties
		SET name = ?, vat_number = ?, email = ?, country = ?, address = ?, iban = ?, website = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`
	args := []any{c.Name, c.VATNumber, c.Email, c.Country, c.Address, c.IBAN, c.Website, c.Tags, c.UpdatedAt, c.ID}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to update counterparty", zap.String("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update counterparty: %w", err)
	}
	return nil
}

// GetByID fetches one counterparty, or nil if it does not exist
func (r *CounterpartyRepository) GetByID(ctx context.Context, id string) (*entity.Counterparty, error) {
	query := fmt.Sprintf("SELECT %s FROM counterparties WHERE id = ?", counterpartyColumns)
	c, err := scanCounterparty(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get counterparty: %w", err)
	}
	return c, nil
}

// FindByVAT returns the counterparty with an exact VAT number match
func (r *CounterpartyRepository) FindByVAT(ctx context.Context, kind entity.CounterpartyKind, vatNumber string) (*entity.Counterparty, error) {
	query := fmt.Sprintf(`SELECT %s FROM counterparties WHERE kind = ? AND vat_number = ? LIMIT 1`, counterpartyColumns)
	c, err := scanCounterparty(r.db.QueryRowContext(ctx, query, kind, vatNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find counterparty by VAT: %w", err)
	}
	return c, nil
}

// FindByEmail returns the counterparty with a case-insensitive email match
func (r *CounterpartyRepository) FindByEmail(ctx context.Context, kind entity.CounterpartyKind, email string) (*entity.Counterparty, error) {
	query := fmt.Sprintf(`SELECT %s FROM counterparties WHERE kind = ? AND LOWER(email) = LOWER(?) LIMIT 1`, counterpartyColumns)
	c, err := scanCounterparty(r.db.QueryRowContext(ctx, query, kind, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find counterparty by email: %w", err)
	}
	return c, nil
}

// SearchByName returns substring name matches ordered most recently
// updated first
func (r *CounterpartyRepository) SearchByName(ctx context.Context, kind entity.CounterpartyKind, name string, limit int) ([]entity.Counterparty, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM counterparties
		WHERE kind = ? AND LOWER(name) LIKE '%%' || LOWER(?) || '%%'
		ORDER BY updated_at DESC
		LIMIT ?
	`, counterpartyColumns)

	rows, err := r.db.QueryContext(ctx, query, kind, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search counterparties: %w", err)
	}
	defer rows.Close()

	var results []entity.Counterparty
	for rows.Next() {
		c, err := scanCounterparty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		results = append(results, *c)
	}
	return results, rows.Err()
}

// ExistsByNameOrVAT reports whether an equivalent entry already exists
// in the given registry. Used to skip the best-effort directory mirror.
func (r *CounterpartyRepository) ExistsByNameOrVAT(ctx context.Context, kind entity.CounterpartyKind, name, vatNumber string) (bool, error) {
	query := `
		SELECT COUNT(1) FROM counterparties
		WHERE kind = ? AND (LOWER(name) = LOWER(?) OR (vat_number != '' AND vat_number = ?))
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, kind, name, vatNumber).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check counterparty existence: %w", err)
	}
	return count > 0, nil
}
