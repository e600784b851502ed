package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "ledger.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(filepath.Join("..", "..", "migrations")))
	return db
}

func testExpense(reference string, issueDate time.Time) *entity.Expense {
	return &entity.Expense{
		LedgerFields: entity.LedgerFields{
			Reference:    reference,
			IssueDate:    issueDate,
			Currency:     "EUR",
			Subtotal:     100,
			TaxAmount:    21,
			Total:        121,
			HomeAmount:   121,
			TaxMechanism: entity.MechanismStandard,
			Status:       entity.StatusPosted,
		},
	}
}

func TestListExpenses_RangeBoundsAreInclusive(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	day := func(d int, month time.Month) time.Time {
		return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC)
	}
	for ref, issued := range map[string]time.Time{
		"JUL-31": day(31, time.July),
		"AUG-01": day(1, time.August),
		"AUG-15": day(15, time.August),
		"AUG-31": day(31, time.August),
		"SEP-01": day(1, time.September),
	} {
		require.NoError(t, repo.CreateExpense(nil, testExpense(ref, issued)))
	}

	expenses, err := repo.ListExpenses(ctx, day(1, time.August), day(31, time.August))
	require.NoError(t, err)

	refs := make([]string, 0, len(expenses))
	for _, e := range expenses {
		refs = append(refs, e.Reference)
	}
	// Both range edges are part of the month, midnight timestamp or not
	assert.ElementsMatch(t, []string{"AUG-01", "AUG-15", "AUG-31"}, refs)
}

func TestListExpenses_ZeroBoundsReturnEverything(t *testing.T) {
	repo := NewLedgerRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreateExpense(nil,
		testExpense("A", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, repo.CreateExpense(nil,
		testExpense("B", time.Date(2026, 6, 9, 12, 30, 0, 0, time.UTC))))

	expenses, err := repo.ListExpenses(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	// Newest first
	assert.Equal(t, "B", expenses[0].Reference)
}
