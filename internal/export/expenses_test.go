package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
)

type staticExpenses struct{ expenses []entity.Expense }

func (s *staticExpenses) ListExpenses(_ context.Context, _, _ time.Time) ([]entity.Expense, error) {
	return s.expenses, nil
}

func TestExpensesWorkbook(t *testing.T) {
	source := &staticExpenses{expenses: []entity.Expense{
		{LedgerFields: entity.LedgerFields{
			Reference: "INV-1", IssueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Category: "hosting", GLCode: "6110", Currency: "EUR",
			Subtotal: 50, TaxAmount: 10.5, Total: 60.5,
			TaxMechanism: entity.MechanismStandard,
		}},
		{LedgerFields: entity.LedgerFields{
			Reference: "INV-2", IssueDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			Category: "software", GLCode: "6100", Currency: "USD",
			Subtotal: 100, TaxAmount: 0, Total: 100,
			ExchangeRate: 0.92, HomeAmount: 92,
			TaxMechanism: entity.MechanismImportNoVAT,
		}},
	}}

	exporter := NewExporter(source, "EUR", zap.NewNop())
	f, err := exporter.ExpensesWorkbook(context.Background(),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Expenses", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)

	reference, err := f.GetCellValue("Expenses", "B2")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", reference)

	// Home-currency expense without a stored home amount falls back to
	// its total in the home column
	home1, err := f.GetCellValue("Expenses", "J2")
	require.NoError(t, err)
	assert.Equal(t, "60.5", home1)

	home2, err := f.GetCellValue("Expenses", "J3")
	require.NoError(t, err)
	assert.Equal(t, "92", home2)

	label, err := f.GetCellValue("Expenses", "A4")
	require.NoError(t, err)
	assert.Equal(t, "Total (EUR)", label)

	total, err := f.GetCellValue("Expenses", "J4")
	require.NoError(t, err)
	assert.Equal(t, "152.5", total)
}
