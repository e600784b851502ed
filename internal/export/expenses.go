package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// ExpenseSource lists posted expenses for a date range.
type ExpenseSource interface {
	ListExpenses(ctx context.Context, from, to time.Time) ([]entity.Expense, error)
}

// Exporter builds Excel workbooks of ledger data for the accountant.
type Exporter struct {
	source       ExpenseSource
	homeCurrency string
	logger       *zap.Logger
}

// NewExporter creates an exporter
func NewExporter(source ExpenseSource, homeCurrency string, logger *zap.Logger) *Exporter {
	return &Exporter{
		source:       source,
		homeCurrency: homeCurrency,
		logger:       logger,
	}
}

var expenseHeaders = []string{
	"Date", "Reference", "Category", "GL Code", "Currency",
	"Subtotal", "Tax", "Total", "Rate", "Total (home)", "Tax Mechanism", "Rubric",
}

// ExpensesWorkbook builds a workbook with one row per expense in the
// range, ordered as listed, plus a totals row in home currency.
func (e *Exporter) ExpensesWorkbook(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	expenses, err := e.source.ListExpenses(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Expenses"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, header := range expenseHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		e.setCell(f, sheet, cell, header)
	}

	var homeTotal float64
	for i, expense := range expenses {
		row := i + 2
		homeAmount := expense.HomeAmount
		if homeAmount == 0 {
			homeAmount = expense.Total
		}
		homeTotal += homeAmount

		values := []interface{}{
			expense.IssueDate.Format("2006-01-02"),
			expense.Reference,
			expense.Category,
			expense.GLCode,
			expense.Currency,
			expense.Subtotal,
			expense.TaxAmount,
			expense.Total,
			expense.ExchangeRate,
			homeAmount,
			string(expense.TaxMechanism),
			expense.RubricCode,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			e.setCell(f, sheet, cell, value)
		}
	}

	totalRow := len(expenses) + 2
	e.setCell(f, sheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("Total (%s)", e.homeCurrency))
	e.setCell(f, sheet, fmt.Sprintf("J%d", totalRow), homeTotal)

	if err := f.SetColWidth(sheet, "A", "L", 14); err != nil {
		e.logger.Warn("Failed to set column widths", zap.Error(err))
	}

	e.logger.Info("Expense workbook built",
		zap.Int("rows", len(expenses)),
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")))
	return f, nil
}

func (e *Exporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
