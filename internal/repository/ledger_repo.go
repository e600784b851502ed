package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/pkg/database"
)

// tableForType maps a document type to its ledger table.
var tableForType = map[entity.DocumentType]string{
	entity.DocTypeExpense:      "expenses",
	entity.DocTypeBill:         "bills",
	entity.DocTypeSalesInvoice: "sales_invoices",
	entity.DocTypeCreditNote:   "credit_notes",
	entity.DocTypeProforma:     "proformas",
}

// LedgerRepository persists the five ledger record variants and their
// line items.
type LedgerRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// sharedColumns are the columns every ledger table carries.
var sharedColumns = []string{
	"id", "counterparty_id", "reference", "issue_date", "due_date",
	"currency", "subtotal", "tax_amount", "total", "exchange_rate",
	"home_amount", "tax_mechanism", "self_assess_rate", "rubric_code",
	"category", "gl_code", "status", "file_ref", "created_at",
}

func sharedValues(f *entity.LedgerFields) []any {
	var cpID any
	if f.CounterpartyID != "" {
		cpID = f.CounterpartyID
	}
	return []any{
		f.ID, cpID, f.Reference, f.IssueDate, f.DueDate,
		f.Currency, f.Subtotal, f.TaxAmount, f.Total, f.ExchangeRate,
		f.HomeAmount, f.TaxMechanism, f.SelfAssessRate, f.RubricCode,
		f.Category, f.GLCode, f.Status, f.FileRef, f.CreatedAt,
	}
}

// insert builds and executes the INSERT for one ledger table. Variant
// columns and values extend the shared set.
func (r *LedgerRepository) insert(tx *sql.Tx, table string, f *entity.LedgerFields, extraCols []string, extraVals []any) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	cols := append(append([]string{}, sharedColumns...), extraCols...)
	vals := append(sharedValues(f), extraVals...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)

	var err error
	if tx != nil {
		_, err = tx.Exec(query, vals...)
	} else {
		_, err = r.db.Exec(query, vals...)
	}
	if err != nil {
		r.logger.Error("Failed to insert ledger record",
			zap.String("table", table),
			zap.String("id", f.ID),
			zap.Error(err))
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// CreateExpense persists an expense
func (r *LedgerRepository) CreateExpense(tx *sql.Tx, e *entity.Expense) error {
	return r.insert(tx, "expenses", &e.LedgerFields,
		[]string{"payment_method"}, []any{e.PaymentMethod})
}

// CreateBill persists a bill with its outstanding balance
func (r *LedgerRepository) CreateBill(tx *sql.Tx, b *entity.Bill) error {
	return r.insert(tx, "bills", &b.LedgerFields,
		[]string{"balance_due"}, []any{b.BalanceDue})
}

// CreateSalesInvoice persists a draft sales invoice
func (r *LedgerRepository) CreateSalesInvoice(tx *sql.Tx, si *entity.SalesInvoice) error {
	return r.insert(tx, "sales_invoices", &si.LedgerFields, nil, nil)
}

// CreateCreditNote persists a credit note
func (r *LedgerRepository) CreateCreditNote(tx *sql.Tx, cn *entity.CreditNote) error {
	return r.insert(tx, "credit_notes", &cn.LedgerFields,
		[]string{"original_reference"}, []any{cn.OriginalReference})
}

// CreateProforma persists a proforma awaiting review
func (r *LedgerRepository) CreateProforma(tx *sql.Tx, p *entity.Proforma) error {
	return r.insert(tx, "proformas", &p.LedgerFields, nil, nil)
}

// CreateLineItems persists the ordered line items of a document
func (r *LedgerRepository) CreateLineItems(tx *sql.Tx, docType entity.DocumentType, docID string, items []entity.LineItem) error {
	query := `
		INSERT INTO line_items (document_type, document_id, line_number, description, quantity, unit_price, tax_rate_percent, line_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		args := []any{docType, docID, i + 1, item.Description, item.Quantity, item.UnitPrice, item.TaxRatePercent, item.LineTotal}
		var err error
		if tx != nil {
			_, err = tx.Exec(query, args...)
		} else {
			_, err = r.db.Exec(query, args...)
		}
		if err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i+1, err)
		}
	}
	return nil
}

// GetLineItems returns a document's line items in order
func (r *LedgerRepository) GetLineItems(ctx context.Context, docType entity.DocumentType, docID string) ([]entity.LineItem, error) {
	query := `
		SELECT description, quantity, unit_price, tax_rate_percent, line_total
		FROM line_items
		WHERE document_type = ? AND document_id = ?
		ORDER BY line_number
	`
	rows, err := r.db.QueryContext(ctx, query, docType, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	var items []entity.LineItem
	for rows.Next() {
		var li entity.LineItem
		if err := rows.Scan(&li.Description, &li.Quantity, &li.UnitPrice, &li.TaxRatePercent, &li.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func scanLedgerFields(rows *sql.Rows, f *entity.LedgerFields, extra ...any) error {
	var cpID sql.NullString
	var dueDate sql.NullTime
	dest := []any{
		&f.ID, &cpID, &f.Reference, &f.IssueDate, &dueDate,
		&f.Currency, &f.Subtotal, &f.TaxAmount, &f.Total, &f.ExchangeRate,
		&f.HomeAmount, &f.TaxMechanism, &f.SelfAssessRate, &f.RubricCode,
		&f.Category, &f.GLCode, &f.Status, &f.FileRef, &f.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	f.CounterpartyID = cpID.String
	if dueDate.Valid {
		f.DueDate = &dueDate.Time
	}
	return nil
}

const sharedSelect = `id, counterparty_id, COALESCE(reference, ''), issue_date, due_date,
	currency, subtotal, tax_amount, total, COALESCE(exchange_rate, 0),
	COALESCE(home_amount, 0), tax_mechanism, COALESCE(self_assess_rate, 0), COALESCE(rubric_code, ''),
	COALESCE(category, ''), COALESCE(gl_code, ''), status, COALESCE(file_ref, ''), created_at`

// ListExpenses returns expenses ordered newest first, optionally bounded
// by issue date.
func (r *LedgerRepository) ListExpenses(ctx context.Context, from, to time.Time) ([]entity.Expense, error) {
	query := fmt.Sprintf(`
		SELECT %s, COALESCE(payment_method, '') FROM expenses
		WHERE (? = '' OR date(issue_date) >= ?) AND (? = '' OR date(issue_date) <= ?)
		ORDER BY issue_date DESC, created_at DESC
	`, sharedSelect)

	fromArg, toArg := "", ""
	if !from.IsZero() {
		fromArg = from.Format("2006-01-02")
	}
	if !to.IsZero() {
		toArg = to.Format("2006-01-02")
	}

	rows, err := r.db.QueryContext(ctx, query, fromArg, fromArg, toArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []entity.Expense
	for rows.Next() {
		var e entity.Expense
		if err := scanLedgerFields(rows, &e.LedgerFields, &e.PaymentMethod); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// ListDocumentIDs returns the ids of every record of a document type,
// oldest first. Batch jobs iterate this stable ordering by cursor.
func (r *LedgerRepository) ListDocumentIDs(ctx context.Context, docType entity.DocumentType) ([]string, error) {
	table, ok := tableForType[docType]
	if !ok {
		return nil, fmt.Errorf("unknown document type %q", docType)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY created_at, id", table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetExpense fetches one expense, or nil if absent
func (r *LedgerRepository) GetExpense(ctx context.Context, id string) (*entity.Expense, error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(payment_method, '') FROM expenses WHERE id = ?`, sharedSelect)

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var e entity.Expense
	if err := scanLedgerFields(rows, &e.LedgerFields, &e.PaymentMethod); err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	return &e, nil
}
