package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumora-sms/lumora/internal/platform/db"
)

// TxPort exposes the mutations available inside an invoice transaction.
// Every aggregate mutation goes through WithTx and starts by locking the
// invoice row, which serialises concurrent writers per invoice.
type TxPort interface {
	LockInvoice(ctx context.Context, id int64) (*Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertItems(ctx context.Context, invoiceID int64, drafts []ItemDraft) error
	GetItem(ctx context.Context, itemID int64) (*InvoiceItem, error)
	UpdateItem(ctx context.Context, itemID int64, patch ItemPatch) error
	DeleteItems(ctx context.Context, invoiceID int64, itemIDs []int64) (int64, error)
	ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	CountPayments(ctx context.Context, invoiceID int64) (int, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	UpdateDerived(ctx context.Context, invoiceID int64, total, paid float64, status FeeStatus) error
	UpdateInvoice(ctx context.Context, invoiceID int64, patch InvoicePatch) error
	DeleteInvoice(ctx context.Context, invoiceID int64) error
}

// RepositoryPort defines data access methods for billing.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	CountPayments(ctx context.Context, invoiceID int64) (int, error)
	ListForStudents(ctx context.Context, schoolCode string, studentIDs []int64, period string, academicYearID int64) ([]Invoice, error)
	ListByStudent(ctx context.Context, schoolCode string, studentID int64) ([]Invoice, error)
	ExistingInvoiceStudents(ctx context.Context, schoolCode, period string, academicYearID int64, studentIDs []int64) (map[int64]struct{}, error)
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides PostgreSQL backed persistence for billing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction with single retry on
// serialization failure.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const invoiceColumns = `id, school_code, student_id, period, academic_year_id, due_date, notes, total_amount, paid_amount, status, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var createdBy pgtype.Int8
	err := row.Scan(
		&inv.ID, &inv.SchoolCode, &inv.StudentID, &inv.Period, &inv.AcademicYearID,
		&inv.DueDate, &inv.Notes, &inv.Total, &inv.Paid, &inv.Status,
		&createdBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.CreatedBy = createdBy.Int64
	return &inv, nil
}

func getInvoice(ctx context.Context, q querier, id int64, forUpdate bool) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM fee_invoices WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanInvoice(q.QueryRow(ctx, query, id))
}

// GetInvoice retrieves an invoice by ID.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return getInvoice(ctx, r.pool, id, false)
}

func listItems(ctx context.Context, q querier, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, label, amount, created_at
		FROM fee_invoice_items
		WHERE invoice_id = $1
		ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Label, &item.Amount, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItems returns the items of an invoice.
func (r *Repository) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	return listItems(ctx, r.pool, invoiceID)
}

func listPayments(ctx context.Context, q querier, invoiceID int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, item_id, amount, method, paid_at, receipt_no, remarks, recorded_by, created_at
		FROM fee_payments
		WHERE invoice_id = $1
		ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		var itemID pgtype.Int8
		var receiptNo, remarks pgtype.Text
		if err := rows.Scan(&p.ID, &p.InvoiceID, &itemID, &p.Amount, &p.Method, &p.PaidAt, &receiptNo, &remarks, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		if itemID.Valid {
			v := itemID.Int64
			p.ItemID = &v
		}
		p.ReceiptNo = receiptNo.String
		p.Remarks = remarks.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListPayments returns all payments recorded on an invoice.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return listPayments(ctx, r.pool, invoiceID)
}

func countPayments(ctx context.Context, q querier, invoiceID int64) (int, error) {
	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM fee_payments WHERE invoice_id = $1`, invoiceID).Scan(&count)
	return count, err
}

// CountPayments returns the number of payments on an invoice.
func (r *Repository) CountPayments(ctx context.Context, invoiceID int64) (int, error) {
	return countPayments(ctx, r.pool, invoiceID)
}

// ListForStudents returns invoices for the given students, optionally
// narrowed by billing period and academic year.
func (r *Repository) ListForStudents(ctx context.Context, schoolCode string, studentIDs []int64, period string, academicYearID int64) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM fee_invoices WHERE school_code = $1 AND student_id = ANY($2)`
	args := []any{schoolCode, studentIDs}
	argNum := 3
	if period != "" {
		query += fmt.Sprintf(" AND period = $%d", argNum)
		args = append(args, period)
		argNum++
	}
	if academicYearID > 0 {
		query += fmt.Sprintf(" AND academic_year_id = $%d", argNum)
		args = append(args, academicYearID)
	}
	query += " ORDER BY student_id, id"
	return r.listInvoices(ctx, query, args...)
}

// ListByStudent returns all invoices of one student.
func (r *Repository) ListByStudent(ctx context.Context, schoolCode string, studentID int64) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM fee_invoices WHERE school_code = $1 AND student_id = $2 ORDER BY id DESC`
	return r.listInvoices(ctx, query, schoolCode, studentID)
}

func (r *Repository) listInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		var createdBy pgtype.Int8
		if err := rows.Scan(
			&inv.ID, &inv.SchoolCode, &inv.StudentID, &inv.Period, &inv.AcademicYearID,
			&inv.DueDate, &inv.Notes, &inv.Total, &inv.Paid, &inv.Status,
			&createdBy, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		inv.CreatedBy = createdBy.Int64
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ExistingInvoiceStudents returns the subset of studentIDs that already have
// an invoice for the (school, period, academic year) combination.
func (r *Repository) ExistingInvoiceStudents(ctx context.Context, schoolCode, period string, academicYearID int64, studentIDs []int64) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT student_id
		FROM fee_invoices
		WHERE school_code = $1 AND period = $2 AND academic_year_id = $3 AND student_id = ANY($4)`,
		schoolCode, period, academicYearID, studentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

// --- Transactional operations ---

type txRepo struct {
	q querier
}

// LockInvoice reads the invoice under FOR UPDATE, blocking concurrent
// writers of the same aggregate until commit.
func (t *txRepo) LockInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return getInvoice(ctx, t.q, id, true)
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var createdBy pgtype.Int8
	if inv.CreatedBy > 0 {
		createdBy = pgtype.Int8{Int64: inv.CreatedBy, Valid: true}
	}
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO fee_invoices (school_code, student_id, period, academic_year_id, due_date, notes, total_amount, paid_amount, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id`,
		inv.SchoolCode, inv.StudentID, inv.Period, inv.AcademicYearID, inv.DueDate,
		inv.Notes, inv.Total, inv.Paid, inv.Status, createdBy,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItems(ctx context.Context, invoiceID int64, drafts []ItemDraft) error {
	for _, draft := range drafts {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO fee_invoice_items (invoice_id, label, amount, created_at)
			VALUES ($1, $2, $3, NOW())`, invoiceID, draft.Label, draft.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetItem(ctx context.Context, itemID int64) (*InvoiceItem, error) {
	var item InvoiceItem
	err := t.q.QueryRow(ctx, `
		SELECT id, invoice_id, label, amount, created_at
		FROM fee_invoice_items
		WHERE id = $1`, itemID).
		Scan(&item.ID, &item.InvoiceID, &item.Label, &item.Amount, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (t *txRepo) UpdateItem(ctx context.Context, itemID int64, patch ItemPatch) error {
	query := `UPDATE fee_invoice_items SET id = id`
	args := []any{}
	argNum := 1
	if patch.Label != nil {
		query += fmt.Sprintf(", label = $%d", argNum)
		args = append(args, *patch.Label)
		argNum++
	}
	if patch.Amount != nil {
		query += fmt.Sprintf(", amount = $%d", argNum)
		args = append(args, *patch.Amount)
		argNum++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argNum)
	args = append(args, itemID)

	tag, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteItems removes the given items scoped to one invoice; ids belonging
// to other invoices are ignored. Returns the number of rows removed.
func (t *txRepo) DeleteItems(ctx context.Context, invoiceID int64, itemIDs []int64) (int64, error) {
	tag, err := t.q.Exec(ctx, `
		DELETE FROM fee_invoice_items
		WHERE invoice_id = $1 AND id = ANY($2)`, invoiceID, itemIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) ListItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	return listItems(ctx, t.q, invoiceID)
}

func (t *txRepo) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return listPayments(ctx, t.q, invoiceID)
}

func (t *txRepo) CountPayments(ctx context.Context, invoiceID int64) (int, error) {
	return countPayments(ctx, t.q, invoiceID)
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var receiptNo, remarks pgtype.Text
	if p.ReceiptNo != "" {
		receiptNo = pgtype.Text{String: p.ReceiptNo, Valid: true}
	}
	if p.Remarks != "" {
		remarks = pgtype.Text{String: p.Remarks, Valid: true}
	}
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO fee_payments (invoice_id, item_id, amount, method, paid_at, receipt_no, remarks, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id`,
		p.InvoiceID, p.ItemID, p.Amount, p.Method, p.PaidAt, receiptNo, remarks, p.RecordedBy,
	).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateDerived(ctx context.Context, invoiceID int64, total, paid float64, status FeeStatus) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE fee_invoices
		SET total_amount = $2, paid_amount = $3, status = $4, updated_at = NOW()
		WHERE id = $1`, invoiceID, total, paid, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (t *txRepo) UpdateInvoice(ctx context.Context, invoiceID int64, patch InvoicePatch) error {
	query := `UPDATE fee_invoices SET updated_at = NOW()`
	args := []any{}
	argNum := 1
	if patch.DueDate != nil {
		query += fmt.Sprintf(", due_date = $%d", argNum)
		args = append(args, *patch.DueDate)
		argNum++
	}
	if patch.Notes != nil {
		query += fmt.Sprintf(", notes = $%d", argNum)
		args = append(args, *patch.Notes)
		argNum++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argNum)
	args = append(args, invoiceID)

	tag, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// DeleteInvoice removes the invoice; items cascade via foreign key.
func (t *txRepo) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM fee_invoices WHERE id = $1`, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
