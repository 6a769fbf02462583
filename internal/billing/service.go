package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lumora-sms/lumora/internal/roster"
	"github.com/lumora-sms/lumora/internal/shared"
)

// amountTolerance absorbs float rounding when comparing payment amounts
// against remaining balances.
const amountTolerance = 1e-9

// Authorizer answers capability checks for acting users.
type Authorizer interface {
	HasCapability(ctx context.Context, userID int64, capability string) (bool, error)
}

// RosterPort exposes the reads billing needs from school roster data.
type RosterPort interface {
	Class(ctx context.Context, id int64) (*roster.Class, error)
	ClassStudents(ctx context.Context, classID int64) ([]int64, error)
	StudentName(ctx context.Context, studentID int64) (string, error)
	UserName(ctx context.Context, userID int64) (string, error)
}

// Dispatcher enqueues notification events. Deliveries are fire and forget;
// the service logs enqueue failures and never fails the triggering request.
type Dispatcher interface {
	InvoiceGenerated(ctx context.Context, invoiceIDs, studentIDs []int64) error
	PaymentReceived(ctx context.Context, invoiceID, studentID int64, amount float64) error
	PaymentReminder(ctx context.Context, invoiceID, studentID int64, balance float64) error
}

// Mirror enqueues ledger mirroring of recorded payments.
type Mirror interface {
	MirrorPayment(ctx context.Context, paymentID int64, amount float64, method string, date time.Time, description string) error
}

// Auditor records audit trail entries.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates billing use cases on top of the repository.
type Service struct {
	repo       RepositoryPort
	authz      Authorizer
	roster     RosterPort
	dispatcher Dispatcher
	mirror     Mirror
	auditor    Auditor
	logger     *slog.Logger
}

// NewService wires a billing service.
func NewService(repo RepositoryPort, authz Authorizer, ros RosterPort, dispatcher Dispatcher, mirror Mirror, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, roster: ros, dispatcher: dispatcher, mirror: mirror, auditor: auditor, logger: logger}
}

func (s *Service) authorize(ctx context.Context, actor shared.Actor, capability string) error {
	if !actor.Known() {
		return ErrAccessDenied
	}
	granted, err := s.authz.HasCapability(ctx, actor.UserID, capability)
	if err != nil {
		return err
	}
	if !granted {
		return ErrAccessDenied
	}
	return nil
}

func (s *Service) audit(ctx context.Context, actor shared.Actor, action, entityID string, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "fee_invoice",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("billing audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validateDrafts(drafts []ItemDraft) error {
	if len(drafts) == 0 {
		return ErrInvalidItems
	}
	for _, d := range drafts {
		if strings.TrimSpace(d.Label) == "" || d.Amount <= 0 {
			return ErrInvalidItems
		}
	}
	return nil
}

func sumDrafts(drafts []ItemDraft) float64 {
	var total float64
	for _, d := range drafts {
		total += d.Amount
	}
	return total
}

// Create issues a single invoice with its initial items.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in CreateInvoiceInput) (*Invoice, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return nil, err
	}
	if in.StudentID <= 0 || strings.TrimSpace(in.Period) == "" || in.AcademicYearID <= 0 {
		return nil, fmt.Errorf("%w: student, period and academic year are required", ErrValidation)
	}
	if err := validateDrafts(in.Items); err != nil {
		return nil, err
	}

	total := sumDrafts(in.Items)
	inv := Invoice{
		SchoolCode:     actor.SchoolCode,
		StudentID:      in.StudentID,
		Period:         strings.TrimSpace(in.Period),
		AcademicYearID: in.AcademicYearID,
		DueDate:        in.DueDate,
		Notes:          strings.TrimSpace(in.Notes),
		Total:          total,
		Paid:           0,
		Status:         StatusFor(total, 0),
		CreatedBy:      actor.UserID,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		id, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = id
		return tx.InsertItems(ctx, id, in.Items)
	})
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.InvoiceGenerated(ctx, []int64{inv.ID}, []int64{inv.StudentID}); err != nil {
			s.logger.Warn("invoice notification enqueue failed", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		}
	}
	s.audit(ctx, actor, "billing.invoice.create", strconv.FormatInt(inv.ID, 10), map[string]any{"student_id": inv.StudentID, "total": inv.Total})
	return &inv, nil
}

// GenerateForClass issues one invoice per enrolled student, skipping students
// that already hold an invoice for the same period and academic year.
func (s *Service) GenerateForClass(ctx context.Context, actor shared.Actor, in GenerateForClassInput) (*GenerateResult, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return nil, err
	}
	if in.ClassID <= 0 || strings.TrimSpace(in.Period) == "" || in.AcademicYearID <= 0 {
		return nil, fmt.Errorf("%w: class, period and academic year are required", ErrValidation)
	}
	if err := validateDrafts(in.Items); err != nil {
		return nil, err
	}

	class, err := s.roster.Class(ctx, in.ClassID)
	if err != nil {
		return nil, err
	}
	if class.SchoolCode != actor.SchoolCode {
		return nil, ErrAccessDenied
	}
	if class.AcademicYearID != in.AcademicYearID {
		return nil, ErrYearMismatch
	}

	studentIDs, err := s.roster.ClassStudents(ctx, in.ClassID)
	if err != nil {
		return nil, err
	}
	result := &GenerateResult{}
	if len(studentIDs) == 0 {
		return result, nil
	}

	existing, err := s.repo.ExistingInvoiceStudents(ctx, actor.SchoolCode, in.Period, in.AcademicYearID, studentIDs)
	if err != nil {
		return nil, err
	}

	total := sumDrafts(in.Items)
	period := strings.TrimSpace(in.Period)
	var notified []int64
	for _, studentID := range studentIDs {
		if _, ok := existing[studentID]; ok {
			result.Skipped++
			continue
		}
		inv := Invoice{
			SchoolCode:     actor.SchoolCode,
			StudentID:      studentID,
			Period:         period,
			AcademicYearID: in.AcademicYearID,
			DueDate:        in.DueDate,
			Total:          total,
			Status:         StatusFor(total, 0),
			CreatedBy:      actor.UserID,
		}
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
			id, err := tx.InsertInvoice(ctx, inv)
			if err != nil {
				return err
			}
			inv.ID = id
			return tx.InsertItems(ctx, id, in.Items)
		})
		if err != nil {
			return nil, fmt.Errorf("generate invoice for student %d: %w", studentID, err)
		}
		result.Created++
		result.InvoiceIDs = append(result.InvoiceIDs, inv.ID)
		notified = append(notified, studentID)
	}

	if s.dispatcher != nil && len(result.InvoiceIDs) > 0 {
		if err := s.dispatcher.InvoiceGenerated(ctx, result.InvoiceIDs, notified); err != nil {
			s.logger.Warn("bulk invoice notification enqueue failed", slog.Int64("class_id", in.ClassID), slog.Any("error", err))
		}
	}
	s.audit(ctx, actor, "billing.invoice.generate_class", strconv.FormatInt(in.ClassID, 10), map[string]any{
		"period": period, "created": result.Created, "skipped": result.Skipped,
	})
	return result, nil
}

func (s *Service) lockOwned(ctx context.Context, tx TxPort, actor shared.Actor, invoiceID int64) (*Invoice, error) {
	inv, err := tx.LockInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.SchoolCode != actor.SchoolCode {
		return nil, ErrAccessDenied
	}
	return inv, nil
}

func recomputeDerived(ctx context.Context, tx TxPort, invoiceID int64) (total, paid float64, status FeeStatus, err error) {
	items, err := tx.ListItems(ctx, invoiceID)
	if err != nil {
		return 0, 0, "", err
	}
	payments, err := tx.ListPayments(ctx, invoiceID)
	if err != nil {
		return 0, 0, "", err
	}
	total = SumItems(items)
	paid = SumPayments(payments)
	return total, paid, StatusFor(total, paid), nil
}

// AddItems appends charge lines to an invoice and recomputes its totals.
func (s *Service) AddItems(ctx context.Context, actor shared.Actor, invoiceID int64, drafts []ItemDraft) (*Invoice, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return nil, err
	}
	if err := validateDrafts(drafts); err != nil {
		return nil, err
	}

	var updated *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		inv, err := s.lockOwned(ctx, tx, actor, invoiceID)
		if err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, invoiceID, drafts); err != nil {
			return err
		}
		total, paid, status, err := recomputeDerived(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if err := tx.UpdateDerived(ctx, invoiceID, total, paid, status); err != nil {
			return err
		}
		inv.Total, inv.Paid, inv.Status = total, paid, status
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "billing.invoice.add_items", strconv.FormatInt(invoiceID, 10), map[string]any{"count": len(drafts)})
	return updated, nil
}

// UpdateItem patches a single charge line and recomputes invoice totals.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, invoiceID, itemID int64, patch ItemPatch) (*Invoice, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return nil, err
	}
	if patch.Label == nil && patch.Amount == nil {
		return nil, fmt.Errorf("%w: no item fields to update", ErrValidation)
	}
	if patch.Label != nil && strings.TrimSpace(*patch.Label) == "" {
		return nil, ErrInvalidItems
	}
	if patch.Amount != nil && *patch.Amount <= 0 {
		return nil, ErrInvalidItems
	}

	var updated *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		inv, err := s.lockOwned(ctx, tx, actor, invoiceID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.InvoiceID != invoiceID {
			return ErrItemMismatch
		}
		if err := tx.UpdateItem(ctx, itemID, patch); err != nil {
			return err
		}
		total, paid, status, err := recomputeDerived(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if paid-total > amountTolerance {
			return ErrTotalBelowPaid
		}
		if err := tx.UpdateDerived(ctx, invoiceID, total, paid, status); err != nil {
			return err
		}
		inv.Total, inv.Paid, inv.Status = total, paid, status
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "billing.item.update", strconv.FormatInt(itemID, 10), map[string]any{"invoice_id": invoiceID})
	return updated, nil
}

// RemoveItems deletes charge lines from an invoice and recomputes its totals.
// Payments already applied to a removed item stay on the invoice as
// invoice-level payments.
func (s *Service) RemoveItems(ctx context.Context, actor shared.Actor, invoiceID int64, itemIDs []int64) (*Invoice, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: item ids required", ErrValidation)
	}

	var updated *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		inv, err := s.lockOwned(ctx, tx, actor, invoiceID)
		if err != nil {
			return err
		}
		deleted, err := tx.DeleteItems(ctx, invoiceID, itemIDs)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrItemNotFound
		}
		total, paid, status, err := recomputeDerived(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if paid-total > amountTolerance {
			return ErrTotalBelowPaid
		}
		if err := tx.UpdateDerived(ctx, invoiceID, total, paid, status); err != nil {
			return err
		}
		inv.Total, inv.Paid, inv.Status = total, paid, status
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "billing.item.remove", strconv.FormatInt(invoiceID, 10), map[string]any{"item_ids": itemIDs})
	return updated, nil
}

// Update patches invoice header fields. Totals and status are derived and
// cannot be set through this path.
func (s *Service) Update(ctx context.Context, actor shared.Actor, invoiceID int64, patch InvoicePatch) (*Invoice, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return nil, err
	}
	if patch.DueDate == nil && patch.Notes == nil {
		return nil, fmt.Errorf("%w: no invoice fields to update", ErrValidation)
	}

	var updated *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		inv, err := s.lockOwned(ctx, tx, actor, invoiceID)
		if err != nil {
			return err
		}
		if err := tx.UpdateInvoice(ctx, invoiceID, patch); err != nil {
			return err
		}
		if patch.DueDate != nil {
			inv.DueDate = *patch.DueDate
		}
		if patch.Notes != nil {
			inv.Notes = *patch.Notes
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "billing.invoice.update", strconv.FormatInt(invoiceID, 10), nil)
	return updated, nil
}

// RecordPayment records a payment against an invoice or one of its items,
// validates it against the remaining balance and recomputes the derived
// fields. Ledger mirroring is enqueued only when the actor holds the finance
// capability; mirroring and notification failures never fail the request.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Actor, in RecordPaymentInput) (*Payment, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesRecordPayments); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if !ValidMethod(in.Method) {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.Method)
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	payment := Payment{
		InvoiceID:  in.InvoiceID,
		ItemID:     in.ItemID,
		Amount:     in.Amount,
		Method:     in.Method,
		PaidAt:     paidAt,
		ReceiptNo:  strings.TrimSpace(in.ReceiptNo),
		Remarks:    strings.TrimSpace(in.Remarks),
		RecordedBy: actor.UserID,
	}
	var studentID int64
	var itemLabel string

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		inv, err := s.lockOwned(ctx, tx, actor, in.InvoiceID)
		if err != nil {
			return err
		}
		studentID = inv.StudentID

		items, err := tx.ListItems(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		total := SumItems(items)
		paid := SumPayments(payments)

		allowed := Remaining(total, paid)
		if in.ItemID != nil {
			item, err := tx.GetItem(ctx, *in.ItemID)
			if err != nil {
				return err
			}
			if item.InvoiceID != in.InvoiceID {
				return ErrItemMismatch
			}
			itemLabel = item.Label
			itemRemaining := item.Amount - SumItemPayments(payments, *in.ItemID)
			if itemRemaining < allowed {
				allowed = itemRemaining
			}
		}
		if in.Amount-allowed > amountTolerance {
			if allowed < 0 {
				allowed = 0
			}
			return &PaymentAmountError{Allowed: allowed}
		}

		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id

		newPaid := paid + in.Amount
		return tx.UpdateDerived(ctx, in.InvoiceID, total, newPaid, StatusFor(total, newPaid))
	})
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.PaymentReceived(ctx, in.InvoiceID, studentID, in.Amount); err != nil {
			s.logger.Warn("payment notification enqueue failed", slog.Int64("payment_id", payment.ID), slog.Any("error", err))
		}
	}
	if s.mirror != nil {
		granted, err := s.authz.HasCapability(ctx, actor.UserID, shared.CapFinanceManage)
		if err != nil {
			s.logger.Warn("finance capability check failed", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
		} else if granted {
			desc := fmt.Sprintf("fee payment for invoice %d", in.InvoiceID)
			if itemLabel != "" {
				desc = fmt.Sprintf("fee payment for invoice %d (%s)", in.InvoiceID, itemLabel)
			}
			if err := s.mirror.MirrorPayment(ctx, payment.ID, in.Amount, in.Method, paidAt, desc); err != nil {
				s.logger.Warn("ledger mirror enqueue failed", slog.Int64("payment_id", payment.ID), slog.Any("error", err))
			}
		}
	}
	s.audit(ctx, actor, "billing.payment.record", strconv.FormatInt(payment.ID, 10), map[string]any{
		"invoice_id": in.InvoiceID, "amount": in.Amount, "method": in.Method,
	})
	return &payment, nil
}

// Delete removes an invoice that has no payments recorded against it.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, invoiceID int64) error {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if _, err := s.lockOwned(ctx, tx, actor, invoiceID); err != nil {
			return err
		}
		count, err := tx.CountPayments(ctx, invoiceID)
		if err != nil {
			return err
		}
		if count > 0 {
			return &HasPaymentsError{Count: count}
		}
		return tx.DeleteInvoice(ctx, invoiceID)
	})
	if err != nil {
		return err
	}
	s.audit(ctx, actor, "billing.invoice.delete", strconv.FormatInt(invoiceID, 10), nil)
	return nil
}

// AuthorizeView checks that the actor holds the read capability and that the
// invoice belongs to the actor's school. Callers serving cached reads must go
// through this before touching the cache.
func (s *Service) AuthorizeView(ctx context.Context, actor shared.Actor, invoiceID int64) error {
	if err := s.authorize(ctx, actor, shared.CapFeesRead); err != nil {
		return err
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.SchoolCode != actor.SchoolCode {
		return ErrAccessDenied
	}
	return nil
}

// GetDetail returns the invoice with its items, payments and read-time
// resolved display names.
func (s *Service) GetDetail(ctx context.Context, actor shared.Actor, invoiceID int64) (*InvoiceDetail, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesRead); err != nil {
		return nil, err
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.SchoolCode != actor.SchoolCode {
		return nil, ErrAccessDenied
	}
	items, err := s.repo.ListItems(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	labels := make(map[int64]string, len(items))
	for _, item := range items {
		labels[item.ID] = item.Label
	}
	names := make(map[int64]string)
	views := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		view := PaymentView{Payment: p}
		if p.ItemID != nil {
			view.ItemLabel = labels[*p.ItemID]
		}
		if p.RecordedBy > 0 {
			name, ok := names[p.RecordedBy]
			if !ok {
				name, err = s.roster.UserName(ctx, p.RecordedBy)
				if err != nil {
					name = ""
				}
				names[p.RecordedBy] = name
			}
			view.RecordedByName = name
		}
		views = append(views, view)
	}

	studentName, err := s.roster.StudentName(ctx, inv.StudentID)
	if err != nil {
		studentName = ""
	}

	return &InvoiceDetail{
		Invoice:     *inv,
		StudentName: studentName,
		Items:       items,
		Payments:    views,
		Balance:     Remaining(inv.Total, inv.Paid),
	}, nil
}

// ListByClass returns the invoices of a class's current students, optionally
// narrowed by period and academic year.
func (s *Service) ListByClass(ctx context.Context, actor shared.Actor, classID int64, period string, academicYearID int64) ([]Invoice, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesRead); err != nil {
		return nil, err
	}
	class, err := s.roster.Class(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.SchoolCode != actor.SchoolCode {
		return nil, ErrAccessDenied
	}
	studentIDs, err := s.roster.ClassStudents(ctx, classID)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return nil, nil
	}
	return s.repo.ListForStudents(ctx, actor.SchoolCode, studentIDs, strings.TrimSpace(period), academicYearID)
}

// ListByStudent returns all invoices of one student within the actor's school.
func (s *Service) ListByStudent(ctx context.Context, actor shared.Actor, studentID int64) ([]Invoice, error) {
	if err := s.authorize(ctx, actor, shared.CapFeesRead); err != nil {
		return nil, err
	}
	return s.repo.ListByStudent(ctx, actor.SchoolCode, studentID)
}

// Remind enqueues a payment reminder for an invoice that still carries a
// balance. Unlike the implicit notifications, a failed enqueue here is
// reported to the caller because sending the reminder is the whole request.
func (s *Service) Remind(ctx context.Context, actor shared.Actor, invoiceID int64) error {
	if err := s.authorize(ctx, actor, shared.CapFeesWrite); err != nil {
		return err
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.SchoolCode != actor.SchoolCode {
		return ErrAccessDenied
	}
	balance := Remaining(inv.Total, inv.Paid)
	if balance <= 0 {
		return fmt.Errorf("%w: invoice has no outstanding balance", ErrValidation)
	}
	if s.dispatcher == nil {
		return fmt.Errorf("billing: reminders not configured")
	}
	if err := s.dispatcher.PaymentReminder(ctx, invoiceID, inv.StudentID, balance); err != nil {
		return err
	}
	s.audit(ctx, actor, "billing.invoice.remind", strconv.FormatInt(invoiceID, 10), map[string]any{"balance": balance})
	return nil
}

// Summary aggregates a class's invoices by status for a period.
func (s *Service) Summary(ctx context.Context, actor shared.Actor, classID int64, period string, academicYearID int64) (*Summary, error) {
	invoices, err := s.ListByClass(ctx, actor, classID, period, academicYearID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Counts: make(map[FeeStatus]int)}
	for _, inv := range invoices {
		sum.Counts[inv.Status]++
		sum.TotalBilled += inv.Total
		sum.TotalPaid += inv.Paid
		sum.Outstanding += Remaining(inv.Total, inv.Paid)
	}
	return sum, nil
}
