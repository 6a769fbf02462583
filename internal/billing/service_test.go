package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumora-sms/lumora/internal/roster"
	"github.com/lumora-sms/lumora/internal/shared"
	_ "github.com/lumora-sms/lumora/internal/testing/guard"
)

// memoryBillingRepo is an in-memory RepositoryPort for service tests. WithTx
// runs the callback directly against the same store.
type memoryBillingRepo struct {
	invoices map[int64]*Invoice
	items    map[int64]*InvoiceItem
	payments map[int64]*Payment
	nextID   int64
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{
		invoices: make(map[int64]*Invoice),
		items:    make(map[int64]*InvoiceItem),
		payments: make(map[int64]*Payment),
	}
}

func (m *memoryBillingRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryBillingRepo) WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error {
	return fn(ctx, m)
}

func (m *memoryBillingRepo) LockInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memoryBillingRepo) GetInvoice(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memoryBillingRepo) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	inv.ID = m.id()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	m.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (m *memoryBillingRepo) InsertItems(_ context.Context, invoiceID int64, drafts []ItemDraft) error {
	for _, d := range drafts {
		id := m.id()
		m.items[id] = &InvoiceItem{ID: id, InvoiceID: invoiceID, Label: d.Label, Amount: d.Amount, CreatedAt: time.Now()}
	}
	return nil
}

func (m *memoryBillingRepo) GetItem(_ context.Context, itemID int64) (*InvoiceItem, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *memoryBillingRepo) UpdateItem(_ context.Context, itemID int64, patch ItemPatch) error {
	item, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	if patch.Label != nil {
		item.Label = *patch.Label
	}
	if patch.Amount != nil {
		item.Amount = *patch.Amount
	}
	return nil
}

func (m *memoryBillingRepo) DeleteItems(_ context.Context, invoiceID int64, itemIDs []int64) (int64, error) {
	var deleted int64
	for _, id := range itemIDs {
		item, ok := m.items[id]
		if !ok || item.InvoiceID != invoiceID {
			continue
		}
		delete(m.items, id)
		deleted++
	}
	return deleted, nil
}

func (m *memoryBillingRepo) ListItems(_ context.Context, invoiceID int64) ([]InvoiceItem, error) {
	var items []InvoiceItem
	for _, item := range m.items {
		if item.InvoiceID == invoiceID {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memoryBillingRepo) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	var payments []Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			payments = append(payments, *p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return payments, nil
}

func (m *memoryBillingRepo) CountPayments(_ context.Context, invoiceID int64) (int, error) {
	count := 0
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			count++
		}
	}
	return count, nil
}

func (m *memoryBillingRepo) InsertPayment(_ context.Context, p Payment) (int64, error) {
	p.ID = m.id()
	p.CreatedAt = time.Now()
	m.payments[p.ID] = &p
	return p.ID, nil
}

func (m *memoryBillingRepo) UpdateDerived(_ context.Context, invoiceID int64, total, paid float64, status FeeStatus) error {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Total, inv.Paid, inv.Status = total, paid, status
	inv.UpdatedAt = time.Now()
	return nil
}

func (m *memoryBillingRepo) UpdateInvoice(_ context.Context, invoiceID int64, patch InvoicePatch) error {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	if patch.DueDate != nil {
		inv.DueDate = *patch.DueDate
	}
	if patch.Notes != nil {
		inv.Notes = *patch.Notes
	}
	return nil
}

func (m *memoryBillingRepo) DeleteInvoice(_ context.Context, invoiceID int64) error {
	if _, ok := m.invoices[invoiceID]; !ok {
		return ErrInvoiceNotFound
	}
	delete(m.invoices, invoiceID)
	for id, item := range m.items {
		if item.InvoiceID == invoiceID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memoryBillingRepo) ListForStudents(_ context.Context, schoolCode string, studentIDs []int64, period string, academicYearID int64) ([]Invoice, error) {
	wanted := make(map[int64]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}
	var invoices []Invoice
	for _, inv := range m.invoices {
		if inv.SchoolCode != schoolCode {
			continue
		}
		if _, ok := wanted[inv.StudentID]; !ok {
			continue
		}
		if period != "" && inv.Period != period {
			continue
		}
		if academicYearID > 0 && inv.AcademicYearID != academicYearID {
			continue
		}
		invoices = append(invoices, *inv)
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].ID < invoices[j].ID })
	return invoices, nil
}

func (m *memoryBillingRepo) ListByStudent(_ context.Context, schoolCode string, studentID int64) ([]Invoice, error) {
	var invoices []Invoice
	for _, inv := range m.invoices {
		if inv.SchoolCode == schoolCode && inv.StudentID == studentID {
			invoices = append(invoices, *inv)
		}
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].ID > invoices[j].ID })
	return invoices, nil
}

func (m *memoryBillingRepo) ExistingInvoiceStudents(_ context.Context, schoolCode, period string, academicYearID int64, studentIDs []int64) (map[int64]struct{}, error) {
	wanted := make(map[int64]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}
	existing := make(map[int64]struct{})
	for _, inv := range m.invoices {
		if inv.SchoolCode != schoolCode || inv.Period != period || inv.AcademicYearID != academicYearID {
			continue
		}
		if _, ok := wanted[inv.StudentID]; ok {
			existing[inv.StudentID] = struct{}{}
		}
	}
	return existing, nil
}

type fakeAuthz struct {
	caps map[int64]map[string]bool
	err  error
}

func (f *fakeAuthz) grant(userID int64, capabilities ...string) {
	if f.caps == nil {
		f.caps = make(map[int64]map[string]bool)
	}
	if f.caps[userID] == nil {
		f.caps[userID] = make(map[string]bool)
	}
	for _, c := range capabilities {
		f.caps[userID][c] = true
	}
}

func (f *fakeAuthz) HasCapability(_ context.Context, userID int64, capability string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.caps[userID][capability], nil
}

type fakeRoster struct {
	classes      map[int64]*roster.Class
	students     map[int64][]int64
	studentNames map[int64]string
	userNames    map[int64]string
}

func (f *fakeRoster) Class(_ context.Context, id int64) (*roster.Class, error) {
	c, ok := f.classes[id]
	if !ok {
		return nil, roster.ErrNotFound
	}
	return c, nil
}

func (f *fakeRoster) ClassStudents(_ context.Context, classID int64) ([]int64, error) {
	return f.students[classID], nil
}

func (f *fakeRoster) StudentName(_ context.Context, studentID int64) (string, error) {
	name, ok := f.studentNames[studentID]
	if !ok {
		return "", roster.ErrNotFound
	}
	return name, nil
}

func (f *fakeRoster) UserName(_ context.Context, userID int64) (string, error) {
	name, ok := f.userNames[userID]
	if !ok {
		return "", roster.ErrNotFound
	}
	return name, nil
}

type dispatchCall struct {
	kind       string
	invoiceIDs []int64
	amount     float64
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (f *fakeDispatcher) InvoiceGenerated(_ context.Context, invoiceIDs, _ []int64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, dispatchCall{kind: "invoice_generated", invoiceIDs: invoiceIDs})
	return nil
}

func (f *fakeDispatcher) PaymentReceived(_ context.Context, invoiceID, _ int64, amount float64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, dispatchCall{kind: "payment_received", invoiceIDs: []int64{invoiceID}, amount: amount})
	return nil
}

func (f *fakeDispatcher) PaymentReminder(_ context.Context, invoiceID, _ int64, balance float64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, dispatchCall{kind: "payment_reminder", invoiceIDs: []int64{invoiceID}, amount: balance})
	return nil
}

type mirrorCall struct {
	paymentID int64
	amount    float64
	method    string
}

type fakeMirror struct {
	calls []mirrorCall
	err   error
}

func (f *fakeMirror) MirrorPayment(_ context.Context, paymentID int64, amount float64, method string, _ time.Time, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, mirrorCall{paymentID: paymentID, amount: amount, method: method})
	return nil
}

type fakeAuditor struct {
	logs []shared.AuditLog
}

func (f *fakeAuditor) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type billingFixture struct {
	repo       *memoryBillingRepo
	authz      *fakeAuthz
	roster     *fakeRoster
	dispatcher *fakeDispatcher
	mirror     *fakeMirror
	auditor    *fakeAuditor
	svc        *Service
}

func newFixture() *billingFixture {
	f := &billingFixture{
		repo:  newMemoryBillingRepo(),
		authz: &fakeAuthz{},
		roster: &fakeRoster{
			classes:      make(map[int64]*roster.Class),
			students:     make(map[int64][]int64),
			studentNames: make(map[int64]string),
			userNames:    make(map[int64]string),
		},
		dispatcher: &fakeDispatcher{},
		mirror:     &fakeMirror{},
		auditor:    &fakeAuditor{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.repo, f.authz, f.roster, f.dispatcher, f.mirror, f.auditor, logger)
	return f
}

var clerk = shared.Actor{UserID: 7, SchoolCode: "GHS"}

func (f *billingFixture) grantClerk() {
	f.authz.grant(clerk.UserID, shared.CapFeesRead, shared.CapFeesWrite, shared.CapFeesRecordPayments)
}

func (f *billingFixture) createInvoice(t *testing.T, amounts ...float64) *Invoice {
	t.Helper()
	drafts := make([]ItemDraft, 0, len(amounts))
	for i, a := range amounts {
		drafts = append(drafts, ItemDraft{Label: "fee-" + string(rune('a'+i)), Amount: a})
	}
	inv, err := f.svc.Create(context.Background(), clerk, CreateInvoiceInput{
		StudentID:      100,
		Period:         "2026-09",
		AcademicYearID: 3,
		Items:          drafts,
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	f := newFixture()
	f.grantClerk()

	inv, err := f.svc.Create(context.Background(), clerk, CreateInvoiceInput{
		StudentID:      100,
		Period:         "2026-09",
		AcademicYearID: 3,
		Notes:          "term one",
		Items: []ItemDraft{
			{Label: "Tuition", Amount: 300},
			{Label: "Transport", Amount: 200},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 500.0, inv.Total)
	require.Equal(t, 0.0, inv.Paid)
	require.Equal(t, StatusDue, inv.Status)
	require.Equal(t, clerk.SchoolCode, inv.SchoolCode)

	items, err := f.repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Len(t, f.dispatcher.calls, 1)
	require.Equal(t, "invoice_generated", f.dispatcher.calls[0].kind)
	require.NotEmpty(t, f.auditor.logs)
}

func TestCreateInvoiceRejectsBadItems(t *testing.T) {
	f := newFixture()
	f.grantClerk()

	_, err := f.svc.Create(context.Background(), clerk, CreateInvoiceInput{
		StudentID: 100, Period: "2026-09", AcademicYearID: 3,
	})
	require.ErrorIs(t, err, ErrInvalidItems)

	_, err = f.svc.Create(context.Background(), clerk, CreateInvoiceInput{
		StudentID: 100, Period: "2026-09", AcademicYearID: 3,
		Items: []ItemDraft{{Label: "Tuition", Amount: -5}},
	})
	require.ErrorIs(t, err, ErrInvalidItems)
}

func TestCreateInvoiceRequiresCapability(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), clerk, CreateInvoiceInput{
		StudentID: 100, Period: "2026-09", AcademicYearID: 3,
		Items: []ItemDraft{{Label: "Tuition", Amount: 100}},
	})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestGenerateForClassSkipsExisting(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	f.roster.classes[10] = &roster.Class{ID: 10, SchoolCode: "GHS", Name: "JSS1", AcademicYearID: 3}
	f.roster.students[10] = []int64{100, 101, 102}

	f.createInvoice(t, 500) // student 100, same period and year

	result, err := f.svc.GenerateForClass(context.Background(), clerk, GenerateForClassInput{
		ClassID:        10,
		Period:         "2026-09",
		AcademicYearID: 3,
		Items:          []ItemDraft{{Label: "Tuition", Amount: 500}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Equal(t, 1, result.Skipped)
	require.Len(t, result.InvoiceIDs, 2)

	for _, id := range result.InvoiceIDs {
		inv, err := f.repo.GetInvoice(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, "GHS", inv.SchoolCode)
		require.Equal(t, StatusDue, inv.Status)
		require.Equal(t, 500.0, inv.Total)
	}
}

func TestGenerateForClassGuards(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	f.roster.classes[10] = &roster.Class{ID: 10, SchoolCode: "GHS", AcademicYearID: 3}
	f.roster.classes[11] = &roster.Class{ID: 11, SchoolCode: "OTHER", AcademicYearID: 3}

	_, err := f.svc.GenerateForClass(context.Background(), clerk, GenerateForClassInput{
		ClassID: 10, Period: "2026-09", AcademicYearID: 4,
		Items: []ItemDraft{{Label: "Tuition", Amount: 500}},
	})
	require.ErrorIs(t, err, ErrYearMismatch)

	_, err = f.svc.GenerateForClass(context.Background(), clerk, GenerateForClassInput{
		ClassID: 11, Period: "2026-09", AcademicYearID: 3,
		Items: []ItemDraft{{Label: "Tuition", Amount: 500}},
	})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAddItemsRecomputesStatus(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 500, Method: MethodCash,
	})
	require.NoError(t, err)

	updated, err := f.svc.AddItems(context.Background(), clerk, inv.ID, []ItemDraft{{Label: "Library", Amount: 100}})
	require.NoError(t, err)
	require.Equal(t, 600.0, updated.Total)
	require.Equal(t, 500.0, updated.Paid)
	require.Equal(t, StatusPartial, updated.Status)
}

func TestUpdateItem(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 300, 200)
	other := f.createInvoice(t, 50)

	items, err := f.repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)

	newAmount := 400.0
	updated, err := f.svc.UpdateItem(context.Background(), clerk, inv.ID, items[0].ID, ItemPatch{Amount: &newAmount})
	require.NoError(t, err)
	require.Equal(t, 600.0, updated.Total)

	otherItems, err := f.repo.ListItems(context.Background(), other.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateItem(context.Background(), clerk, inv.ID, otherItems[0].ID, ItemPatch{Amount: &newAmount})
	require.ErrorIs(t, err, ErrItemMismatch)

	_, err = f.svc.UpdateItem(context.Background(), clerk, inv.ID, items[0].ID, ItemPatch{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRemoveItems(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 300, 200)

	items, err := f.repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)

	updated, err := f.svc.RemoveItems(context.Background(), clerk, inv.ID, []int64{items[1].ID})
	require.NoError(t, err)
	require.Equal(t, 300.0, updated.Total)
	require.Equal(t, StatusDue, updated.Status)

	_, err = f.svc.RemoveItems(context.Background(), clerk, inv.ID, []int64{9999})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItemsKeepsTotalAbovePayments(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 200, Method: MethodCash,
	})
	require.NoError(t, err)

	items, err := f.repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)

	// dropping the only item would leave 200 paid on a zero total
	_, err = f.svc.RemoveItems(context.Background(), clerk, inv.ID, []int64{items[0].ID})
	require.ErrorIs(t, err, ErrTotalBelowPaid)

	current, err := f.repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, 500.0, current.Total)
	require.Equal(t, 200.0, current.Paid)
	require.Equal(t, StatusPartial, current.Status)
}

func TestUpdateItemKeepsTotalAbovePayments(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 200, Method: MethodCash,
	})
	require.NoError(t, err)

	items, err := f.repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)

	tooLow := 100.0
	_, err = f.svc.UpdateItem(context.Background(), clerk, inv.ID, items[0].ID, ItemPatch{Amount: &tooLow})
	require.ErrorIs(t, err, ErrTotalBelowPaid)

	lower := 300.0
	updated, err := f.svc.UpdateItem(context.Background(), clerk, inv.ID, items[0].ID, ItemPatch{Amount: &lower})
	require.NoError(t, err)
	require.Equal(t, 300.0, updated.Total)
	require.Equal(t, 200.0, updated.Paid)
	require.Equal(t, StatusPartial, updated.Status)
}

func TestRecordPaymentLifecycle(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	p1, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 200, Method: MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, clerk.UserID, p1.RecordedBy)

	current, err := f.repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, 200.0, current.Paid)
	require.Equal(t, StatusPartial, current.Status)

	// overpayment carries the exact remaining balance
	_, err = f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 400, Method: MethodCash,
	})
	var amountErr *PaymentAmountError
	require.ErrorAs(t, err, &amountErr)
	require.Equal(t, 300.0, amountErr.Allowed)

	_, err = f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 300, Method: MethodTransfer,
	})
	require.NoError(t, err)

	final, err := f.repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, final.Status)

	payments, err := f.repo.ListPayments(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, final.Paid, SumPayments(payments))
}

func TestRecordItemPayment(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 300, 200)
	other := f.createInvoice(t, 50)

	items, err := f.repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)
	tuitionID := items[0].ID

	p, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, ItemID: &tuitionID, Amount: 250, Method: MethodCash,
	})
	require.NoError(t, err)
	require.NotNil(t, p.ItemID)

	// item has 50 left; paying more is rejected with the item's remainder
	_, err = f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, ItemID: &tuitionID, Amount: 100, Method: MethodCash,
	})
	var amountErr *PaymentAmountError
	require.ErrorAs(t, err, &amountErr)
	require.Equal(t, 50.0, amountErr.Allowed)

	otherItems, err := f.repo.ListItems(context.Background(), other.ID)
	require.NoError(t, err)
	foreignID := otherItems[0].ID
	_, err = f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, ItemID: &foreignID, Amount: 10, Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrItemMismatch)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 0, Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 10, Method: "barter",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: 9999, Amount: 10, Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestRecordPaymentMirrorsForFinance(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 100, Method: MethodCash,
	})
	require.NoError(t, err)
	require.Empty(t, f.mirror.calls)

	f.authz.grant(clerk.UserID, shared.CapFinanceManage)
	p, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 100, Method: MethodTransfer,
	})
	require.NoError(t, err)
	require.Len(t, f.mirror.calls, 1)
	require.Equal(t, p.ID, f.mirror.calls[0].paymentID)
	require.Equal(t, 100.0, f.mirror.calls[0].amount)
}

func TestRecordPaymentSurvivesSideEffectFailures(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	f.authz.grant(clerk.UserID, shared.CapFinanceManage)
	inv := f.createInvoice(t, 500)

	f.dispatcher.err = errors.New("queue down")
	f.mirror.err = errors.New("queue down")

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 200, Method: MethodCash,
	})
	require.NoError(t, err)

	current, err := f.repo.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, 200.0, current.Paid)
	require.Equal(t, StatusPartial, current.Status)
}

func TestDeleteInvoice(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 100, Method: MethodCash,
	})
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), clerk, inv.ID)
	var paymentsErr *HasPaymentsError
	require.ErrorAs(t, err, &paymentsErr)
	require.Equal(t, 1, paymentsErr.Count)

	empty := f.createInvoice(t, 250)
	require.NoError(t, f.svc.Delete(context.Background(), clerk, empty.ID))
	_, err = f.repo.GetInvoice(context.Background(), empty.ID)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestGetDetail(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	f.roster.studentNames[100] = "Ama Mensah"
	f.roster.userNames[clerk.UserID] = "K. Owusu"
	inv := f.createInvoice(t, 300, 200)

	items, err := f.repo.ListItems(context.Background(), inv.ID)
	require.NoError(t, err)
	tuitionID := items[0].ID
	_, err = f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, ItemID: &tuitionID, Amount: 150, Method: MethodCash,
	})
	require.NoError(t, err)

	detail, err := f.svc.GetDetail(context.Background(), clerk, inv.ID)
	require.NoError(t, err)
	require.Equal(t, "Ama Mensah", detail.StudentName)
	require.Len(t, detail.Items, 2)
	require.Len(t, detail.Payments, 1)
	require.Equal(t, "K. Owusu", detail.Payments[0].RecordedByName)
	require.Equal(t, items[0].Label, detail.Payments[0].ItemLabel)
	require.Equal(t, 350.0, detail.Balance)

	outsider := shared.Actor{UserID: 9, SchoolCode: "OTHER"}
	f.authz.grant(outsider.UserID, shared.CapFeesRead)
	_, err = f.svc.GetDetail(context.Background(), outsider, inv.ID)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestRemind(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	inv := f.createInvoice(t, 500)

	require.NoError(t, f.svc.Remind(context.Background(), clerk, inv.ID))
	last := f.dispatcher.calls[len(f.dispatcher.calls)-1]
	require.Equal(t, "payment_reminder", last.kind)
	require.Equal(t, 500.0, last.amount)

	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 500, Method: MethodCash,
	})
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.Remind(context.Background(), clerk, inv.ID), ErrValidation)
}

func TestSummary(t *testing.T) {
	f := newFixture()
	f.grantClerk()
	f.roster.classes[10] = &roster.Class{ID: 10, SchoolCode: "GHS", AcademicYearID: 3}
	f.roster.students[10] = []int64{100}

	inv := f.createInvoice(t, 500)
	_, err := f.svc.RecordPayment(context.Background(), clerk, RecordPaymentInput{
		InvoiceID: inv.ID, Amount: 200, Method: MethodCash,
	})
	require.NoError(t, err)

	summary, err := f.svc.Summary(context.Background(), clerk, 10, "2026-09", 3)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Counts[StatusPartial])
	require.Equal(t, 500.0, summary.TotalBilled)
	require.Equal(t, 200.0, summary.TotalPaid)
	require.Equal(t, 300.0, summary.Outstanding)
}
