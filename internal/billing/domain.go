// Package billing implements the fee invoicing and payment reconciliation
// engine. An Invoice is the aggregate root; items and payments belong to
// exactly one invoice and the invoice's totals and status are derived from
// them after every mutation.
package billing

import "time"

// FeeStatus is the derived lifecycle label of an invoice.
type FeeStatus string

const (
	StatusNoBilling FeeStatus = "NO_BILLING"
	StatusDue       FeeStatus = "DUE"
	StatusPartial   FeeStatus = "PARTIAL"
	StatusPaid      FeeStatus = "PAID"
)

// Payment methods accepted by the engine.
const (
	MethodCash        = "cash"
	MethodCard        = "card"
	MethodTransfer    = "transfer"
	MethodCheque      = "cheque"
	MethodMobileMoney = "mobile_money"
)

// ValidMethod reports whether the payment method is one the engine accepts.
func ValidMethod(method string) bool {
	switch method {
	case MethodCash, MethodCard, MethodTransfer, MethodCheque, MethodMobileMoney:
		return true
	}
	return false
}

// Invoice model. Total, Paid and Status are derived fields recomputed from
// the full item and payment sets on every mutation.
type Invoice struct {
	ID             int64
	SchoolCode     string
	StudentID      int64
	Period         string
	AcademicYearID int64
	DueDate        time.Time
	Notes          string
	Total          float64
	Paid           float64
	Status         FeeStatus
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InvoiceItem is one labeled charge line on an invoice.
type InvoiceItem struct {
	ID        int64
	InvoiceID int64
	Label     string
	Amount    float64
	CreatedAt time.Time
}

// Payment is a recorded money receipt. ItemID is nil for invoice-level
// payments and set when the payment settles one specific item. RecordedBy
// stores the recording user's id only; display names are resolved at read
// time.
type Payment struct {
	ID         int64
	InvoiceID  int64
	ItemID     *int64
	Amount     float64
	Method     string
	PaidAt     time.Time
	ReceiptNo  string
	Remarks    string
	RecordedBy int64
	CreatedAt  time.Time
}

// ItemDraft describes one charge line to create.
type ItemDraft struct {
	Label  string
	Amount float64
}

// CreateInvoiceInput for creating a single invoice.
type CreateInvoiceInput struct {
	StudentID      int64
	Period         string
	AcademicYearID int64
	DueDate        time.Time
	Notes          string
	Items          []ItemDraft
}

// GenerateForClassInput for bulk-generating invoices for a class.
type GenerateForClassInput struct {
	ClassID        int64
	Period         string
	AcademicYearID int64
	DueDate        time.Time
	Items          []ItemDraft
}

// GenerateResult reports the outcome of a bulk generation run.
type GenerateResult struct {
	Created    int
	Skipped    int
	InvoiceIDs []int64
}

// ItemPatch is a partial update to one item.
type ItemPatch struct {
	Label  *string
	Amount *float64
}

// InvoicePatch is a partial update to invoice header fields. Totals and
// status are never patched directly.
type InvoicePatch struct {
	DueDate *time.Time
	Notes   *string
}

// RecordPaymentInput for recording a payment against an invoice or one of
// its items.
type RecordPaymentInput struct {
	InvoiceID int64
	ItemID    *int64
	Amount    float64
	Method    string
	PaidAt    time.Time
	ReceiptNo string
	Remarks   string
}

// PaymentView is a payment with read-time resolved names.
type PaymentView struct {
	Payment
	RecordedByName string
	ItemLabel      string
}

// InvoiceDetail is the composite read model for one invoice.
type InvoiceDetail struct {
	Invoice
	StudentName string
	Items       []InvoiceItem
	Payments    []PaymentView
	Balance     float64
}

// Summary aggregates invoices by status for reporting.
type Summary struct {
	Counts      map[FeeStatus]int
	TotalBilled float64
	TotalPaid   float64
	Outstanding float64
}
