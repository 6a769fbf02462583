package billing

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every validation or invariant violation surfaces as one of
// these; side-effect failures (notifications, ledger mirroring) are logged
// and never propagated.
var (
	// ErrAccessDenied indicates a missing capability or an invoice owned by
	// another school.
	ErrAccessDenied = errors.New("billing: access denied")
	// ErrInvoiceNotFound indicates the referenced invoice does not exist.
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
	// ErrItemNotFound indicates the referenced item does not exist on the
	// given invoice.
	ErrItemNotFound = errors.New("billing: invoice item not found")
	// ErrItemMismatch indicates the item belongs to a different invoice.
	ErrItemMismatch = errors.New("billing: item does not belong to invoice")
	// ErrInvalidItems indicates an empty or malformed item list.
	ErrInvalidItems = errors.New("billing: invalid invoice items")
	// ErrYearMismatch indicates the requested academic year does not match
	// the class's academic year.
	ErrYearMismatch = errors.New("billing: academic year does not match class")
	// ErrTotalBelowPaid indicates an item change that would reduce the
	// invoice total below the amount already paid.
	ErrTotalBelowPaid = errors.New("billing: total would fall below amount already paid")
	// ErrValidation indicates a structural schema violation caught before
	// anything reaches storage.
	ErrValidation = errors.New("billing: validation failed")
)

// PaymentAmountError reports a payment exceeding the remaining balance,
// carrying the maximum amount that would have been accepted.
type PaymentAmountError struct {
	Allowed float64
}

func (e *PaymentAmountError) Error() string {
	return fmt.Sprintf("billing: payment exceeds remaining balance, allowed at most %.2f", e.Allowed)
}

// HasPaymentsError reports a delete attempt on an invoice that already has
// payments recorded against it.
type HasPaymentsError struct {
	Count int
}

func (e *HasPaymentsError) Error() string {
	return fmt.Sprintf("billing: invoice has %d payment(s) and cannot be deleted", e.Count)
}
