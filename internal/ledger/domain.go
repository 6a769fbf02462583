// Package ledger mirrors fee payments into the school's general ledger as
// income transactions. Mirroring is one-way and best-effort: the billing
// engine never depends on it succeeding.
package ledger

import "time"

// TransactionType enumerates ledger transaction directions.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Source types linking ledger rows back to their originating record.
const (
	SourceFeePayment = "fee_payment"
)

// Accounts money can land in, chosen by payment method.
const (
	AccountCash = "cash"
	AccountBank = "bank"
)

// CategoryFees tags all mirrored fee income.
const CategoryFees = "fees"

// Transaction is one row in the general ledger.
type Transaction struct {
	ID          int64
	Date        time.Time
	Amount      float64
	Type        TransactionType
	Category    string
	Account     string
	Description string
	SourceType  string
	SourceID    int64
	CreatedAt   time.Time
}

// IncomeInput describes an income transaction to record.
type IncomeInput struct {
	Date        time.Time
	Amount      float64
	Category    string
	Account     string
	Description string
	SourceType  string
	SourceID    int64
}

// AccountForMethod maps a payment method onto the receiving ledger account.
// Cash stays in the cash box; every electronic method settles to the bank.
func AccountForMethod(method string) string {
	if method == "cash" {
		return AccountCash
	}
	return AccountBank
}
