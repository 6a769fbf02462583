package shared

// Capabilities understood by the billing engine. The values follow the
// capability naming used by the upstream identity provider, so they are not
// normalised further here.
const (
	CapFeesRead           = "fees:read"
	CapFeesWrite          = "fees:write"
	CapFeesRecordPayments = "fees:record_payments"

	// CapFinanceManage gates mirroring fee payments into the general ledger.
	CapFinanceManage = "finance:manage"
)

// BillingScopes lists all capabilities related to fee billing.
func BillingScopes() []string {
	return []string{
		CapFeesRead,
		CapFeesWrite,
		CapFeesRecordPayments,
		CapFinanceManage,
	}
}
