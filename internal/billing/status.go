package billing

// StatusFor derives the invoice status from its total and paid amounts. It
// is total over its inputs and carries no state; callers re-evaluate it after
// every mutation instead of patching the previous status.
func StatusFor(total, paid float64) FeeStatus {
	switch {
	case total <= 0:
		return StatusNoBilling
	case paid <= 0:
		return StatusDue
	case paid < total:
		return StatusPartial
	default:
		return StatusPaid
	}
}

// SumItems totals the amounts of the given items.
func SumItems(items []InvoiceItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return total
}

// SumPayments totals all payments, invoice-level and item-level combined.
func SumPayments(payments []Payment) float64 {
	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}

// SumItemPayments totals the payments applied against one specific item.
func SumItemPayments(payments []Payment, itemID int64) float64 {
	var total float64
	for _, p := range payments {
		if p.ItemID != nil && *p.ItemID == itemID {
			total += p.Amount
		}
	}
	return total
}

// Remaining returns the balance still owed, never negative.
func Remaining(total, paid float64) float64 {
	if paid >= total {
		return 0
	}
	return total - paid
}
