package billing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name  string
		total float64
		paid  float64
		want  FeeStatus
	}{
		{"no items", 0, 0, StatusNoBilling},
		{"negative total", -10, 0, StatusNoBilling},
		{"billed unpaid", 500, 0, StatusDue},
		{"billed negative paid", 500, -1, StatusDue},
		{"partially paid", 500, 200, StatusPartial},
		{"almost paid", 500, 499.99, StatusPartial},
		{"exactly paid", 500, 500, StatusPaid},
		{"overpaid", 500, 600, StatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, StatusFor(tc.total, tc.paid))
		})
	}
}

func TestSumItemsAndPayments(t *testing.T) {
	items := []InvoiceItem{
		{ID: 1, Amount: 300},
		{ID: 2, Amount: 200},
	}
	require.Equal(t, 500.0, SumItems(items))
	require.Equal(t, 0.0, SumItems(nil))

	itemID := int64(1)
	payments := []Payment{
		{ID: 10, Amount: 100},
		{ID: 11, Amount: 50, ItemID: &itemID},
		{ID: 12, Amount: 25, ItemID: &itemID},
	}
	require.Equal(t, 175.0, SumPayments(payments))
	require.Equal(t, 75.0, SumItemPayments(payments, 1))
	require.Equal(t, 0.0, SumItemPayments(payments, 2))
}

func TestRemaining(t *testing.T) {
	require.Equal(t, 300.0, Remaining(500, 200))
	require.Equal(t, 0.0, Remaining(500, 500))
	require.Equal(t, 0.0, Remaining(500, 600))
	require.Equal(t, 0.0, Remaining(0, 0))
}

func TestValidMethod(t *testing.T) {
	require.True(t, ValidMethod(MethodCash))
	require.True(t, ValidMethod(MethodMobileMoney))
	require.False(t, ValidMethod("barter"))
	require.False(t, ValidMethod(""))
}
