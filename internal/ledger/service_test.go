package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/lumora-sms/lumora/internal/testing/guard"
)

type memoryLedgerRepo struct {
	txs    []Transaction
	nextID int64
}

func (r *memoryLedgerRepo) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	for _, existing := range r.txs {
		if existing.SourceType == tx.SourceType && existing.SourceID == tx.SourceID {
			return 0, ErrSourceAlreadyLinked
		}
	}
	r.nextID++
	tx.ID = r.nextID
	r.txs = append(r.txs, tx)
	return tx.ID, nil
}

func (r *memoryLedgerRepo) ListBySource(ctx context.Context, sourceType string, sourceID int64) ([]Transaction, error) {
	var out []Transaction
	for _, tx := range r.txs {
		if tx.SourceType == sourceType && tx.SourceID == sourceID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func TestRecordIncome(t *testing.T) {
	ctx := context.Background()
	repo := &memoryLedgerRepo{}
	svc := NewService(repo)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id, err := svc.RecordIncome(ctx, IncomeInput{
		Date:        date,
		Amount:      250,
		Account:     AccountCash,
		Description: "fee payment for invoice 12",
		SourceType:  SourceFeePayment,
		SourceID:    7,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	txs, err := svc.TransactionsForSource(ctx, SourceFeePayment, 7)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, TypeIncome, txs[0].Type)
	require.Equal(t, CategoryFees, txs[0].Category)
	require.Equal(t, 250.0, txs[0].Amount)
}

func TestRecordIncomeRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(&memoryLedgerRepo{})

	_, err := svc.RecordIncome(context.Background(), IncomeInput{
		Amount:     0,
		Account:    AccountBank,
		SourceType: SourceFeePayment,
		SourceID:   1,
	})
	require.ErrorIs(t, err, ErrAmountNotPositive)
}

func TestRecordIncomeIdempotentPerSource(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&memoryLedgerRepo{})

	input := IncomeInput{
		Amount:     100,
		Account:    AccountBank,
		SourceType: SourceFeePayment,
		SourceID:   42,
	}
	_, err := svc.RecordIncome(ctx, input)
	require.NoError(t, err)

	_, err = svc.RecordIncome(ctx, input)
	require.ErrorIs(t, err, ErrSourceAlreadyLinked)
}

func TestAccountForMethod(t *testing.T) {
	require.Equal(t, AccountCash, AccountForMethod("cash"))
	require.Equal(t, AccountBank, AccountForMethod("card"))
	require.Equal(t, AccountBank, AccountForMethod("transfer"))
	require.Equal(t, AccountBank, AccountForMethod("mobile_money"))
}
