package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Validation errors raised before anything is persisted.
var (
	ErrAmountNotPositive = errors.New("ledger: amount must be positive")
	ErrAccountRequired   = errors.New("ledger: account required")
	ErrSourceRequired    = errors.New("ledger: source reference required")
)

// Service handles ledger business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RecordIncome appends an income transaction to the ledger.
func (s *Service) RecordIncome(ctx context.Context, input IncomeInput) (int64, error) {
	if input.Amount <= 0 {
		return 0, ErrAmountNotPositive
	}
	if input.Account == "" {
		return 0, ErrAccountRequired
	}
	if input.SourceType == "" || input.SourceID == 0 {
		return 0, ErrSourceRequired
	}
	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}
	category := input.Category
	if category == "" {
		category = CategoryFees
	}

	id, err := s.repo.InsertTransaction(ctx, Transaction{
		Date:        date,
		Amount:      input.Amount,
		Type:        TypeIncome,
		Category:    category,
		Account:     input.Account,
		Description: input.Description,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
	})
	if err != nil {
		return 0, fmt.Errorf("record income: %w", err)
	}
	return id, nil
}

// TransactionsForSource returns the mirrored rows for one source record.
func (s *Service) TransactionsForSource(ctx context.Context, sourceType string, sourceID int64) ([]Transaction, error) {
	return s.repo.ListBySource(ctx, sourceType, sourceID)
}
