package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSourceAlreadyLinked indicates the source record was mirrored before.
var ErrSourceAlreadyLinked = errors.New("ledger: source already linked")

const uniqueViolation = "23505"

// RepositoryPort defines data access methods for the ledger.
type RepositoryPort interface {
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	ListBySource(ctx context.Context, sourceType string, sourceID int64) ([]Transaction, error)
}

// Repository provides PostgreSQL backed persistence for ledger transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTransaction appends a ledger row. The (source_type, source_id) pair
// is unique, which makes mirroring idempotent under task retries.
func (r *Repository) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ledger_transactions (tx_date, amount, tx_type, category, account, description, source_type, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id`,
		tx.Date, tx.Amount, tx.Type, tx.Category, tx.Account, tx.Description, tx.SourceType, tx.SourceID,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrSourceAlreadyLinked
		}
		return 0, err
	}
	return id, nil
}

// ListBySource returns transactions mirrored from the given source record.
func (r *Repository) ListBySource(ctx context.Context, sourceType string, sourceID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tx_date, amount, tx_type, category, account, description, source_type, source_id, created_at
		FROM ledger_transactions
		WHERE source_type = $1 AND source_id = $2
		ORDER BY id`, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Date, &t.Amount, &t.Type, &t.Category, &t.Account, &t.Description, &t.SourceType, &t.SourceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
