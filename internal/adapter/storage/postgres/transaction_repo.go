package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, wallet_id, direction, amount, balance_before, balance_after,
		reference, description, metadata, performed_by, created_at`

// TransactionRepo implements ports.TransactionRepository.
// It has no update or delete: ledger entries are append-only.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	metadata, err := encodeJSON(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Direction, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Reference, t.Description, metadata, t.PerformedBy, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction %s: %w", t.Reference, domain.ErrDuplicateReference)
		}
		return wrapErr("insert transaction", err)
	}
	return nil
}

// GetByReference fetches the entry recorded under reference, or nil.
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, reference))
	if err != nil {
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return t, nil
}

// ListByWallet fetches entries with filtering and pagination, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Direction != nil {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", argIdx))
		args = append(args, *params.Direction)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// Summarize aggregates credits and debits for a wallet.
func (r *TransactionRepo) Summarize(ctx context.Context, walletID uuid.UUID) (*domain.LedgerSummary, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE direction = 'CREDIT'), 0) AS total_credited,
		COALESCE(SUM(amount) FILTER (WHERE direction = 'DEBIT'), 0) AS total_debited,
		COUNT(*) AS entry_count
		FROM transactions WHERE wallet_id = $1`

	s := &domain.LedgerSummary{WalletID: walletID}
	err := r.pool.QueryRow(ctx, query, walletID).Scan(&s.TotalCredited, &s.TotalDebited, &s.EntryCount)
	if err != nil {
		return nil, fmt.Errorf("summarize transactions: %w", err)
	}
	return s, nil
}

// scanTransaction maps a single row; a missing row yields nil, nil.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var metadata []byte
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Direction, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
		&t.Reference, &t.Description, &metadata, &t.PerformedBy, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return t, nil
}

// encodeJSON marshals a JSONB column value; empty maps are stored as NULL.
func encodeJSON(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
