package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, owner_id, name, currency, balance, version, created_at, updated_at, deleted_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet into the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, owner_id, name, currency, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerID, w.Name, w.Currency, w.Balance,
		w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert wallet: %w", domain.ErrWalletExists)
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID (without locking). Soft-deleted wallets are returned.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// ListByOwner returns the owner's wallets, oldest first.
func (r *WalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, includeDeleted bool) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	wallets := make([]domain.Wallet, 0)
	for rows.Next() {
		w := domain.Wallet{}
		if err := rows.Scan(
			&w.ID, &w.OwnerID, &w.Name, &w.Currency, &w.Balance,
			&w.Version, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// GetInTx reads a wallet inside tx without taking a row lock.
func (r *WalletRepo) GetInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr("get wallet in tx", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr("get wallet for update", err)
	}
	return w, nil
}

// UpdateBalance writes the new balance only if the row is still at expectedVersion.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	query := `UPDATE wallets SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND deleted_at IS NULL`

	tag, err := tx.Exec(ctx, query, balance, id, expectedVersion)
	if err != nil {
		return wrapErr("update wallet balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update wallet balance %s at version %d: %w", id, expectedVersion, domain.ErrVersionConflict)
	}
	return nil
}

// SoftDelete sets the delete marker without touching balance or version.
// Returns domain.ErrVersionConflict if the wallet was not active and owned by ownerID.
func (r *WalletRepo) SoftDelete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	query := `UPDATE wallets SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("soft delete wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("soft delete wallet %s: %w", id, domain.ErrVersionConflict)
	}
	return nil
}

// scanWallet maps a single row; a missing row yields nil, nil.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Name, &w.Currency, &w.Balance,
		&w.Version, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
