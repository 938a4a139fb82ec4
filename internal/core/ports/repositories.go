package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the caller's atomic unit.
//
//go:generate mockgen -destination=mocks/mock_repositories.go -package=mocks wallet-ledger/internal/core/ports WalletRepository,TransactionRepository,AuditRepository,DBTransactor
type WalletRepository interface {
	// Create returns domain.ErrWalletExists when (owner, name, currency) collides with an active wallet.
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, includeDeleted bool) ([]domain.Wallet, error)
	// GetInTx reads the wallet inside tx without taking a row lock (optimistic path).
	GetInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// GetByIDForUpdate reads the wallet holding an exclusive row lock until tx ends.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// UpdateBalance sets the balance and bumps the version only if the row is still at
	// expectedVersion. Returns domain.ErrVersionConflict when no row matched.
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error
	SoftDelete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
}

// TransactionRepository is the append-only ledger store. It deliberately has no update or delete.
type TransactionRepository interface {
	// Create returns domain.ErrDuplicateReference when the reference is taken.
	Create(ctx context.Context, tx pgx.Tx, entry *domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListByWallet(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	Summarize(ctx context.Context, walletID uuid.UUID) (*domain.LedgerSummary, error)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	WalletID  uuid.UUID
	Direction *domain.Direction
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
