package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks wallet-ledger/internal/core/ports ReferenceCache,TokenService,AuditService,WalletService

// ReferenceCache is the Redis-layer idempotency check (fast path) keyed by ledger reference.
type ReferenceCache interface {
	Get(ctx context.Context, reference string) ([]byte, error) // Returns cached result JSON or nil
	Set(ctx context.Context, reference string, value []byte, ttl time.Duration) error
}

// TokenService validates bearer tokens issued by the identity service.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// AuditService records audit entries. Failures never propagate to the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Transaction Ledger ---

// Ledger appends entries and answers read-side aggregate queries.
type Ledger interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListForWallet(ctx context.Context, walletID uuid.UUID, filter LedgerFilter) (*LedgerPage, error)
	Summarize(ctx context.Context, walletID uuid.UUID) (*domain.LedgerSummary, error)
}

// LedgerFilter narrows a ledger listing. Zero Limit means the default page size.
type LedgerFilter struct {
	Direction *domain.Direction
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// LedgerPage is one page of entries, newest first.
type LedgerPage struct {
	Entries []domain.Transaction `json:"entries"`
	Total   int64                `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// --- Wallet Ledger Engine ---

// WalletService is the public operation surface of the engine.
type WalletService interface {
	Create(ctx context.Context, req CreateWalletRequest) (*domain.Wallet, error)
	Get(ctx context.Context, walletID, actingUserID uuid.UUID) (*domain.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, includeDeleted bool) ([]domain.Wallet, error)
	Fund(ctx context.Context, req MutationRequest) (*MutationResult, error)
	Withdraw(ctx context.Context, req MutationRequest) (*MutationResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	Delete(ctx context.Context, walletID, actingUserID uuid.UUID) error
	ListTransactions(ctx context.Context, walletID, actingUserID uuid.UUID, filter LedgerFilter) (*LedgerPage, error)
	Summary(ctx context.Context, walletID, actingUserID uuid.UUID) (*domain.LedgerSummary, error)
}

// CreateWalletRequest holds validated input for wallet creation.
type CreateWalletRequest struct {
	OwnerID  uuid.UUID
	Name     string
	Currency string
}

// MutationRequest holds input for a single-wallet fund or withdraw.
type MutationRequest struct {
	WalletID     uuid.UUID
	Amount       decimal.Decimal
	Reference    string // Optional; generated when empty
	Description  *string
	Metadata     map[string]any
	ActingUserID uuid.UUID
	Pessimistic  bool // Take a row lock instead of version check + retry
}

// MutationResult is the outcome of a fund or withdraw.
// Replayed is true when the reference had already been applied.
type MutationResult struct {
	Wallet   *domain.Wallet      `json:"wallet"`
	Entry    *domain.Transaction `json:"entry"`
	Replayed bool                `json:"replayed"`
}

// TransferRequest holds input for a same-currency transfer.
type TransferRequest struct {
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       decimal.Decimal
	Description  *string
	Reference    string // Optional base reference; legs get -OUT / -IN
	ActingUserID uuid.UUID
}

// TransferResult holds both updated wallets and both ledger legs.
type TransferResult struct {
	From        *domain.Wallet      `json:"from"`
	To          *domain.Wallet      `json:"to"`
	DebitEntry  *domain.Transaction `json:"debit_entry"`
	CreditEntry *domain.Transaction `json:"credit_entry"`
	Replayed    bool                `json:"replayed"`
}
