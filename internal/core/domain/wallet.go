package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletState is the lifecycle state of a wallet.
type WalletState string

const (
	WalletStateActive  WalletState = "ACTIVE"
	WalletStateDeleted WalletState = "DELETED"
)

// Wallet is a single-currency balance owned by one user.
// Balance and Version change only through the guarded update in the wallet repository.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

// IsActive returns true until the wallet is soft-deleted.
func (w *Wallet) IsActive() bool {
	return w.DeletedAt == nil
}

// State derives the lifecycle state from the delete marker.
func (w *Wallet) State() WalletState {
	if w.IsActive() {
		return WalletStateActive
	}
	return WalletStateDeleted
}

// IsOwnedBy reports whether userID owns the wallet.
func (w *Wallet) IsOwnedBy(userID uuid.UUID) bool {
	return w.OwnerID == userID
}

// CanDebit reports whether amount can be withdrawn without driving the balance negative.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// Applied returns a copy of the wallet as it looks after a successful guarded update.
func (w *Wallet) Applied(newBalance decimal.Decimal, at time.Time) *Wallet {
	next := *w
	next.Balance = newBalance
	next.Version = w.Version + 1
	next.UpdatedAt = at
	return &next
}
