package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of the ledger an entry posts to.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Metadata keys written by the engine.
const (
	MetaCounterpartWalletID = "counterpart_wallet_id"
	MetaTransferReference   = "transfer_reference"
)

// Transaction is an immutable ledger entry recording one balance change.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Direction     Direction       `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reference     string          `json:"reference"` // Idempotency key, unique across the ledger
	Description   *string         `json:"description,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	PerformedBy   uuid.UUID       `json:"performed_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

var errEntryArithmetic = errors.New("balance_after does not follow from balance_before and amount")

// Validate checks the entry invariants before it is appended.
func (t *Transaction) Validate() error {
	if !t.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", t.Direction)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", t.Amount)
	}
	if t.Reference == "" {
		return errors.New("reference is required")
	}
	if !t.BalanceAfter.Equal(t.ExpectedBalanceAfter()) {
		return errEntryArithmetic
	}
	if t.BalanceAfter.IsNegative() {
		return errors.New("balance_after must not be negative")
	}
	return nil
}

// ExpectedBalanceAfter applies the entry to BalanceBefore.
func (t *Transaction) ExpectedBalanceAfter() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.BalanceBefore.Sub(t.Amount)
	}
	return t.BalanceBefore.Add(t.Amount)
}

// SignedAmount is positive for credits and negative for debits.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// LedgerSummary aggregates all entries of one wallet.
type LedgerSummary struct {
	WalletID      uuid.UUID       `json:"wallet_id"`
	TotalCredited decimal.Decimal `json:"total_credited"`
	TotalDebited  decimal.Decimal `json:"total_debited"`
	EntryCount    int64           `json:"entry_count"`
}

// Net is credits minus debits; it equals the wallet balance for a consistent ledger.
func (s *LedgerSummary) Net() decimal.Decimal {
	return s.TotalCredited.Sub(s.TotalDebited)
}
