// Package memory is an in-process implementation of the wallet and ledger
// storage ports. It mirrors the guarantees the engine relies on from
// PostgreSQL: row locks held until commit, a version predicate checked against
// committed state, a unique reference constraint and all-or-nothing commits.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNegativeBalance mirrors the CHECK (balance >= 0) column constraint.
var ErrNegativeBalance = errors.New("memory: balance check constraint violated")

var (
	_ ports.WalletRepository      = (*Store)(nil)
	_ ports.DBTransactor          = (*Store)(nil)
	_ ports.TransactionRepository = Ledger{}
)

// Store holds wallets and committed ledger entries.
type Store struct {
	mu      sync.Mutex
	cond    *sync.Cond
	wallets map[uuid.UUID]domain.Wallet
	entries []domain.Transaction
	refs    map[string]struct{}
	pending map[string]*Tx
	locks   map[uuid.UUID]*Tx
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{
		wallets: make(map[uuid.UUID]domain.Wallet),
		refs:    make(map[string]struct{}),
		pending: make(map[string]*Tx),
		locks:   make(map[uuid.UUID]*Tx),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Ledger exposes the store's entries through the ledger repository port.
func (s *Store) Ledger() Ledger {
	return Ledger{s}
}

// Tx buffers writes until Commit. Only Commit and Rollback are implemented;
// the embedded pgx.Tx is nil.
type Tx struct {
	pgx.Tx
	store   *Store
	writes  map[uuid.UUID]domain.Wallet
	entries []domain.Transaction
	done    bool
}

// Begin starts a unit of work.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{store: s, writes: make(map[uuid.UUID]domain.Wallet)}, nil
}

func (tx *Tx) Commit(_ context.Context) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	for id, w := range tx.writes {
		s.wallets[id] = w
	}
	for _, e := range tx.entries {
		s.entries = append(s.entries, e)
		s.refs[e.Reference] = struct{}{}
	}
	tx.release()
	return nil
}

func (tx *Tx) Rollback(_ context.Context) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return nil
	}
	tx.release()
	return nil
}

// release must be called with the store mutex held.
func (tx *Tx) release() {
	s := tx.store
	tx.done = true
	for id, holder := range s.locks {
		if holder == tx {
			delete(s.locks, id)
		}
	}
	for ref, holder := range s.pending {
		if holder == tx {
			delete(s.pending, ref)
		}
	}
	s.cond.Broadcast()
}

// lockRow blocks until tx holds the row lock. Must be called with the mutex held.
func (s *Store) lockRow(tx *Tx, id uuid.UUID) {
	for {
		holder, ok := s.locks[id]
		if !ok || holder == tx {
			s.locks[id] = tx
			return
		}
		s.cond.Wait()
	}
}

func asTx(tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok {
		return nil, errors.New("memory: foreign transaction")
	}
	return mt, nil
}

// Seed inserts or replaces a committed wallet row.
func (s *Store) Seed(w domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.ID] = w
}

// Wallet returns the committed row, or the zero value when absent.
func (s *Store) Wallet(id uuid.UUID) domain.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[id]
}

// EntriesFor returns committed entries for a wallet in insertion order.
func (s *Store) EntriesFor(id uuid.UUID) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, e := range s.entries {
		if e.WalletID == id {
			out = append(out, e)
		}
	}
	return out
}

// --- WalletRepository ---

func (s *Store) Create(_ context.Context, wallet *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.OwnerID == wallet.OwnerID && w.Name == wallet.Name && w.Currency == wallet.Currency && w.IsActive() {
			return domain.ErrWalletExists
		}
	}
	s.wallets[wallet.ID] = *wallet
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID uuid.UUID, includeDeleted bool) ([]domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Wallet{}
	for _, w := range s.wallets {
		if w.OwnerID == ownerID && (includeDeleted || w.IsActive()) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetInTx(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := mt.writes[id]; ok {
		return &w, nil
	}
	w, ok := s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *Store) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[id]; !ok {
		return nil, nil
	}
	s.lockRow(mt, id)
	if w, ok := mt.writes[id]; ok {
		return &w, nil
	}
	w := s.wallets[id]
	return &w, nil
}

func (s *Store) UpdateBalance(_ context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockRow(mt, id)

	current, ok := mt.writes[id]
	if !ok {
		current, ok = s.wallets[id]
	}
	if !ok || current.Version != expectedVersion || !current.IsActive() {
		return domain.ErrVersionConflict
	}
	if balance.IsNegative() {
		return ErrNegativeBalance
	}
	current.Balance = balance
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	mt.writes[id] = current
	return nil
}

func (s *Store) SoftDelete(_ context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok || w.OwnerID != ownerID || !w.IsActive() {
		return domain.ErrVersionConflict
	}
	now := time.Now().UTC()
	w.DeletedAt = &now
	s.wallets[id] = w
	return nil
}

// --- TransactionRepository ---

// Ledger is the append-only view over a Store.
type Ledger struct{ store *Store }

func (l Ledger) Create(_ context.Context, tx pgx.Tx, entry *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refs[entry.Reference]; ok {
		return domain.ErrDuplicateReference
	}
	if holder, ok := s.pending[entry.Reference]; ok && holder != mt {
		return domain.ErrDuplicateReference
	}
	s.pending[entry.Reference] = mt
	mt.entries = append(mt.entries, *entry)
	return nil
}

func (l Ledger) GetByReference(_ context.Context, reference string) (*domain.Transaction, error) {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Reference == reference {
			return &e, nil
		}
	}
	return nil, nil
}

func (l Ledger) ListByWallet(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	all := l.store.EntriesFor(params.WalletID)
	out := []domain.Transaction{}
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if params.Direction != nil && e.Direction != *params.Direction {
			continue
		}
		if params.From != nil && e.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && e.CreatedAt.After(*params.To) {
			continue
		}
		out = append(out, e)
	}
	total := int64(len(out))
	if params.Offset >= len(out) {
		return []domain.Transaction{}, total, nil
	}
	out = out[params.Offset:]
	if params.Limit > 0 && params.Limit < len(out) {
		out = out[:params.Limit]
	}
	return out, total, nil
}

func (l Ledger) Summarize(_ context.Context, walletID uuid.UUID) (*domain.LedgerSummary, error) {
	sum := &domain.LedgerSummary{WalletID: walletID, TotalCredited: decimal.Zero, TotalDebited: decimal.Zero}
	for _, e := range l.store.EntriesFor(walletID) {
		if e.Direction == domain.DirectionCredit {
			sum.TotalCredited = sum.TotalCredited.Add(e.Amount)
		} else {
			sum.TotalDebited = sum.TotalDebited.Add(e.Amount)
		}
		sum.EntryCount++
	}
	return sum, nil
}
