package service

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerService implements ports.Ledger on top of the append-only transaction store.
type LedgerService struct {
	txRepo          ports.TransactionRepository
	defaultPageSize int
	maxPageSize     int
	log             zerolog.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(txRepo ports.TransactionRepository, cfg config.LedgerConfig, log zerolog.Logger) *LedgerService {
	s := &LedgerService{
		txRepo:          txRepo,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
		log:             log,
	}
	if s.defaultPageSize <= 0 {
		s.defaultPageSize = 50
	}
	if s.maxPageSize < s.defaultPageSize {
		s.maxPageSize = s.defaultPageSize
	}
	return s
}

// Append validates the entry and inserts it in the caller's transaction.
func (s *LedgerService) Append(ctx context.Context, tx pgx.Tx, entry *domain.Transaction) error {
	if err := entry.Validate(); err != nil {
		return apperror.InternalError(fmt.Errorf("ledger entry %s: %w", entry.Reference, err))
	}
	if err := s.txRepo.Create(ctx, tx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			dup := apperror.ErrDuplicateReference(entry.Reference)
			dup.Err = err
			return dup
		}
		return err
	}
	return nil
}

// GetByReference returns the entry recorded under reference, or nil.
func (s *LedgerService) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	entry, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return entry, nil
}

// ListForWallet returns a page of entries, newest first.
func (s *LedgerService) ListForWallet(ctx context.Context, walletID uuid.UUID, filter ports.LedgerFilter) (*ports.LedgerPage, error) {
	if filter.Direction != nil && !filter.Direction.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("direction must be %s or %s", domain.DirectionCredit, domain.DirectionDebit))
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperror.Validation("from must not be after to")
	}

	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = s.defaultPageSize
	case limit > s.maxPageSize:
		limit = s.maxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.txRepo.ListByWallet(ctx, ports.TransactionListParams{
		WalletID:  walletID,
		Direction: filter.Direction,
		From:      filter.From,
		To:        filter.To,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	return &ports.LedgerPage{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// Summarize aggregates the wallet's ledger.
func (s *LedgerService) Summarize(ctx context.Context, walletID uuid.UUID) (*domain.LedgerSummary, error) {
	summary, err := s.txRepo.Summarize(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return summary, nil
}
