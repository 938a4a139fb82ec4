package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	maxWalletNameLen = 100
	maxReferenceLen  = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo   ports.WalletRepository
	ledger       ports.Ledger
	controller   *Controller
	refCache     ports.ReferenceCache
	audit        ports.AuditService
	referenceTTL time.Duration
	pessimistic  bool
	log          zerolog.Logger
	now          func() time.Time
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledger ports.Ledger,
	controller *Controller,
	refCache ports.ReferenceCache,
	audit ports.AuditService,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:   walletRepo,
		ledger:       ledger,
		controller:   controller,
		refCache:     refCache,
		audit:        audit,
		referenceTTL: cfg.ReferenceTTL,
		pessimistic:  cfg.Pessimistic(),
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create opens an empty wallet for the owner.
func (s *WalletServiceImpl) Create(ctx context.Context, req ports.CreateWalletRequest) (*domain.Wallet, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("wallet name is required")
	}
	if utf8.RuneCountInString(name) > maxWalletNameLen {
		return nil, apperror.Validation(fmt.Sprintf("wallet name must be at most %d characters", maxWalletNameLen))
	}
	currency := domain.NormalizeCurrency(req.Currency)
	if !domain.IsValidCurrency(currency) {
		return nil, apperror.ErrInvalidCurrency(req.Currency)
	}

	now := s.now()
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Name:      name,
		Currency:  currency,
		Balance:   decimal.Zero,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		if errors.Is(err, domain.ErrWalletExists) {
			return nil, apperror.ErrAlreadyExists("wallet").WithDetails(map[string]any{
				"name":     name,
				"currency": currency,
			})
		}
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.audit.Log(ctx, domain.NewWalletAudit(req.OwnerID, wallet.ID, domain.AuditActionCreate, map[string]any{
		"name":     wallet.Name,
		"currency": wallet.Currency,
		"balance":  money.Format(wallet.Balance),
		"version":  wallet.Version,
	}))

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner_id", req.OwnerID.String()).
		Str("currency", currency).
		Msg("wallet created")

	return wallet, nil
}

// Get returns a wallet owned by the acting user. Deleted wallets stay readable.
func (s *WalletServiceImpl) Get(ctx context.Context, walletID, actingUserID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil || !wallet.IsOwnedBy(actingUserID) {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListByOwner returns the owner's wallets.
func (s *WalletServiceImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID, includeDeleted bool) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.ListByOwner(ctx, ownerID, includeDeleted)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}

// Fund credits the wallet. Any authenticated user may fund any active wallet.
func (s *WalletServiceImpl) Fund(ctx context.Context, req ports.MutationRequest) (*ports.MutationResult, error) {
	return s.mutate(ctx, req, domain.DirectionCredit)
}

// Withdraw debits a wallet owned by the acting user.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.MutationRequest) (*ports.MutationResult, error) {
	return s.mutate(ctx, req, domain.DirectionDebit)
}

// mutate runs a single-wallet credit or debit under the concurrency controller.
func (s *WalletServiceImpl) mutate(ctx context.Context, req ports.MutationRequest, dir domain.Direction) (*ports.MutationResult, error) {
	if err := money.Validate(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmount(err.Error())
	}
	amount := money.Normalize(req.Amount)

	reference := strings.TrimSpace(req.Reference)
	if reference != "" {
		if len(reference) > maxReferenceLen {
			return nil, apperror.Validation(fmt.Sprintf("reference must be at most %d characters", maxReferenceLen))
		}
		replayed, err := s.replay(ctx, reference, req.WalletID, dir, req.ActingUserID)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			return replayed, nil
		}
	} else {
		reference = domain.NewReference(s.now())
	}

	var entry *domain.Transaction
	m := Mutation{
		Authorize: func(w *domain.Wallet) error {
			if dir == domain.DirectionDebit && !w.IsOwnedBy(req.ActingUserID) {
				return apperror.ErrNotFound("wallet")
			}
			return nil
		},
		Apply: func(w *domain.Wallet) (decimal.Decimal, error) {
			if dir == domain.DirectionCredit {
				after := w.Balance.Add(amount)
				if err := money.CheckBalance(after); err != nil {
					return decimal.Zero, apperror.ErrInvalidAmount(err.Error())
				}
				return after, nil
			}
			if !w.CanDebit(amount) {
				return decimal.Zero, apperror.ErrInsufficientFunds(money.Format(w.Balance), money.Format(amount), w.Currency)
			}
			return w.Balance.Sub(amount), nil
		},
		Record: func(ctx context.Context, tx pgx.Tx, before, after *domain.Wallet) error {
			entry = &domain.Transaction{
				ID:            uuid.New(),
				WalletID:      before.ID,
				Direction:     dir,
				Amount:        amount,
				BalanceBefore: before.Balance,
				BalanceAfter:  after.Balance,
				Reference:     reference,
				Description:   req.Description,
				Metadata:      req.Metadata,
				PerformedBy:   req.ActingUserID,
				CreatedAt:     after.UpdatedAt,
			}
			return s.ledger.Append(ctx, tx, entry)
		},
	}

	run := s.controller.Optimistic
	if req.Pessimistic || s.pessimistic {
		run = s.controller.Pessimistic
	}

	wallet, err := run(ctx, req.WalletID, m)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicateReference) {
			// Lost an insert race against the same reference.
			replayed, rerr := s.replay(ctx, reference, req.WalletID, dir, req.ActingUserID)
			if rerr != nil {
				return nil, rerr
			}
			if replayed != nil {
				return replayed, nil
			}
		}
		return nil, toAppError(err)
	}

	s.cacheEntry(ctx, entry)
	s.audit.Log(ctx, domain.NewWalletAudit(req.ActingUserID, wallet.ID, domain.AuditActionUpdate, balanceChanges(entry, wallet)))

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("direction", string(dir)).
		Str("amount", money.Format(amount)).
		Str("reference", reference).
		Int64("version", wallet.Version).
		Msg("wallet balance updated")

	return &ports.MutationResult{Wallet: wallet, Entry: entry}, nil
}

// Delete soft-deletes a wallet owned by the acting user.
func (s *WalletServiceImpl) Delete(ctx context.Context, walletID, actingUserID uuid.UUID) error {
	wallet, err := s.Get(ctx, walletID, actingUserID)
	if err != nil {
		return err
	}
	if !wallet.IsActive() {
		return apperror.ErrInvalidState("wallet is already deleted")
	}

	if err := s.walletRepo.SoftDelete(ctx, walletID, actingUserID); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return apperror.ErrInvalidState("wallet is already deleted")
		}
		return apperror.InternalError(fmt.Errorf("delete wallet: %w", err))
	}

	s.audit.Log(ctx, domain.NewWalletAudit(actingUserID, walletID, domain.AuditActionDelete, map[string]any{
		"balance": money.Format(wallet.Balance),
		"version": wallet.Version,
	}))

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("owner_id", actingUserID.String()).
		Msg("wallet deleted")

	return nil
}

// ListTransactions returns a page of the wallet's ledger.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, walletID, actingUserID uuid.UUID, filter ports.LedgerFilter) (*ports.LedgerPage, error) {
	if _, err := s.Get(ctx, walletID, actingUserID); err != nil {
		return nil, err
	}
	return s.ledger.ListForWallet(ctx, walletID, filter)
}

// Summary aggregates the wallet's ledger.
func (s *WalletServiceImpl) Summary(ctx context.Context, walletID, actingUserID uuid.UUID) (*domain.LedgerSummary, error) {
	if _, err := s.Get(ctx, walletID, actingUserID); err != nil {
		return nil, err
	}
	return s.ledger.Summarize(ctx, walletID)
}

// replay looks up an already-applied reference. It returns nil, nil when the
// reference is unused and DuplicateReference when it belongs to another operation.
func (s *WalletServiceImpl) replay(ctx context.Context, reference string, walletID uuid.UUID, dir domain.Direction, actingUserID uuid.UUID) (*ports.MutationResult, error) {
	entry, err := s.lookupEntry(ctx, reference)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	if entry.WalletID != walletID || entry.Direction != dir {
		return nil, apperror.ErrDuplicateReference(reference)
	}

	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if dir == domain.DirectionDebit && !wallet.IsOwnedBy(actingUserID) {
		return nil, apperror.ErrNotFound("wallet")
	}

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("reference", reference).
		Msg("reference already applied, returning prior result")

	return &ports.MutationResult{Wallet: wallet, Entry: entry, Replayed: true}, nil
}

// cachedEntry consults the reference cache. Cache failures fall through to the ledger.
func (s *WalletServiceImpl) cachedEntry(ctx context.Context, reference string) *domain.Transaction {
	if s.refCache == nil {
		return nil
	}
	cached, err := s.refCache.Get(ctx, reference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("redis reference check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	var entry domain.Transaction
	if err := json.Unmarshal(cached, &entry); err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("discarding unreadable cached reference")
		return nil
	}
	return &entry
}

// cacheEntry stores a committed entry for fast replays (best-effort).
func (s *WalletServiceImpl) cacheEntry(ctx context.Context, entry *domain.Transaction) {
	if s.refCache == nil || entry == nil {
		return
	}
	body, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", entry.Reference).Msg("failed to encode reference for cache")
		return
	}
	if err := s.refCache.Set(ctx, entry.Reference, body, s.referenceTTL); err != nil {
		s.log.Warn().Err(err).Str("reference", entry.Reference).Msg("failed to cache reference in redis")
	}
}

// balanceChanges is the audit payload for one applied entry.
func balanceChanges(entry *domain.Transaction, after *domain.Wallet) map[string]any {
	return map[string]any{
		"direction":      string(entry.Direction),
		"amount":         money.Format(entry.Amount),
		"reference":      entry.Reference,
		"balance_before": money.Format(entry.BalanceBefore),
		"balance_after":  money.Format(entry.BalanceAfter),
		"version_before": after.Version - 1,
		"version_after":  after.Version,
	}
}

// toAppError passes typed failures through and hides everything else behind SYS_001.
func toAppError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.InternalError(err)
}
