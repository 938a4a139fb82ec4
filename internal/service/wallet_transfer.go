package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Transfer moves funds between two wallets of the same currency. Both legs
// commit together or not at all.
func (s *WalletServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if err := money.Validate(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmount(err.Error())
	}
	amount := money.Normalize(req.Amount)

	if req.FromWalletID == req.ToWalletID {
		return nil, apperror.Validation("cannot transfer to the same wallet")
	}

	base := strings.TrimSpace(req.Reference)
	if base != "" {
		if len(base)+len(domain.TransferOutSuffix) > maxReferenceLen {
			return nil, apperror.Validation(fmt.Sprintf("reference must be at most %d characters", maxReferenceLen-len(domain.TransferOutSuffix)))
		}
		replayed, err := s.replayTransfer(ctx, base, req)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			return replayed, nil
		}
	} else {
		base = domain.NewReference(s.now())
	}
	outRef, inRef := domain.TransferReferences(base)

	var result *ports.TransferResult
	err := s.controller.WithLockedWallets(ctx, []uuid.UUID{req.FromWalletID, req.ToWalletID},
		func(ctx context.Context, tx pgx.Tx, wallets map[uuid.UUID]*domain.Wallet) error {
			from, to := wallets[req.FromWalletID], wallets[req.ToWalletID]
			if from == nil || !from.IsOwnedBy(req.ActingUserID) {
				return apperror.ErrNotFound("source wallet")
			}
			if to == nil {
				return apperror.ErrNotFound("destination wallet")
			}
			if !from.IsActive() {
				return apperror.ErrInvalidState("source wallet is deleted")
			}
			if !to.IsActive() {
				return apperror.ErrInvalidState("destination wallet is deleted")
			}
			if from.Currency != to.Currency {
				return apperror.ErrCurrencyMismatch(from.Currency, to.Currency)
			}
			if !from.CanDebit(amount) {
				return apperror.ErrInsufficientFunds(money.Format(from.Balance), money.Format(amount), from.Currency)
			}
			if err := money.CheckBalance(to.Balance.Add(amount)); err != nil {
				return apperror.ErrInvalidAmount(err.Error())
			}

			now := s.now()
			fromAfter := from.Applied(from.Balance.Sub(amount), now)
			toAfter := to.Applied(to.Balance.Add(amount), now)

			if err := s.updateLocked(ctx, tx, from, fromAfter); err != nil {
				return err
			}
			if err := s.updateLocked(ctx, tx, to, toAfter); err != nil {
				return err
			}

			debit := transferLeg(req, amount, from, fromAfter, to.ID, domain.DirectionDebit, outRef, base)
			credit := transferLeg(req, amount, to, toAfter, from.ID, domain.DirectionCredit, inRef, base)
			if err := s.ledger.Append(ctx, tx, debit); err != nil {
				return err
			}
			if err := s.ledger.Append(ctx, tx, credit); err != nil {
				return err
			}

			result = &ports.TransferResult{From: fromAfter, To: toAfter, DebitEntry: debit, CreditEntry: credit}
			return nil
		})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicateReference) {
			replayed, rerr := s.replayTransfer(ctx, base, req)
			if rerr != nil {
				return nil, rerr
			}
			if replayed != nil {
				return replayed, nil
			}
		}
		return nil, toAppError(err)
	}

	s.cacheEntry(ctx, result.DebitEntry)
	s.cacheEntry(ctx, result.CreditEntry)
	s.audit.Log(ctx, domain.NewWalletAudit(req.ActingUserID, result.From.ID, domain.AuditActionUpdate, balanceChanges(result.DebitEntry, result.From)))
	s.audit.Log(ctx, domain.NewWalletAudit(req.ActingUserID, result.To.ID, domain.AuditActionUpdate, balanceChanges(result.CreditEntry, result.To)))

	s.log.Info().
		Str("from_wallet_id", result.From.ID.String()).
		Str("to_wallet_id", result.To.ID.String()).
		Str("amount", money.Format(amount)).
		Str("reference", base).
		Msg("transfer completed")

	return result, nil
}

// updateLocked writes a balance on a row the caller already holds locked.
func (s *WalletServiceImpl) updateLocked(ctx context.Context, tx pgx.Tx, before, after *domain.Wallet) error {
	err := s.walletRepo.UpdateBalance(ctx, tx, before.ID, after.Balance, before.Version)
	if err != nil && errors.Is(err, domain.ErrVersionConflict) {
		return apperror.ErrConcurrentModification(err)
	}
	return err
}

func transferLeg(
	req ports.TransferRequest,
	amount decimal.Decimal,
	before, after *domain.Wallet,
	counterpart uuid.UUID,
	dir domain.Direction,
	reference, base string,
) *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      before.ID,
		Direction:     dir,
		Amount:        amount,
		BalanceBefore: before.Balance,
		BalanceAfter:  after.Balance,
		Reference:     reference,
		Description:   req.Description,
		Metadata: map[string]any{
			domain.MetaCounterpartWalletID: counterpart.String(),
			domain.MetaTransferReference:   base,
		},
		PerformedBy: req.ActingUserID,
		CreatedAt:   after.UpdatedAt,
	}
}

// replayTransfer returns the prior result for an already-applied transfer
// reference, nil, nil if it is unused, or DuplicateReference on a mismatch.
func (s *WalletServiceImpl) replayTransfer(ctx context.Context, base string, req ports.TransferRequest) (*ports.TransferResult, error) {
	outRef, inRef := domain.TransferReferences(base)

	debit, err := s.lookupEntry(ctx, outRef)
	if err != nil {
		return nil, err
	}
	if debit == nil {
		return nil, nil
	}
	if debit.WalletID != req.FromWalletID || debit.Direction != domain.DirectionDebit ||
		debit.Metadata[domain.MetaCounterpartWalletID] != req.ToWalletID.String() {
		return nil, apperror.ErrDuplicateReference(base)
	}
	credit, err := s.lookupEntry(ctx, inRef)
	if err != nil {
		return nil, err
	}
	if credit == nil {
		return nil, apperror.InternalError(fmt.Errorf("transfer %s has no credit leg", base))
	}

	from, err := s.Get(ctx, req.FromWalletID, req.ActingUserID)
	if err != nil {
		return nil, err
	}
	to, err := s.walletRepo.GetByID(ctx, req.ToWalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if to == nil {
		return nil, apperror.ErrNotFound("destination wallet")
	}

	s.log.Info().Str("reference", base).Msg("transfer already applied, returning prior result")

	return &ports.TransferResult{From: from, To: to, DebitEntry: debit, CreditEntry: credit, Replayed: true}, nil
}

func (s *WalletServiceImpl) lookupEntry(ctx context.Context, reference string) (*domain.Transaction, error) {
	if entry := s.cachedEntry(ctx, reference); entry != nil {
		return entry, nil
	}
	return s.ledger.GetByReference(ctx, reference)
}
