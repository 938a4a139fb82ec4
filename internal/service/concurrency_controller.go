package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RetryPolicy bounds the optimistic retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns 3 attempts with 5ms base backoff capped at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 200 * time.Millisecond}
}

// RetryPolicyFromConfig builds a policy from the ledger section of the config.
func RetryPolicyFromConfig(cfg config.LedgerConfig) RetryPolicy {
	p := RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseBackoff, MaxDelay: cfg.MaxBackoff}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return p
}

// Delay is the backoff before retry number n (0-based): min(BaseDelay*2^n, MaxDelay).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < n; i++ {
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Mutation is one balance change run inside the controller's atomic unit.
type Mutation struct {
	// Authorize, when set, vets the caller before the wallet's state is revealed.
	Authorize func(w *domain.Wallet) error
	// Apply runs the business checks against the freshly read wallet and returns the new balance.
	Apply func(w *domain.Wallet) (decimal.Decimal, error)
	// Record appends the ledger entry for the change inside tx.
	Record func(ctx context.Context, tx pgx.Tx, before, after *domain.Wallet) error
}

// LockedFunc runs with every requested wallet row locked. Wallets that do not
// exist are absent from the map.
type LockedFunc func(ctx context.Context, tx pgx.Tx, wallets map[uuid.UUID]*domain.Wallet) error

// Controller serializes balance mutations per wallet, either optimistically
// (version predicate + bounded retry) or with row locks.
type Controller struct {
	wallets    ports.WalletRepository
	transactor ports.DBTransactor
	policy     RetryPolicy
	log        zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// NewController creates a concurrency controller.
func NewController(wallets ports.WalletRepository, transactor ports.DBTransactor, policy RetryPolicy, log zerolog.Logger) *Controller {
	return &Controller{
		wallets:    wallets,
		transactor: transactor,
		policy:     policy,
		log:        log,
		sleep:      sleepCtx,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Optimistic reads the wallet without a lock, applies m and writes back with a
// version predicate. A lost race aborts the attempt and retries with backoff.
func (c *Controller) Optimistic(ctx context.Context, walletID uuid.UUID, m Mutation) (*domain.Wallet, error) {
	var after *domain.Wallet
	err := c.retry(ctx, walletID.String(), func(ctx context.Context) error {
		w, err := c.attempt(ctx, walletID, m, c.wallets.GetInTx)
		if err != nil {
			return err
		}
		after = w
		return nil
	})
	return after, err
}

// Pessimistic locks the wallet row for the duration of one atomic unit. No retry:
// a lock that cannot be obtained surfaces as HighContention.
func (c *Controller) Pessimistic(ctx context.Context, walletID uuid.UUID, m Mutation) (*domain.Wallet, error) {
	w, err := c.attempt(ctx, walletID, m, c.wallets.GetByIDForUpdate)
	if err != nil {
		if isRetryable(err) {
			return nil, apperror.ErrHighContention(1, err)
		}
		return nil, err
	}
	return w, nil
}

// WithLockedWallets locks ids in canonical order inside one atomic unit, runs fn
// and commits. Transient lock failures are retried under the same policy.
func (c *Controller) WithLockedWallets(ctx context.Context, ids []uuid.UUID, fn LockedFunc) error {
	ordered := canonicalOrder(ids)
	if len(ordered) == 0 {
		return apperror.Validation("no wallets to lock")
	}
	return c.retry(ctx, ordered[0].String(), func(ctx context.Context) error {
		tx, err := c.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		wallets := make(map[uuid.UUID]*domain.Wallet, len(ordered))
		for _, id := range ordered {
			w, err := c.wallets.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("lock wallet %s: %w", id, err)
			}
			if w != nil {
				wallets[id] = w
			}
		}

		if err := fn(ctx, tx, wallets); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

type walletLoader func(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)

// attempt is steps 1-6 of one guarded update.
func (c *Controller) attempt(ctx context.Context, walletID uuid.UUID, m Mutation, load walletLoader) (*domain.Wallet, error) {
	tx, err := c.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	before, err := load(ctx, tx, walletID)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	if before == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if m.Authorize != nil {
		if err := m.Authorize(before); err != nil {
			return nil, err
		}
	}
	if !before.IsActive() {
		return nil, apperror.ErrInvalidState("wallet is deleted")
	}

	newBalance, err := m.Apply(before)
	if err != nil {
		return nil, err
	}

	if err := c.wallets.UpdateBalance(ctx, tx, walletID, newBalance, before.Version); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, apperror.ErrConcurrentModification(err)
		}
		return nil, err
	}
	after := before.Applied(newBalance, c.now())

	if err := m.Record(ctx, tx, before, after); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return after, nil
}

// retry runs fn up to MaxAttempts times while it fails with a retryable error.
func (c *Controller) retry(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.policy.Delay(attempt - 1)
			c.log.Debug().
				Str("wallet_id", key).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Err(lastErr).
				Msg("retrying wallet mutation")
			if err := c.sleep(ctx, delay); err != nil {
				// The caller went away mid-backoff; the mutation was not applied.
				return apperror.ErrHighContention(attempt, fmt.Errorf("retry wait: %w", err))
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	c.log.Warn().
		Str("wallet_id", key).
		Int("attempts", c.policy.MaxAttempts).
		Err(lastErr).
		Msg("wallet mutation gave up under contention")
	return apperror.ErrHighContention(c.policy.MaxAttempts, lastErr)
}

// isRetryable reports a lost version race or a transient lock failure.
func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrVersionConflict) ||
		errors.Is(err, domain.ErrTransient) ||
		apperror.HasCode(err, apperror.CodeConcurrentModification)
}

// canonicalOrder returns the distinct ids sorted by their byte representation.
func canonicalOrder(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
