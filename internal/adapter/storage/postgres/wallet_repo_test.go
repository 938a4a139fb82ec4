package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(ownerID uuid.UUID) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      "Main",
		Currency:  "USD",
		Balance:   decimal.RequireFromString("1000.5000"),
		Version:   3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func walletColumnNames() []string {
	return []string{"id", "owner_id", "name", "currency", "balance", "version", "created_at", "updated_at", "deleted_at"}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletColumnNames()).AddRow(
		w.ID, w.OwnerID, w.Name, w.Currency, w.Balance,
		w.Version, w.CreatedAt, w.UpdatedAt, w.DeletedAt,
	)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.OwnerID, w.Name, w.Currency, w.Balance,
			w.Version, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Create_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.OwnerID, w.Name, w.Currency, w.Balance,
			w.Version, w.CreatedAt, w.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "wallets_owner_name_currency_active"})

	err = repo.Create(context.Background(), w)
	assert.ErrorIs(t, err, domain.ErrWalletExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id").
		WithArgs(w.ID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.True(t, w.Balance.Equal(result.Balance))
	assert.Equal(t, int64(3), result.Version)
	assert.Nil(t, result.DeletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(walletColumnNames()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_ListByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	owner := uuid.New()
	w1, w2 := newTestWallet(owner), newTestWallet(owner)
	w2.Currency = "EUR"

	mock.ExpectQuery(`SELECT .+ FROM wallets WHERE owner_id = \$1 AND deleted_at IS NULL ORDER BY`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows(walletColumnNames()).
			AddRow(w1.ID, w1.OwnerID, w1.Name, w1.Currency, w1.Balance, w1.Version, w1.CreatedAt, w1.UpdatedAt, w1.DeletedAt).
			AddRow(w2.ID, w2.OwnerID, w2.Name, w2.Currency, w2.Balance, w2.Version, w2.CreatedAt, w2.UpdatedAt, w2.DeletedAt))

	wallets, err := repo.ListByOwner(context.Background(), owner, false)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, "EUR", wallets[1].Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_ListByOwner_IncludeDeleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	owner := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM wallets WHERE owner_id = \$1 ORDER BY`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows(walletColumnNames()))

	wallets, err := repo.ListByOwner(context.Background(), owner, true)
	require.NoError(t, err)
	assert.Empty(t, wallets)
	assert.NotNil(t, wallets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetInTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM wallets WHERE id = \$1$`).
		WithArgs(w.ID).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetInTx(context.Background(), tx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.Version, result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id .+ FOR UPDATE").
		WithArgs(w.ID).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByIDForUpdate_Deadlock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id .+ FOR UPDATE").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "40P01"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.GetByIDForUpdate(context.Background(), tx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	newBalance := decimal.RequireFromString("900.5")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE wallets SET balance = \$1, version = version \+ 1, .+ WHERE id = \$2 AND version = \$3 AND deleted_at IS NULL`).
		WithArgs(newBalance, walletID, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, walletID, newBalance, 7)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalance_VersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	newBalance := decimal.RequireFromString("10")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs(newBalance, walletID, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, walletID, newBalance, 2)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalance_SerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "40001"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, uuid.New(), decimal.NewFromInt(1), 0)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_SoftDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE wallets SET deleted_at = NOW\(\)`).
		WithArgs(id, owner).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.SoftDelete(context.Background(), id, owner)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_SoftDelete_AlreadyDeleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE wallets SET deleted_at = NOW\(\)`).
		WithArgs(id, owner).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.SoftDelete(context.Background(), id, owner)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_SoftDelete_DBError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectExec("UPDATE wallets SET deleted_at").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = repo.SoftDelete(context.Background(), uuid.New(), uuid.New())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
