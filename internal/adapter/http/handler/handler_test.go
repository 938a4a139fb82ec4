package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testToken = "good_token"

type handlerTestDeps struct {
	router    *gin.Engine
	walletSvc *mocks.MockWalletService
	userID    uuid.UUID
}

func setupRouter(t *testing.T, checkers ...ports.HealthChecker) *handlerTestDeps {
	ctrl := gomock.NewController(t)
	walletSvc := mocks.NewMockWalletService(ctrl)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	userID := uuid.New()

	tokenSvc.EXPECT().Validate(testToken).Return(&ports.TokenClaims{UserID: userID}, nil).AnyTimes()
	tokenSvc.EXPECT().Validate(gomock.Not(testToken)).Return(nil, errors.New("bad token")).AnyTimes()

	r := SetupRouter(RouterDeps{
		WalletSvc:      walletSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: checkers,
		Logger:         zerolog.Nop(),
	})
	return &handlerTestDeps{router: r, walletSvc: walletSvc, userID: userID}
}

func (d *handlerTestDeps) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sampleWallet(owner uuid.UUID, balance string, version int64) *domain.Wallet {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   owner,
		Name:      "Main",
		Currency:  "USD",
		Balance:   decimal.RequireFromString(balance),
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleEntry(walletID uuid.UUID, dir domain.Direction, amount, before, after string) *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		Direction:     dir,
		Amount:        decimal.RequireFromString(amount),
		BalanceBefore: decimal.RequireFromString(before),
		BalanceAfter:  decimal.RequireFromString(after),
		Reference:     "REF-1",
		CreatedAt:     time.Now(),
	}
}

// --- Auth ---

func TestRoutes_RequireBearerToken(t *testing.T) {
	d := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets", nil)
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/wallets", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w = httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeInvalidToken, decodeError(t, w)["error_code"])
}

func TestActingUser_MissingInContext(t *testing.T) {
	h := NewWalletHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.List(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Wallets ---

func TestCreateWallet_Success(t *testing.T) {
	d := setupRouter(t)
	w0 := sampleWallet(d.userID, "0", 0)

	d.walletSvc.EXPECT().Create(gomock.Any(), ports.CreateWalletRequest{
		OwnerID: d.userID, Name: "Main", Currency: "usd",
	}).Return(w0, nil)

	w := d.do(http.MethodPost, "/api/v1/wallets", map[string]any{"name": "  Main ", "currency": "usd"})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, w0.ID.String(), data["id"])
	assert.Equal(t, "0.0000", data["balance"])
	assert.EqualValues(t, 0, data["version"])
	assert.Equal(t, "ACTIVE", data["state"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCreateWallet_ValidationErrors(t *testing.T) {
	d := setupRouter(t)

	for name, tc := range map[string]struct {
		body any
		code string
	}{
		"missing name":     {map[string]any{"currency": "USD"}, apperror.CodeValidation},
		"unknown currency": {map[string]any{"name": "Main", "currency": "XYZ"}, apperror.CodeInvalidCurrency},
		"malformed json":   {"not-an-object", apperror.CodeValidation},
	} {
		t.Run(name, func(t *testing.T) {
			w := d.do(http.MethodPost, "/api/v1/wallets", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w)["error_code"])
		})
	}
}

func TestCreateWallet_AlreadyExists(t *testing.T) {
	d := setupRouter(t)

	d.walletSvc.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrAlreadyExists("wallet").WithDetails(map[string]any{"currency": "USD"}))

	w := d.do(http.MethodPost, "/api/v1/wallets", map[string]any{"name": "Main", "currency": "USD"})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, apperror.CodeAlreadyExists, resp["error_code"])
	assert.Equal(t, "USD", resp["details"].(map[string]any)["currency"])
}

func TestListWallets(t *testing.T) {
	d := setupRouter(t)
	deleted := sampleWallet(d.userID, "0", 3)
	at := time.Now()
	deleted.DeletedAt = &at

	d.walletSvc.EXPECT().ListByOwner(gomock.Any(), d.userID, true).
		Return([]domain.Wallet{*sampleWallet(d.userID, "5", 1), *deleted}, nil)

	w := d.do(http.MethodGet, "/api/v1/wallets?include_deleted=true", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "DELETED", resp.Data[1]["state"])
	assert.NotEmpty(t, resp.Data[1]["deleted_at"])
}

func TestGetWallet(t *testing.T) {
	d := setupRouter(t)
	wlt := sampleWallet(d.userID, "900.5", 2)

	d.walletSvc.EXPECT().Get(gomock.Any(), wlt.ID, d.userID).Return(wlt, nil)

	w := d.do(http.MethodGet, "/api/v1/wallets/"+wlt.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "900.5000", decodeData(t, w)["balance"])
}

func TestGetWallet_InvalidID(t *testing.T) {
	d := setupRouter(t)

	w := d.do(http.MethodGet, "/api/v1/wallets/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetWallet_NotFound(t *testing.T) {
	d := setupRouter(t)
	id := uuid.New()

	d.walletSvc.EXPECT().Get(gomock.Any(), id, d.userID).Return(nil, apperror.ErrNotFound("wallet"))

	w := d.do(http.MethodGet, "/api/v1/wallets/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decodeError(t, w)["error_code"])
}

func TestDeleteWallet(t *testing.T) {
	d := setupRouter(t)
	id := uuid.New()

	d.walletSvc.EXPECT().Delete(gomock.Any(), id, d.userID).Return(nil)

	w := d.do(http.MethodDelete, "/api/v1/wallets/"+id.String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

// --- Fund / Withdraw ---

func TestFund_NewAndReplayed(t *testing.T) {
	d := setupRouter(t)
	wlt := sampleWallet(d.userID, "1000.5", 1)
	entry := sampleEntry(wlt.ID, domain.DirectionCredit, "1000.5", "0", "1000.5")
	desc := "salary & bonus"

	var captured ports.MutationRequest
	d.walletSvc.EXPECT().Fund(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.MutationRequest) (*ports.MutationResult, error) {
			captured = req
			return &ports.MutationResult{Wallet: wlt, Entry: entry}, nil
		})

	w := d.do(http.MethodPost, "/api/v1/wallets/"+wlt.ID.String()+"/fund", map[string]any{
		"amount":      "1000.50",
		"reference":   "REF-1",
		"description": desc,
		"metadata":    map[string]any{"source": "payroll"},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, wlt.ID, captured.WalletID)
	assert.Equal(t, d.userID, captured.ActingUserID)
	assert.True(t, captured.Amount.Equal(decimal.RequireFromString("1000.5")))
	assert.Equal(t, "REF-1", captured.Reference)
	assert.Equal(t, desc, *captured.Description)
	assert.Equal(t, "payroll", captured.Metadata["source"])

	data := decodeData(t, w)
	assert.Equal(t, false, data["replayed"])
	entryData := data["entry"].(map[string]any)
	assert.Equal(t, "CREDIT", entryData["direction"])
	assert.Equal(t, "0.0000", entryData["balance_before"])
	assert.Equal(t, "1000.5000", entryData["balance_after"])
	assert.Equal(t, "1000.5000", data["wallet"].(map[string]any)["balance"])

	d.walletSvc.EXPECT().Fund(gomock.Any(), gomock.Any()).
		Return(&ports.MutationResult{Wallet: wlt, Entry: entry, Replayed: true}, nil)

	w = d.do(http.MethodPost, "/api/v1/wallets/"+wlt.ID.String()+"/fund", map[string]any{
		"amount": "1000.50", "reference": "REF-1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["replayed"])
}

func TestFund_OtherUsersWalletHidesBalances(t *testing.T) {
	d := setupRouter(t)
	wlt := sampleWallet(uuid.New(), "1010", 3)
	entry := sampleEntry(wlt.ID, domain.DirectionCredit, "10", "1000", "1010")

	d.walletSvc.EXPECT().Fund(gomock.Any(), gomock.Any()).
		Return(&ports.MutationResult{Wallet: wlt, Entry: entry}, nil)

	w := d.do(http.MethodPost, "/api/v1/wallets/"+wlt.ID.String()+"/fund", map[string]any{"amount": "10"})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.NotContains(t, data, "wallet")
	entryData := data["entry"].(map[string]any)
	assert.Equal(t, "10.0000", entryData["amount"])
	assert.NotContains(t, entryData, "balance_before")
	assert.NotContains(t, entryData, "balance_after")
	assert.NotContains(t, w.Body.String(), wlt.OwnerID.String())
}

func TestFund_InvalidBodies(t *testing.T) {
	d := setupRouter(t)
	path := "/api/v1/wallets/" + uuid.NewString() + "/fund"

	for name, tc := range map[string]struct {
		body map[string]any
		code string
	}{
		"missing amount":     {map[string]any{}, apperror.CodeValidation},
		"zero amount":        {map[string]any{"amount": "0"}, apperror.CodeInvalidAmount},
		"negative amount":    {map[string]any{"amount": "-10"}, apperror.CodeInvalidAmount},
		"too precise":        {map[string]any{"amount": "1.00001"}, apperror.CodeInvalidAmount},
		"not a number":       {map[string]any{"amount": "abc"}, apperror.CodeInvalidAmount},
		"numeric amount":     {map[string]any{"amount": 10}, apperror.CodeValidation},
		"reference spaces":   {map[string]any{"amount": "1", "reference": "my ref"}, apperror.CodeValidation},
		"description length": {map[string]any{"amount": "1", "description": string(make([]byte, 256))}, apperror.CodeValidation},
	} {
		t.Run(name, func(t *testing.T) {
			w := d.do(http.MethodPost, path, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w)["error_code"])
		})
	}
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	d := setupRouter(t)
	id := uuid.New()

	d.walletSvc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInsufficientFunds("900.5000", "1000.0000", "USD"))

	w := d.do(http.MethodPost, "/api/v1/wallets/"+id.String()+"/withdraw", map[string]any{"amount": "1000.00"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, apperror.CodeInsufficientFunds, resp["error_code"])
	assert.Equal(t, "900.5000", resp["details"].(map[string]any)["balance"])
}

func TestWithdraw_HighContention(t *testing.T) {
	d := setupRouter(t)
	id := uuid.New()

	d.walletSvc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrHighContention(3, errors.New("version conflict")))

	w := d.do(http.MethodPost, "/api/v1/wallets/"+id.String()+"/withdraw", map[string]any{"amount": "1"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, apperror.CodeHighContention, decodeError(t, w)["error_code"])
}

func TestWithdraw_PessimisticFlagPassedThrough(t *testing.T) {
	d := setupRouter(t)
	wlt := sampleWallet(d.userID, "9", 2)

	d.walletSvc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.MutationRequest) (*ports.MutationResult, error) {
			assert.True(t, req.Pessimistic)
			return &ports.MutationResult{Wallet: wlt, Entry: sampleEntry(wlt.ID, domain.DirectionDebit, "1", "10", "9")}, nil
		})

	w := d.do(http.MethodPost, "/api/v1/wallets/"+wlt.ID.String()+"/withdraw", map[string]any{
		"amount": "1", "pessimistic": true,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

// --- Ledger reads ---

func TestListTransactions_Filters(t *testing.T) {
	d := setupRouter(t)
	id := uuid.New()
	entry := sampleEntry(id, domain.DirectionDebit, "100", "1000.5", "900.5")

	d.walletSvc.EXPECT().ListTransactions(gomock.Any(), id, d.userID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _, _ uuid.UUID, filter ports.LedgerFilter) (*ports.LedgerPage, error) {
			require.NotNil(t, filter.Direction)
			assert.Equal(t, domain.DirectionDebit, *filter.Direction)
			require.NotNil(t, filter.From)
			assert.Equal(t, 2024, filter.From.Year())
			assert.Nil(t, filter.To)
			assert.Equal(t, 10, filter.Limit)
			assert.Equal(t, 20, filter.Offset)
			return &ports.LedgerPage{Entries: []domain.Transaction{*entry}, Total: 21, Limit: 10, Offset: 20}, nil
		})

	w := d.do(http.MethodGet,
		"/api/v1/wallets/"+id.String()+"/transactions?direction=DEBIT&from=2024-01-01T00:00:00Z&limit=10&offset=20", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 21, data["total"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "100.0000", items[0].(map[string]any)["amount"])
}

func TestListTransactions_InvalidQuery(t *testing.T) {
	d := setupRouter(t)
	base := "/api/v1/wallets/" + uuid.NewString() + "/transactions"

	for _, q := range []string{"?direction=HOLD", "?limit=-1", "?from=yesterday"} {
		w := d.do(http.MethodGet, base+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestSummary(t *testing.T) {
	d := setupRouter(t)
	id := uuid.New()

	d.walletSvc.EXPECT().Summary(gomock.Any(), id, d.userID).Return(&domain.LedgerSummary{
		WalletID:      id,
		TotalCredited: decimal.RequireFromString("1000.5"),
		TotalDebited:  decimal.RequireFromString("100"),
		EntryCount:    2,
	}, nil)

	w := d.do(http.MethodGet, "/api/v1/wallets/"+id.String()+"/summary", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "900.5000", data["net"])
	assert.EqualValues(t, 2, data["entry_count"])
}

// --- Transfers ---

func TestTransfer_Success(t *testing.T) {
	d := setupRouter(t)
	from := sampleWallet(d.userID, "750.5", 2)
	to := sampleWallet(d.userID, "2250", 5)

	d.walletSvc.EXPECT().Transfer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
			assert.Equal(t, from.ID, req.FromWalletID)
			assert.Equal(t, to.ID, req.ToWalletID)
			assert.Equal(t, "RENT-1", req.Reference)
			assert.Equal(t, d.userID, req.ActingUserID)
			return &ports.TransferResult{
				From:        from,
				To:          to,
				DebitEntry:  sampleEntry(from.ID, domain.DirectionDebit, "250", "1000.5", "750.5"),
				CreditEntry: sampleEntry(to.ID, domain.DirectionCredit, "250", "2000", "2250"),
			}, nil
		})

	w := d.do(http.MethodPost, "/api/v1/transfers", map[string]any{
		"from_wallet_id": from.ID.String(),
		"to_wallet_id":   to.ID.String(),
		"amount":         "250.00",
		"reference":      "RENT-1",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "750.5000", data["from"].(map[string]any)["balance"])
	assert.Equal(t, "2250.0000", data["to"].(map[string]any)["balance"])
}

func TestTransfer_ForeignDestinationHidden(t *testing.T) {
	d := setupRouter(t)
	from := sampleWallet(d.userID, "750.5", 2)
	to := sampleWallet(uuid.New(), "2250", 5)

	d.walletSvc.EXPECT().Transfer(gomock.Any(), gomock.Any()).
		Return(&ports.TransferResult{
			From:        from,
			To:          to,
			DebitEntry:  sampleEntry(from.ID, domain.DirectionDebit, "250", "1000.5", "750.5"),
			CreditEntry: sampleEntry(to.ID, domain.DirectionCredit, "250", "2000", "2250"),
		}, nil)

	w := d.do(http.MethodPost, "/api/v1/transfers", map[string]any{
		"from_wallet_id": from.ID.String(),
		"to_wallet_id":   to.ID.String(),
		"amount":         "250.00",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "750.5000", data["from"].(map[string]any)["balance"])
	assert.NotContains(t, data, "to")
	assert.Equal(t, "750.5000", data["debit_entry"].(map[string]any)["balance_after"])
	assert.NotContains(t, data["credit_entry"].(map[string]any), "balance_after")
}

func TestTransfer_Rejections(t *testing.T) {
	d := setupRouter(t)
	same := uuid.NewString()

	w := d.do(http.MethodPost, "/api/v1/transfers", map[string]any{
		"from_wallet_id": same, "to_wallet_id": same, "amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = d.do(http.MethodPost, "/api/v1/transfers", map[string]any{
		"from_wallet_id": "abc", "to_wallet_id": uuid.NewString(), "amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d.walletSvc.EXPECT().Transfer(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrCurrencyMismatch("USD", "EUR"))
	w = d.do(http.MethodPost, "/api/v1/transfers", map[string]any{
		"from_wallet_id": uuid.NewString(), "to_wallet_id": uuid.NewString(), "amount": "1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeCurrencyMismatch, decodeError(t, w)["error_code"])
}

// --- Health ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

func TestHealthCheck(t *testing.T) {
	d := setupRouter(t, stubChecker{name: "postgresql"}, stubChecker{name: "redis"})
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	d = setupRouter(t, stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: errors.New("connection refused")})
	w = httptest.NewRecorder()
	d.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
