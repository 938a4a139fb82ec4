package handler

import (
	"context"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req dto.CreateWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.Create(c.Request.Context(), ports.CreateWalletRequest{
		OwnerID:  userID,
		Name:     req.Name,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var q dto.ListWalletsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallets, err := h.walletSvc.ListByOwner(c.Request.Context(), userID, q.IncludeDeleted)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, toWalletResponse(&wallets[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	walletID, ok := walletIDParam(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.Get(c.Request.Context(), walletID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// Delete handles DELETE /api/v1/wallets/:id.
func (h *WalletHandler) Delete(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	walletID, ok := walletIDParam(c)
	if !ok {
		return
	}

	if err := h.walletSvc.Delete(c.Request.Context(), walletID, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Fund handles POST /api/v1/wallets/:id/fund.
func (h *WalletHandler) Fund(c *gin.Context) {
	h.mutate(c, h.walletSvc.Fund)
}

// Withdraw handles POST /api/v1/wallets/:id/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	h.mutate(c, h.walletSvc.Withdraw)
}

type mutationFunc func(ctx context.Context, req ports.MutationRequest) (*ports.MutationResult, error)

// mutate answers 201 for a newly applied reference and 200 for a replay.
func (h *WalletHandler) mutate(c *gin.Context, run mutationFunc) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	walletID, ok := walletIDParam(c)
	if !ok {
		return
	}

	var req dto.MutationRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	result, err := run(c.Request.Context(), ports.MutationRequest{
		WalletID:     walletID,
		Amount:       amount,
		Reference:    req.Reference,
		Description:  req.Description,
		Metadata:     req.Metadata,
		ActingUserID: userID,
		Pessimistic:  req.Pessimistic,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		response.OK(c, toMutationResponse(result, userID))
		return
	}
	response.Created(c, toMutationResponse(result, userID))
}

// ListTransactions handles GET /api/v1/wallets/:id/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	walletID, ok := walletIDParam(c)
	if !ok {
		return
	}

	var q dto.ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	page, err := h.walletSvc.ListTransactions(c.Request.Context(), walletID, userID, ledgerFilter(q))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionListResponse(page))
}

// Summary handles GET /api/v1/wallets/:id/summary.
func (h *WalletHandler) Summary(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	walletID, ok := walletIDParam(c)
	if !ok {
		return
	}

	summary, err := h.walletSvc.Summary(c.Request.Context(), walletID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toSummaryResponse(summary))
}
