package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles wallet-to-wallet transfers.
type TransferHandler struct {
	walletSvc ports.WalletService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(walletSvc ports.WalletService) *TransferHandler {
	return &TransferHandler{walletSvc: walletSvc}
}

// Create handles POST /api/v1/transfers.
func (h *TransferHandler) Create(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	result, err := h.walletSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		FromWalletID: uuid.MustParse(req.FromWalletID),
		ToWalletID:   uuid.MustParse(req.ToWalletID),
		Amount:       amount,
		Description:  req.Description,
		Reference:    req.Reference,
		ActingUserID: userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		response.OK(c, toTransferResponse(result, userID))
		return
	}
	response.Created(c, toTransferResponse(result, userID))
}
