package handler

import (
	"errors"
	"fmt"
	"net/http"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// actingUser reads the user set by JWTAuth, answering 401 when absent.
func actingUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return userID, true
}

// walletIDParam parses the :id path segment.
func walletIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("wallet id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes and validates the body into req.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, middleware.ErrBodyTooLarge())
			return false
		}
		response.Error(c, bindError(err))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// bindError keeps the ledger's typed failures for currency and amount
// fields; anything else is a plain validation error.
func bindError(err error) *apperror.AppError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			switch fe.Tag() {
			case "currency":
				return apperror.ErrInvalidCurrency(fmt.Sprint(fe.Value()))
			case "amount":
				return apperror.ErrInvalidAmount(fmt.Sprintf("%q must be positive with at most %d decimal places", fe.Value(), money.Scale))
			}
		}
	}
	return apperror.Validation(err.Error())
}

// parseAmount converts a validated amount string.
func parseAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := money.Parse(raw)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount(err.Error()))
		return decimal.Zero, false
	}
	return amount, true
}

func ledgerFilter(q dto.ListTransactionsQuery) ports.LedgerFilter {
	filter := ports.LedgerFilter{From: q.From, To: q.To, Limit: q.Limit, Offset: q.Offset}
	if q.Direction != "" {
		dir := domain.Direction(q.Direction)
		filter.Direction = &dir
	}
	return filter
}
