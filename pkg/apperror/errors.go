package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"` // Context to help the caller correct the request
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithDetails attaches caller-facing context and returns the same error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// Error codes.
const (
	CodeNotFound               = "WAL_001"
	CodeInvalidState           = "WAL_002"
	CodeInvalidCurrency        = "WAL_003"
	CodeInvalidAmount          = "WAL_004"
	CodeAlreadyExists          = "WAL_005"
	CodeInsufficientFunds      = "LED_001"
	CodeCurrencyMismatch       = "LED_002"
	CodeConcurrentModification = "LED_003"
	CodeHighContention         = "LED_004"
	CodeDuplicateReference     = "LED_005"
	CodeValidation             = "VAL_001"
	CodeInvalidToken           = "AUTH_001"
	CodeRateLimitExceeded      = "RATE_001"
	CodeInternal               = "SYS_001"
)

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Wallet (WAL) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict)
}

func ErrInvalidCurrency(currency string) *AppError {
	return New(CodeInvalidCurrency, fmt.Sprintf("Unsupported currency code %q", currency), http.StatusBadRequest).
		WithDetails(map[string]any{"currency": currency})
}

func ErrInvalidAmount(reason string) *AppError {
	return New(CodeInvalidAmount, "Invalid amount: "+reason, http.StatusBadRequest)
}

func ErrAlreadyExists(entity string) *AppError {
	return New(CodeAlreadyExists, fmt.Sprintf("%s already exists", entity), http.StatusConflict)
}

// ---- Ledger (LED) ----

func ErrInsufficientFunds(balance, amount, currency string) *AppError {
	return New(CodeInsufficientFunds,
		fmt.Sprintf("Insufficient funds: balance %s %s, requested %s %s", balance, currency, amount, currency),
		http.StatusUnprocessableEntity,
	).WithDetails(map[string]any{
		"balance":  balance,
		"amount":   amount,
		"currency": currency,
	})
}

func ErrCurrencyMismatch(from, to string) *AppError {
	return New(CodeCurrencyMismatch,
		fmt.Sprintf("Currency mismatch: cannot transfer %s to a %s wallet", from, to),
		http.StatusUnprocessableEntity,
	).WithDetails(map[string]any{
		"from_currency": from,
		"to_currency":   to,
	})
}

// ErrConcurrentModification is transient and consumed by the retry loop.
func ErrConcurrentModification(err error) *AppError {
	return Wrap(CodeConcurrentModification, "Wallet was modified concurrently", http.StatusConflict, err)
}

func ErrHighContention(attempts int, err error) *AppError {
	return Wrap(CodeHighContention, "Wallet is busy, please try again", http.StatusServiceUnavailable, err).
		WithDetails(map[string]any{"attempts": attempts})
}

func ErrDuplicateReference(reference string) *AppError {
	return New(CodeDuplicateReference, "Reference already used by another operation", http.StatusConflict).
		WithDetails(map[string]any{"reference": reference})
}

// ---- Authentication & rate limiting ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
