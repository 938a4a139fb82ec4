package dto

import "time"

// CreateWalletRequest is the request body for wallet creation.
type CreateWalletRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Currency string `json:"currency" binding:"required,currency"`
}

// MutationRequest is the request body for fund and withdraw.
// Amount is a decimal string with at most 4 fractional digits.
type MutationRequest struct {
	Amount      string         `json:"amount" binding:"required,amount"`
	Reference   string         `json:"reference,omitempty" binding:"omitempty,max=100,reference"`
	Description *string        `json:"description,omitempty" binding:"omitempty,max=255"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Pessimistic bool           `json:"pessimistic,omitempty"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	FromWalletID string  `json:"from_wallet_id" binding:"required,uuid"`
	ToWalletID   string  `json:"to_wallet_id" binding:"required,uuid,nefield=FromWalletID"`
	Amount       string  `json:"amount" binding:"required,amount"`
	Reference    string  `json:"reference,omitempty" binding:"omitempty,max=96,reference"`
	Description  *string `json:"description,omitempty" binding:"omitempty,max=255"`
}

// ListWalletsQuery holds the query string for GET /wallets.
type ListWalletsQuery struct {
	IncludeDeleted bool `form:"include_deleted"`
}

// ListTransactionsQuery holds filter and pagination for a wallet's ledger.
type ListTransactionsQuery struct {
	Direction string     `form:"direction" binding:"omitempty,oneof=CREDIT DEBIT"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit     int        `form:"limit" binding:"omitempty,min=1"`
	Offset    int        `form:"offset" binding:"omitempty,min=0"`
}

// WalletResponse is the response body for a wallet.
type WalletResponse struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	Name      string  `json:"name"`
	Currency  string  `json:"currency"`
	Balance   string  `json:"balance"`
	Version   int64   `json:"version"`
	State     string  `json:"state"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

// TransactionResponse is the response body for a ledger entry.
type TransactionResponse struct {
	ID            string         `json:"id"`
	WalletID      string         `json:"wallet_id"`
	Direction     string         `json:"direction"`
	Amount        string         `json:"amount"`
	BalanceBefore string         `json:"balance_before,omitempty"`
	BalanceAfter  string         `json:"balance_after,omitempty"`
	Reference     string         `json:"reference"`
	Description   *string        `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	PerformedBy   string         `json:"performed_by"`
	CreatedAt     string         `json:"created_at"`
}

// MutationResponse is the response body for fund and withdraw. Wallet is
// omitted, and the entry's balances blanked, when the caller does not own it.
type MutationResponse struct {
	Wallet   *WalletResponse     `json:"wallet,omitempty"`
	Entry    TransactionResponse `json:"entry"`
	Replayed bool                `json:"replayed"`
}

// TransferResponse is the response body for a transfer. To is omitted when
// the destination belongs to another user.
type TransferResponse struct {
	From        WalletResponse      `json:"from"`
	To          *WalletResponse     `json:"to,omitempty"`
	DebitEntry  TransactionResponse `json:"debit_entry"`
	CreditEntry TransactionResponse `json:"credit_entry"`
	Replayed    bool                `json:"replayed"`
}

// TransactionListResponse wraps a page of ledger entries.
type TransactionListResponse struct {
	Items  []TransactionResponse `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// SummaryResponse is the aggregate view of a wallet's ledger.
type SummaryResponse struct {
	WalletID      string `json:"wallet_id"`
	TotalCredited string `json:"total_credited"`
	TotalDebited  string `json:"total_debited"`
	Net           string `json:"net"`
	EntryCount    int64  `json:"entry_count"`
}
