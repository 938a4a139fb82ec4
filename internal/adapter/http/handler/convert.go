package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/money"

	"github.com/google/uuid"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	resp := dto.WalletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID.String(),
		Name:      w.Name,
		Currency:  w.Currency,
		Balance:   money.Format(w.Balance),
		Version:   w.Version,
		State:     string(w.State()),
		CreatedAt: formatTime(w.CreatedAt),
		UpdatedAt: formatTime(w.UpdatedAt),
	}
	if w.DeletedAt != nil {
		s := formatTime(*w.DeletedAt)
		resp.DeletedAt = &s
	}
	return resp
}

func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:            tx.ID.String(),
		WalletID:      tx.WalletID.String(),
		Direction:     string(tx.Direction),
		Amount:        money.Format(tx.Amount),
		BalanceBefore: money.Format(tx.BalanceBefore),
		BalanceAfter:  money.Format(tx.BalanceAfter),
		Reference:     tx.Reference,
		Description:   tx.Description,
		Metadata:      tx.Metadata,
		PerformedBy:   tx.PerformedBy.String(),
		CreatedAt:     formatTime(tx.CreatedAt),
	}
}

// toMutationResponse shows the wallet and its balances only to the owner.
func toMutationResponse(r *ports.MutationResult, viewer uuid.UUID) dto.MutationResponse {
	resp := dto.MutationResponse{
		Entry:    toTransactionResponse(r.Entry),
		Replayed: r.Replayed,
	}
	if r.Wallet.IsOwnedBy(viewer) {
		w := toWalletResponse(r.Wallet)
		resp.Wallet = &w
	} else {
		redactBalances(&resp.Entry)
	}
	return resp
}

func toTransferResponse(r *ports.TransferResult, viewer uuid.UUID) dto.TransferResponse {
	resp := dto.TransferResponse{
		From:        toWalletResponse(r.From),
		DebitEntry:  toTransactionResponse(r.DebitEntry),
		CreditEntry: toTransactionResponse(r.CreditEntry),
		Replayed:    r.Replayed,
	}
	if r.To.IsOwnedBy(viewer) {
		to := toWalletResponse(r.To)
		resp.To = &to
	} else {
		redactBalances(&resp.CreditEntry)
	}
	return resp
}

func redactBalances(e *dto.TransactionResponse) {
	e.BalanceBefore = ""
	e.BalanceAfter = ""
}

func toTransactionListResponse(page *ports.LedgerPage) dto.TransactionListResponse {
	items := make([]dto.TransactionResponse, 0, len(page.Entries))
	for i := range page.Entries {
		items = append(items, toTransactionResponse(&page.Entries[i]))
	}
	return dto.TransactionListResponse{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}

func toSummaryResponse(s *domain.LedgerSummary) dto.SummaryResponse {
	return dto.SummaryResponse{
		WalletID:      s.WalletID.String(),
		TotalCredited: money.Format(s.TotalCredited),
		TotalDebited:  money.Format(s.TotalDebited),
		Net:           money.Format(s.Net()),
		EntryCount:    s.EntryCount,
	}
}
