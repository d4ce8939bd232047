package transactions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/handlers/respond"
	"github.com/chris/referral-commission-ledger/pkg/mapping"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// Feed reads ledger rows.
type Feed interface {
	Transaction(ctx context.Context, txID string) (*models.Transaction, error)
	Transactions(ctx context.Context, filter storage.TransactionFilter) (*storage.TransactionPage, error)
}

// TransactionsHandler holds the dependencies for transaction-related handlers.
type TransactionsHandler struct {
	Feed   Feed
	Logger *slog.Logger
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(feed Feed, logger *slog.Logger) *TransactionsHandler {
	return &TransactionsHandler{Feed: feed, Logger: logger}
}

// GetTransaction handles the logic for retrieving a single transaction.
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, transactionId string) {
	tx, err := h.Feed.Transaction(r.Context(), transactionId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiTransaction(tx))
}

// ListAccountTransactions returns the member's feed, newest first.
func (h *TransactionsHandler) ListAccountTransactions(w http.ResponseWriter, r *http.Request, accountId string, params api.ListTransactionsParams) {
	h.list(w, r, mapping.ToDomainTransactionFilter(accountId, params))
}

// ListAllTransactions returns the platform-wide feed, newest first.
func (h *TransactionsHandler) ListAllTransactions(w http.ResponseWriter, r *http.Request, params api.ListTransactionsParams) {
	h.list(w, r, mapping.ToDomainTransactionFilter("", params))
}

func (h *TransactionsHandler) list(w http.ResponseWriter, r *http.Request, filter storage.TransactionFilter) {
	page, err := h.Feed.Transactions(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiTransactionPage(page))
}
