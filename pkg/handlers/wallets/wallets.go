package wallets

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/handlers/respond"
	"github.com/chris/referral-commission-ledger/pkg/mapping"
	"github.com/chris/referral-commission-ledger/pkg/wallet"
)

// WalletService is the subset of the wallet service the handlers call.
type WalletService interface {
	GetWallet(ctx context.Context, accountID string) (*wallet.WalletView, error)
	InternalTransfer(ctx context.Context, req wallet.InternalTransferRequest) (*wallet.Result, error)
	UserTransfer(ctx context.Context, req wallet.UserTransferRequest) (*wallet.Result, error)
	Withdraw(ctx context.Context, req wallet.WithdrawalRequest) (*wallet.Result, error)
	SettleWithdrawal(ctx context.Context, res wallet.SettlementResult) (*wallet.Result, error)
}

// WalletsHandler holds the dependencies for wallet-related handlers.
type WalletsHandler struct {
	Service WalletService
	Logger  *slog.Logger
}

// NewWalletsHandler creates a new WalletsHandler.
func NewWalletsHandler(service WalletService, logger *slog.Logger) *WalletsHandler {
	return &WalletsHandler{Service: service, Logger: logger}
}

// created picks 201 for a new operation and 200 for a replay.
func created(result *wallet.Result) int {
	if result.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

// GetWallet returns the three balances with recent withdrawals and deposits.
func (h *WalletsHandler) GetWallet(w http.ResponseWriter, r *http.Request, accountId string) {
	view, err := h.Service.GetWallet(r.Context(), accountId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiWalletView(view))
}

// InternalTransfer moves funds between the caller's own earnings and deposit wallets.
func (h *WalletsHandler) InternalTransfer(w http.ResponseWriter, r *http.Request, accountId string) {
	var body api.InternalTransferRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	req, err := mapping.ToDomainInternalTransfer(accountId, &body)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.InternalTransfer(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, created(result), mapping.ToApiOperationResult(result))
}

// UserTransfer moves deposit funds to another member.
func (h *WalletsHandler) UserTransfer(w http.ResponseWriter, r *http.Request, accountId string) {
	var body api.UserTransferRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	req, err := mapping.ToDomainUserTransfer(accountId, &body)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.UserTransfer(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, created(result), mapping.ToApiOperationResult(result))
}

// Withdraw debits the earnings wallet and queues the payout.
func (h *WalletsHandler) Withdraw(w http.ResponseWriter, r *http.Request, accountId string) {
	var body api.WithdrawalRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	req, err := mapping.ToDomainWithdrawal(accountId, &body)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.Withdraw(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	status := created(result)
	if status == http.StatusCreated {
		status = http.StatusAccepted
	}
	respond.JSON(w, status, mapping.ToApiOperationResult(result))
}

// SettleWithdrawal records the payment provider's outcome for a pending withdrawal.
func (h *WalletsHandler) SettleWithdrawal(w http.ResponseWriter, r *http.Request, transactionId string) {
	var body api.SettlementRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.SettleWithdrawal(r.Context(), mapping.ToDomainSettlement(transactionId, &body))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiOperationResult(result))
}
