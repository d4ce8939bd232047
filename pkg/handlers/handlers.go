package handlers

import (
	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/handlers/accounts"
	"github.com/chris/referral-commission-ledger/pkg/handlers/admin"
	"github.com/chris/referral-commission-ledger/pkg/handlers/transactions"
	"github.com/chris/referral-commission-ledger/pkg/handlers/wallets"
)

// ApiHandler implements the server interface by composing the per-area handlers.
type ApiHandler struct {
	*accounts.AccountsHandler
	*wallets.WalletsHandler
	*transactions.TransactionsHandler
	*admin.AdminHandler
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(a *accounts.AccountsHandler, w *wallets.WalletsHandler, t *transactions.TransactionsHandler, ad *admin.AdminHandler) *ApiHandler {
	return &ApiHandler{
		AccountsHandler:     a,
		WalletsHandler:      w,
		TransactionsHandler: t,
		AdminHandler:        ad,
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)
