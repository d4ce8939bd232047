package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /accounts)
	RegisterAccount(w http.ResponseWriter, r *http.Request)
	// (GET /accounts/{accountId}/dashboard)
	GetDashboard(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /accounts/{accountId}/income)
	GetIncome(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /accounts/{accountId}/team)
	GetTeam(w http.ResponseWriter, r *http.Request, accountId string)
	// (POST /accounts/{accountId}/activation)
	CheckActivation(w http.ResponseWriter, r *http.Request, accountId string)
	// (POST /accounts/{accountId}/renewal)
	RenewSubscription(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /accounts/{accountId}/wallet)
	GetWallet(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /accounts/{accountId}/transactions)
	ListAccountTransactions(w http.ResponseWriter, r *http.Request, accountId string, params ListTransactionsParams)
	// (POST /accounts/{accountId}/transfers/internal)
	InternalTransfer(w http.ResponseWriter, r *http.Request, accountId string)
	// (POST /accounts/{accountId}/transfers/user)
	UserTransfer(w http.ResponseWriter, r *http.Request, accountId string)
	// (POST /accounts/{accountId}/withdrawals)
	Withdraw(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /transactions/{transactionId})
	GetTransaction(w http.ResponseWriter, r *http.Request, transactionId string)
	// (POST /deposits)
	CreditDeposit(w http.ResponseWriter, r *http.Request)
	// (POST /withdrawals/{transactionId}/settlement)
	SettleWithdrawal(w http.ResponseWriter, r *http.Request, transactionId string)

	// (GET /admin/overview)
	GetOverview(w http.ResponseWriter, r *http.Request)
	// (GET /admin/users)
	ListUsers(w http.ResponseWriter, r *http.Request, params ListUsersParams)
	// (GET /admin/users/{accountId})
	GetUserDetail(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /admin/grace-users)
	ListGraceUsers(w http.ResponseWriter, r *http.Request)
	// (POST /admin/sweep)
	RunSweep(w http.ResponseWriter, r *http.Request)
	// (GET /admin/transactions)
	ListAllTransactions(w http.ResponseWriter, r *http.Request, params ListTransactionsParams)
	// (GET /admin/settings/levels)
	GetLevels(w http.ResponseWriter, r *http.Request)
	// (PUT /admin/settings/levels)
	UpdateLevels(w http.ResponseWriter, r *http.Request)
	// (GET /admin/settings/additional-commissions)
	ListAdditionalCommissions(w http.ResponseWriter, r *http.Request)
	// (PUT /admin/settings/additional-commissions/{accountId})
	PutAdditionalCommission(w http.ResponseWriter, r *http.Request, accountId string)
	// (DELETE /admin/settings/additional-commissions/{accountId})
	DeleteAdditionalCommission(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /admin/settings/wallet)
	GetWalletSettings(w http.ResponseWriter, r *http.Request)
	// (PUT /admin/settings/wallet)
	UpdateWalletSettings(w http.ResponseWriter, r *http.Request)
	// (GET /admin/settings/subscription)
	GetSubscriptionSettings(w http.ResponseWriter, r *http.Request)
	// (PUT /admin/settings/subscription)
	UpdateSubscriptionSettings(w http.ResponseWriter, r *http.Request)
	// (GET /admin/settings/smtp)
	GetSmtpSettings(w http.ResponseWriter, r *http.Request)
	// (PUT /admin/settings/smtp)
	UpdateSmtpSettings(w http.ResponseWriter, r *http.Request)
	// (GET /admin/settings/payment-provider)
	GetPaymentProviderSettings(w http.ResponseWriter, r *http.Request)
	// (PUT /admin/settings/payment-provider)
	UpdatePaymentProviderSettings(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError is reported when a path or query parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) plain(call func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		siw.serve(w, r, call)
	}
}

// pathParam binds one required simple-style path parameter.
func (siw *ServerInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) withPath(name string, call func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		if !siw.pathParam(w, r, name, &id) {
			return
		}
		siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
			call(w, r, id)
		})
	}
}

func (siw *ServerInterfaceWrapper) bindTransactionParams(w http.ResponseWriter, r *http.Request) (ListTransactionsParams, bool) {
	var params ListTransactionsParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "type", query, &params.Type); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "type", Err: err})
		return params, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return params, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "cursor", query, &params.Cursor); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "cursor", Err: err})
		return params, false
	}
	return params, true
}

// ListAccountTransactions operation middleware
func (siw *ServerInterfaceWrapper) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	var accountId string
	if !siw.pathParam(w, r, "accountId", &accountId) {
		return
	}
	params, ok := siw.bindTransactionParams(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListAccountTransactions(w, r, accountId, params)
	})
}

// ListAllTransactions operation middleware
func (siw *ServerInterfaceWrapper) ListAllTransactions(w http.ResponseWriter, r *http.Request) {
	params, ok := siw.bindTransactionParams(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListAllTransactions(w, r, params)
	})
}

// ListUsers operation middleware
func (siw *ServerInterfaceWrapper) ListUsers(w http.ResponseWriter, r *http.Request) {
	var params ListUsersParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "cursor", query, &params.Cursor); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "cursor", Err: err})
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListUsers(w, r, params)
	})
}

// ChiServerOptions configures the router built by HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the ledger API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with routing matching the ledger API, mounted on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}
	base := options.BaseURL

	r.Group(func(r chi.Router) {
		r.Post(base+"/accounts", wrapper.plain(si.RegisterAccount))
		r.Get(base+"/accounts/{accountId}/dashboard", wrapper.withPath("accountId", si.GetDashboard))
		r.Get(base+"/accounts/{accountId}/income", wrapper.withPath("accountId", si.GetIncome))
		r.Get(base+"/accounts/{accountId}/team", wrapper.withPath("accountId", si.GetTeam))
		r.Post(base+"/accounts/{accountId}/activation", wrapper.withPath("accountId", si.CheckActivation))
		r.Post(base+"/accounts/{accountId}/renewal", wrapper.withPath("accountId", si.RenewSubscription))
		r.Get(base+"/accounts/{accountId}/wallet", wrapper.withPath("accountId", si.GetWallet))
		r.Get(base+"/accounts/{accountId}/transactions", wrapper.ListAccountTransactions)
		r.Post(base+"/accounts/{accountId}/transfers/internal", wrapper.withPath("accountId", si.InternalTransfer))
		r.Post(base+"/accounts/{accountId}/transfers/user", wrapper.withPath("accountId", si.UserTransfer))
		r.Post(base+"/accounts/{accountId}/withdrawals", wrapper.withPath("accountId", si.Withdraw))
		r.Get(base+"/transactions/{transactionId}", wrapper.withPath("transactionId", si.GetTransaction))
		r.Post(base+"/deposits", wrapper.plain(si.CreditDeposit))
		r.Post(base+"/withdrawals/{transactionId}/settlement", wrapper.withPath("transactionId", si.SettleWithdrawal))
	})

	r.Group(func(r chi.Router) {
		r.Get(base+"/admin/overview", wrapper.plain(si.GetOverview))
		r.Get(base+"/admin/users", wrapper.ListUsers)
		r.Get(base+"/admin/users/{accountId}", wrapper.withPath("accountId", si.GetUserDetail))
		r.Get(base+"/admin/grace-users", wrapper.plain(si.ListGraceUsers))
		r.Post(base+"/admin/sweep", wrapper.plain(si.RunSweep))
		r.Get(base+"/admin/transactions", wrapper.ListAllTransactions)
		r.Get(base+"/admin/settings/levels", wrapper.plain(si.GetLevels))
		r.Put(base+"/admin/settings/levels", wrapper.plain(si.UpdateLevels))
		r.Get(base+"/admin/settings/additional-commissions", wrapper.plain(si.ListAdditionalCommissions))
		r.Put(base+"/admin/settings/additional-commissions/{accountId}", wrapper.withPath("accountId", si.PutAdditionalCommission))
		r.Delete(base+"/admin/settings/additional-commissions/{accountId}", wrapper.withPath("accountId", si.DeleteAdditionalCommission))
		r.Get(base+"/admin/settings/wallet", wrapper.plain(si.GetWalletSettings))
		r.Put(base+"/admin/settings/wallet", wrapper.plain(si.UpdateWalletSettings))
		r.Get(base+"/admin/settings/subscription", wrapper.plain(si.GetSubscriptionSettings))
		r.Put(base+"/admin/settings/subscription", wrapper.plain(si.UpdateSubscriptionSettings))
		r.Get(base+"/admin/settings/smtp", wrapper.plain(si.GetSmtpSettings))
		r.Put(base+"/admin/settings/smtp", wrapper.plain(si.UpdateSmtpSettings))
		r.Get(base+"/admin/settings/payment-provider", wrapper.plain(si.GetPaymentProviderSettings))
		r.Put(base+"/admin/settings/payment-provider", wrapper.plain(si.UpdatePaymentProviderSettings))
	})

	return r
}
