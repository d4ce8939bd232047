package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/commission"
	"github.com/chris/referral-commission-ledger/pkg/dashboard"
	"github.com/chris/referral-commission-ledger/pkg/handlers/respond"
	"github.com/chris/referral-commission-ledger/pkg/mapping"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/referral"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/subscription"
)

// Registrar creates accounts in the referral tree.
type Registrar interface {
	Register(ctx context.Context, req referral.RegisterRequest) (*models.Account, error)
}

// ReadModels builds the member pages.
type ReadModels interface {
	Dashboard(ctx context.Context, accountID string) (*dashboard.Dashboard, error)
	Income(ctx context.Context, accountID string) (*dashboard.IncomeSummary, error)
	Team(ctx context.Context, accountID string) (*dashboard.TeamView, error)
}

// Lifecycle drives activation, renewal and deposits.
type Lifecycle interface {
	CheckActivation(ctx context.Context, accountID, eventID string) (*commission.Result, error)
	Renew(ctx context.Context, accountID, eventID string) (*commission.Result, error)
	CreditDeposit(ctx context.Context, ev subscription.DepositEvent) (*subscription.DepositResult, error)
}

// AccountsHandler holds the dependencies for account-related handlers.
type AccountsHandler struct {
	Registrar Registrar
	Reads     ReadModels
	Lifecycle Lifecycle
	Logger    *slog.Logger
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(registrar Registrar, reads ReadModels, lifecycle Lifecycle, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{Registrar: registrar, Reads: reads, Lifecycle: lifecycle, Logger: logger}
}

// RegisterAccount creates an inactive account under the owner of the referral code.
func (h *AccountsHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var body api.NewAccount
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	req := referral.RegisterRequest{Email: string(body.Email)}
	if body.ReferralCode != nil {
		req.SponsorReferralCode = *body.ReferralCode
	}
	if body.DepositAddress != nil {
		req.DepositAddress = *body.DepositAddress
	}

	acc, err := h.Registrar.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, mapping.ToApiAccount(acc))
}

// GetDashboard returns the member home page.
func (h *AccountsHandler) GetDashboard(w http.ResponseWriter, r *http.Request, accountId string) {
	d, err := h.Reads.Dashboard(r.Context(), accountId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiDashboard(d))
}

// GetIncome returns commission totals by level and type.
func (h *AccountsHandler) GetIncome(w http.ResponseWriter, r *http.Request, accountId string) {
	income, err := h.Reads.Income(r.Context(), accountId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiIncome(income))
}

// GetTeam returns the downline grouped by level.
func (h *AccountsHandler) GetTeam(w http.ResponseWriter, r *http.Request, accountId string) {
	team, err := h.Reads.Team(r.Context(), accountId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiTeam(team))
}

// lifecycleEventID reads the optional idempotency key of an activation or renewal.
func lifecycleEventID(r *http.Request) (string, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return "", nil
	}
	var body api.LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: invalid request body: %v", storage.ErrValidation, err)
	}
	if body.EventId == nil {
		return "", nil
	}
	return *body.EventId, nil
}

// CheckActivation activates the account when its deposit wallet covers the activation amount.
func (h *AccountsHandler) CheckActivation(w http.ResponseWriter, r *http.Request, accountId string) {
	eventID, err := lifecycleEventID(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	result, err := h.Lifecycle.CheckActivation(r.Context(), accountId, eventID)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiDistribution(result))
}

// RenewSubscription extends the subscription by one period.
func (h *AccountsHandler) RenewSubscription(w http.ResponseWriter, r *http.Request, accountId string) {
	eventID, err := lifecycleEventID(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	result, err := h.Lifecycle.Renew(r.Context(), accountId, eventID)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiDistribution(result))
}

// CreditDeposit handles the payment provider's confirmed deposit callback.
func (h *AccountsHandler) CreditDeposit(w http.ResponseWriter, r *http.Request) {
	var body api.DepositRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	ev, err := mapping.ToDomainDeposit(&body)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	result, err := h.Lifecycle.CreditDeposit(r.Context(), ev)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	respond.JSON(w, status, mapping.ToApiDepositResult(result))
}
