// Package admin serves the operator console: platform overview, member
// lookup, the lifecycle sweep and the settings documents.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/dashboard"
	"github.com/chris/referral-commission-ledger/pkg/handlers/respond"
	"github.com/chris/referral-commission-ledger/pkg/mapping"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/subscription"
)

// Reports builds the admin read models.
type Reports interface {
	Overview(ctx context.Context) (*dashboard.Overview, error)
	ListUsers(ctx context.Context, limit int32, cursor string) (*dashboard.UserPage, error)
	UserDetail(ctx context.Context, accountID string) (*dashboard.UserDetail, error)
	GraceUsers(ctx context.Context) ([]dashboard.GraceUser, error)
}

// Sweeper runs the subscription lifecycle sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*subscription.SweepResult, error)
}

// AdminHandler holds the dependencies for the admin handlers.
type AdminHandler struct {
	Reports  Reports
	Sweeper  Sweeper
	Settings Settings
	Logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reports Reports, sweeper Sweeper, settings Settings, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{Reports: reports, Sweeper: sweeper, Settings: settings, Logger: logger}
}

// GetOverview returns platform-wide counts and balances.
func (h *AdminHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	o, err := h.Reports.Overview(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiOverview(o))
}

// ListUsers returns one page of members with their balances.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request, params api.ListUsersParams) {
	limit := int32(storage.DefaultPageSize)
	if params.Limit != nil {
		limit = *params.Limit
	}
	var cursor string
	if params.Cursor != nil {
		cursor = *params.Cursor
	}

	page, err := h.Reports.ListUsers(r.Context(), limit, cursor)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiUserPage(page))
}

// GetUserDetail returns one member with sponsor, directs and recent activity.
func (h *AdminHandler) GetUserDetail(w http.ResponseWriter, r *http.Request, accountId string) {
	d, err := h.Reports.UserDetail(r.Context(), accountId)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiUserDetail(d))
}

// ListGraceUsers returns members inside their grace window, soonest deadline first.
func (h *AdminHandler) ListGraceUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Reports.GraceUsers(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiGraceUsers(users))
}

// RunSweep runs the lifecycle sweep once.
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Sweeper.Sweep(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	h.Logger.Info("sweep triggered", "renewed", result.Renewed, "entered_grace", result.EnteredGrace, "compressed", result.Compressed)
	respond.JSON(w, http.StatusOK, mapping.ToApiSweepResult(result))
}
