package admin

import (
	"context"
	"net/http"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/handlers/respond"
	"github.com/chris/referral-commission-ledger/pkg/mapping"
	"github.com/chris/referral-commission-ledger/pkg/models"
)

// Settings reads and replaces the configuration documents.
type Settings interface {
	Levels(ctx context.Context) (models.LevelRules, error)
	UpdateLevels(ctx context.Context, levels []models.LevelRule) (models.LevelRules, error)
	AdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error)
	UpsertAdditionalCommission(ctx context.Context, c models.AdditionalCommission) (models.AdditionalCommission, error)
	DeleteAdditionalCommission(ctx context.Context, userID string) error
	Wallet(ctx context.Context) (models.WalletSettings, error)
	UpdateWallet(ctx context.Context, w models.WalletSettings) (models.WalletSettings, error)
	Subscription(ctx context.Context) (models.SubscriptionSettings, error)
	UpdateSubscription(ctx context.Context, sub models.SubscriptionSettings) (models.SubscriptionSettings, error)
	SMTP(ctx context.Context) (models.SMTPSettings, error)
	UpdateSMTP(ctx context.Context, smtp models.SMTPSettings) (models.SMTPSettings, error)
	PaymentProvider(ctx context.Context) (models.PaymentProviderSettings, error)
	UpdatePaymentProvider(ctx context.Context, p models.PaymentProviderSettings) (models.PaymentProviderSettings, error)
}

// GetLevels returns the commission table.
func (h *AdminHandler) GetLevels(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Settings.Levels(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiLevels(rules))
}

// UpdateLevels replaces the commission table.
func (h *AdminHandler) UpdateLevels(w http.ResponseWriter, r *http.Request) {
	var body api.Levels
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	levels, err := mapping.ToDomainLevels(body.Levels)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	rules, err := h.Settings.UpdateLevels(r.Context(), levels)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiLevels(rules))
}

// ListAdditionalCommissions returns every override.
func (h *AdminHandler) ListAdditionalCommissions(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Settings.AdditionalCommissions(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiAdditionalCommissions(cs))
}

// PutAdditionalCommission creates or replaces the override for an account.
func (h *AdminHandler) PutAdditionalCommission(w http.ResponseWriter, r *http.Request, accountId string) {
	var body api.AdditionalCommission
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	c, err := mapping.ToDomainAdditionalCommission(accountId, &body)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	saved, err := h.Settings.UpsertAdditionalCommission(r.Context(), c)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiAdditionalCommission(saved))
}

// DeleteAdditionalCommission removes the override for an account.
func (h *AdminHandler) DeleteAdditionalCommission(w http.ResponseWriter, r *http.Request, accountId string) {
	if err := h.Settings.DeleteAdditionalCommission(r.Context(), accountId); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) GetWalletSettings(w http.ResponseWriter, r *http.Request) {
	ws, err := h.Settings.Wallet(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiWalletSettings(ws))
}

func (h *AdminHandler) UpdateWalletSettings(w http.ResponseWriter, r *http.Request) {
	var body api.WalletSettings
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	ws, err := mapping.ToDomainWalletSettings(&body)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	saved, err := h.Settings.UpdateWallet(r.Context(), ws)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiWalletSettings(saved))
}

func (h *AdminHandler) GetSubscriptionSettings(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Settings.Subscription(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiSubscriptionSettings(sub))
}

func (h *AdminHandler) UpdateSubscriptionSettings(w http.ResponseWriter, r *http.Request) {
	var body api.SubscriptionSettings
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	sub, err := mapping.ToDomainSubscriptionSettings(&body)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	saved, err := h.Settings.UpdateSubscription(r.Context(), sub)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiSubscriptionSettings(saved))
}

// GetSmtpSettings returns the mail settings with the password redacted.
func (h *AdminHandler) GetSmtpSettings(w http.ResponseWriter, r *http.Request) {
	smtp, err := h.Settings.SMTP(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiSmtpSettings(smtp))
}

func (h *AdminHandler) UpdateSmtpSettings(w http.ResponseWriter, r *http.Request) {
	var body api.SmtpSettings
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	saved, err := h.Settings.UpdateSMTP(r.Context(), mapping.ToDomainSmtpSettings(&body))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiSmtpSettings(saved))
}

// GetPaymentProviderSettings returns the provider settings with secrets redacted.
func (h *AdminHandler) GetPaymentProviderSettings(w http.ResponseWriter, r *http.Request) {
	p, err := h.Settings.PaymentProvider(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiPaymentProviderSettings(p))
}

func (h *AdminHandler) UpdatePaymentProviderSettings(w http.ResponseWriter, r *http.Request) {
	var body api.PaymentProviderSettings
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	saved, err := h.Settings.UpdatePaymentProvider(r.Context(), mapping.ToDomainPaymentProviderSettings(&body))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiPaymentProviderSettings(saved))
}
