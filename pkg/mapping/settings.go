package mapping

import (
	"fmt"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ToDomainPercent parses a wire percentage such as "2.5".
func ToDomainPercent(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: invalid percentage %q", storage.ErrValidation, field, s)
	}
	return d, nil
}

// ToApiLevels converts the commission table.
func ToApiLevels(rules models.LevelRules) api.Levels {
	out := api.Levels{Version: rules.Version, Levels: make([]api.LevelRule, 0, len(rules.Levels)), UpdatedAt: timestamp(rules.UpdatedAt)}
	for _, l := range rules.Levels {
		out.Levels = append(out.Levels, api.LevelRule{
			Level:                l.Level,
			ActivationPercentage: l.ActivationPercentage.String(),
			RenewalPercentage:    l.RenewalPercentage.String(),
			MinDirectReferrals:   l.MinDirectReferrals,
		})
	}
	return out
}

// ToDomainLevels converts a commission table update.
func ToDomainLevels(req []api.LevelRule) ([]models.LevelRule, error) {
	out := make([]models.LevelRule, 0, len(req))
	for _, l := range req {
		activation, err := ToDomainPercent("activation_percentage", l.ActivationPercentage)
		if err != nil {
			return nil, err
		}
		renewal, err := ToDomainPercent("renewal_percentage", l.RenewalPercentage)
		if err != nil {
			return nil, err
		}
		out = append(out, models.LevelRule{
			Level:                l.Level,
			ActivationPercentage: activation,
			RenewalPercentage:    renewal,
			MinDirectReferrals:   l.MinDirectReferrals,
		})
	}
	return out, nil
}

// ToApiAdditionalCommission converts one override.
func ToApiAdditionalCommission(c models.AdditionalCommission) api.AdditionalCommission {
	return api.AdditionalCommission{
		AccountId:            c.UserID,
		ActivationPercentage: c.ActivationPercentage.String(),
		RenewalPercentage:    c.RenewalPercentage.String(),
		UpdatedAt:            timestamp(c.UpdatedAt),
	}
}

// ToApiAdditionalCommissions converts the override list.
func ToApiAdditionalCommissions(cs []models.AdditionalCommission) []api.AdditionalCommission {
	out := make([]api.AdditionalCommission, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToApiAdditionalCommission(c))
	}
	return out
}

// ToDomainAdditionalCommission converts an override upsert for accountID.
func ToDomainAdditionalCommission(accountID string, req *api.AdditionalCommission) (models.AdditionalCommission, error) {
	activation, err := ToDomainPercent("activation_percentage", req.ActivationPercentage)
	if err != nil {
		return models.AdditionalCommission{}, err
	}
	renewal, err := ToDomainPercent("renewal_percentage", req.RenewalPercentage)
	if err != nil {
		return models.AdditionalCommission{}, err
	}
	return models.AdditionalCommission{UserID: accountID, ActivationPercentage: activation, RenewalPercentage: renewal}, nil
}

// ToApiWalletSettings converts fees and minimums.
func ToApiWalletSettings(w models.WalletSettings) api.WalletSettings {
	return api.WalletSettings{
		EarningsToDepositFee: w.EarningsToDepositFee.String(),
		DepositToEarningsFee: w.DepositToEarningsFee.String(),
		UserTransferFee:      w.UserTransferFee.String(),
		WithdrawalFeeMode:    string(w.WithdrawalFeeMode),
		WithdrawalFeeFlat:    money.Format(w.WithdrawalFeeFlat),
		WithdrawalFeePercent: w.WithdrawalFeePercent.String(),
		MinTransferAmount:    money.Format(w.MinTransferAmount),
		MinWithdrawalAmount:  money.Format(w.MinWithdrawalAmount),
	}
}

// ToDomainWalletSettings converts a wallet settings update.
func ToDomainWalletSettings(req *api.WalletSettings) (models.WalletSettings, error) {
	out := models.WalletSettings{WithdrawalFeeMode: models.WithdrawalFeeMode(req.WithdrawalFeeMode)}
	var err error
	percents := []struct {
		field string
		in    string
		dst   *decimal.Decimal
	}{
		{"earnings_to_deposit_fee", req.EarningsToDepositFee, &out.EarningsToDepositFee},
		{"deposit_to_earnings_fee", req.DepositToEarningsFee, &out.DepositToEarningsFee},
		{"user_transfer_fee", req.UserTransferFee, &out.UserTransferFee},
		{"withdrawal_fee_percent", req.WithdrawalFeePercent, &out.WithdrawalFeePercent},
	}
	for _, p := range percents {
		if *p.dst, err = ToDomainPercent(p.field, p.in); err != nil {
			return models.WalletSettings{}, err
		}
	}
	amounts := []struct {
		in  string
		dst *int64
	}{
		{req.WithdrawalFeeFlat, &out.WithdrawalFeeFlat},
		{req.MinTransferAmount, &out.MinTransferAmount},
		{req.MinWithdrawalAmount, &out.MinWithdrawalAmount},
	}
	for _, a := range amounts {
		if a.in == "" {
			continue
		}
		if *a.dst, err = ToDomainAmount(a.in); err != nil {
			return models.WalletSettings{}, err
		}
	}
	return out, nil
}

// ToApiSubscriptionSettings converts pricing and the grace window.
func ToApiSubscriptionSettings(s models.SubscriptionSettings) api.SubscriptionSettings {
	return api.SubscriptionSettings{
		ActivationAmount:  money.Format(s.ActivationAmount),
		RenewalAmount:     money.Format(s.RenewalAmount),
		RenewalPeriodDays: s.RenewalPeriodDays,
		GracePeriodHours:  s.GracePeriodHours,
	}
}

// ToDomainSubscriptionSettings converts a subscription settings update.
func ToDomainSubscriptionSettings(req *api.SubscriptionSettings) (models.SubscriptionSettings, error) {
	activation, err := ToDomainAmount(req.ActivationAmount)
	if err != nil {
		return models.SubscriptionSettings{}, err
	}
	renewal, err := ToDomainAmount(req.RenewalAmount)
	if err != nil {
		return models.SubscriptionSettings{}, err
	}
	return models.SubscriptionSettings{
		ActivationAmount:  activation,
		RenewalAmount:     renewal,
		RenewalPeriodDays: req.RenewalPeriodDays,
		GracePeriodHours:  req.GracePeriodHours,
	}, nil
}

// ToApiSmtpSettings converts mail settings. The password arrives redacted.
func ToApiSmtpSettings(s models.SMTPSettings) api.SmtpSettings {
	return api.SmtpSettings{
		Host:      s.Host,
		Port:      s.Port,
		Username:  s.Username,
		Password:  optional(s.Password),
		FromEmail: openapi_types.Email(s.FromEmail),
		FromName:  s.FromName,
		UseTls:    s.UseTLS,
	}
}

// ToDomainSmtpSettings converts a mail settings update.
func ToDomainSmtpSettings(req *api.SmtpSettings) models.SMTPSettings {
	return models.SMTPSettings{
		Host:      req.Host,
		Port:      req.Port,
		Username:  req.Username,
		Password:  value(req.Password),
		FromEmail: string(req.FromEmail),
		FromName:  req.FromName,
		UseTLS:    req.UseTls,
	}
}

// ToApiPaymentProviderSettings converts provider settings. Secrets arrive redacted.
func ToApiPaymentProviderSettings(p models.PaymentProviderSettings) api.PaymentProviderSettings {
	return api.PaymentProviderSettings{
		Provider:      p.Provider,
		ApiKey:        optional(p.APIKey),
		ApiSecret:     optional(p.APISecret),
		WebhookSecret: optional(p.WebhookSecret),
		Network:       p.Network,
		Enabled:       p.Enabled,
	}
}

// ToDomainPaymentProviderSettings converts a provider settings update.
func ToDomainPaymentProviderSettings(req *api.PaymentProviderSettings) models.PaymentProviderSettings {
	return models.PaymentProviderSettings{
		Provider:      req.Provider,
		APIKey:        value(req.ApiKey),
		APISecret:     value(req.ApiSecret),
		WebhookSecret: value(req.WebhookSecret),
		Network:       req.Network,
		Enabled:       req.Enabled,
	}
}
