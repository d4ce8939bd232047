package settings

import (
	"fmt"
	"net/mail"
	"sort"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", storage.ErrValidation, fmt.Sprintf(format, args...))
}

// ValidateLevels checks a full commission table: every level from 1 to
// MaxLevels exactly once, percentages in range and non-negative minimums.
// The returned slice is sorted by level.
func ValidateLevels(levels []models.LevelRule) ([]models.LevelRule, error) {
	if len(levels) != models.MaxLevels {
		return nil, invalid("expected %d levels, got %d", models.MaxLevels, len(levels))
	}
	sorted := make([]models.LevelRule, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	for i, l := range sorted {
		if l.Level != i+1 {
			return nil, invalid("levels must be 1 through %d, each exactly once", models.MaxLevels)
		}
		if !money.ValidPercentage(l.ActivationPercentage) || !money.ValidPercentage(l.RenewalPercentage) {
			return nil, invalid("level %d percentage must be between 0 and 100", l.Level)
		}
		if l.MinDirectReferrals < 0 {
			return nil, invalid("level %d minimum direct referrals must not be negative", l.Level)
		}
	}
	return sorted, nil
}

// ValidateBudget rejects configurations whose level and override percentages
// add up to more than the whole payment for either event type.
func ValidateBudget(levels []models.LevelRule, overrides []models.AdditionalCommission) error {
	activation, renewal := decimal.Zero, decimal.Zero
	for _, l := range levels {
		activation = activation.Add(l.ActivationPercentage)
		renewal = renewal.Add(l.RenewalPercentage)
	}
	for _, o := range overrides {
		activation = activation.Add(o.ActivationPercentage)
		renewal = renewal.Add(o.RenewalPercentage)
	}
	hundred := decimal.NewFromInt(100)
	if activation.GreaterThan(hundred) {
		return invalid("activation percentages add up to %s%%", activation.String())
	}
	if renewal.GreaterThan(hundred) {
		return invalid("renewal percentages add up to %s%%", renewal.String())
	}
	return nil
}

// ValidateWallet checks fee percentages, the fee mode and the minimums.
func ValidateWallet(w models.WalletSettings) error {
	for name, pct := range map[string]decimal.Decimal{
		"earnings_to_deposit_fee": w.EarningsToDepositFee,
		"deposit_to_earnings_fee": w.DepositToEarningsFee,
		"user_transfer_fee":       w.UserTransferFee,
		"withdrawal_fee_percent":  w.WithdrawalFeePercent,
	} {
		if !money.ValidPercentage(pct) {
			return invalid("%s must be between 0 and 100", name)
		}
	}
	switch w.WithdrawalFeeMode {
	case models.FeeFlat, models.FeePercent:
	default:
		return invalid("withdrawal_fee_mode must be %q or %q", models.FeeFlat, models.FeePercent)
	}
	if w.WithdrawalFeeFlat < 0 || w.MinTransferAmount < 0 || w.MinWithdrawalAmount < 0 {
		return invalid("amounts must not be negative")
	}
	return nil
}

// ValidateSubscription checks pricing and periods.
func ValidateSubscription(s models.SubscriptionSettings) error {
	if s.ActivationAmount <= 0 || s.RenewalAmount <= 0 {
		return invalid("activation and renewal amounts must be positive")
	}
	if s.RenewalPeriodDays <= 0 {
		return invalid("renewal_period_days must be positive")
	}
	if s.GracePeriodHours < 0 {
		return invalid("grace_period_hours must not be negative")
	}
	return nil
}

// ValidateSMTP checks the mail settings when a host is configured.
func ValidateSMTP(s models.SMTPSettings) error {
	if s.Host == "" {
		return nil
	}
	if s.Port <= 0 || s.Port > 65535 {
		return invalid("port must be between 1 and 65535")
	}
	if _, err := mail.ParseAddress(s.FromEmail); err != nil {
		return invalid("from_email is not a valid address")
	}
	return nil
}

// ValidatePaymentProvider checks that an enabled provider is fully named.
func ValidatePaymentProvider(p models.PaymentProviderSettings) error {
	if !p.Enabled {
		return nil
	}
	if p.Provider == "" || p.Network == "" {
		return invalid("provider and network are required when enabled")
	}
	return nil
}
