package settings

import (
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Document keys in the settings table.
const (
	KeyLevels          = "levels"
	KeyWallet          = "wallet"
	KeySubscription    = "subscription"
	KeySMTP            = "smtp"
	KeyPaymentProvider = "payment_provider"
)

// Redacted replaces secrets in documents returned to callers.
const Redacted = "********"

// DefaultLevels returns the commission table used until an admin replaces it.
func DefaultLevels() models.LevelRules {
	table := []struct {
		pct string
		min int
	}{
		{"10", 0}, {"5", 2}, {"3", 3}, {"2", 4}, {"1.5", 5},
		{"1", 6}, {"0.8", 7}, {"0.6", 8}, {"0.4", 9}, {"0.2", 10},
	}
	levels := make([]models.LevelRule, len(table))
	for i, row := range table {
		pct := decimal.RequireFromString(row.pct)
		levels[i] = models.LevelRule{
			Level:                i + 1,
			ActivationPercentage: pct,
			RenewalPercentage:    pct,
			MinDirectReferrals:   row.min,
		}
	}
	return models.LevelRules{Levels: levels}
}

// DefaultWallet returns the transfer fees and minimums used until configured.
func DefaultWallet() models.WalletSettings {
	return models.WalletSettings{
		EarningsToDepositFee: decimal.NewFromInt(1),
		DepositToEarningsFee: decimal.NewFromInt(1),
		UserTransferFee:      decimal.NewFromInt(1),
		WithdrawalFeeMode:    models.FeeFlat,
		WithdrawalFeeFlat:    200,
		WithdrawalFeePercent: decimal.Zero,
		MinTransferAmount:    100,
		MinWithdrawalAmount:  1000,
	}
}

// DefaultSubscription returns the pricing used until configured.
func DefaultSubscription() models.SubscriptionSettings {
	return models.SubscriptionSettings{
		ActivationAmount:  10000,
		RenewalAmount:     7000,
		RenewalPeriodDays: 30,
		GracePeriodHours:  48,
	}
}
