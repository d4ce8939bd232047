package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLevels is the depth of the commission table and of upline walks.
const MaxLevels = 10

// LevelRule is one row of the commission table.
type LevelRule struct {
	Level                int             `json:"level"`
	ActivationPercentage decimal.Decimal `json:"activation_percentage"`
	RenewalPercentage    decimal.Decimal `json:"renewal_percentage"`
	MinDirectReferrals   int             `json:"min_direct_referrals"`
}

// LevelRules is the full, versioned commission table.
type LevelRules struct {
	Version   int64       `json:"version"`
	Levels    []LevelRule `json:"levels"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AdditionalCommission entitles one account to extra commission on every
// activation and renewal on the platform, regardless of tree position.
type AdditionalCommission struct {
	UserID               string          `json:"user_id"`
	ActivationPercentage decimal.Decimal `json:"activation_percentage"`
	RenewalPercentage    decimal.Decimal `json:"renewal_percentage"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// WithdrawalFeeMode selects how the withdrawal fee is computed.
type WithdrawalFeeMode string

const (
	FeeFlat    WithdrawalFeeMode = "flat"
	FeePercent WithdrawalFeeMode = "percent"
)

// WalletSettings holds transfer fees and minimums. Amounts are minor units.
type WalletSettings struct {
	EarningsToDepositFee decimal.Decimal   `json:"earnings_to_deposit_fee"`
	DepositToEarningsFee decimal.Decimal   `json:"deposit_to_earnings_fee"`
	UserTransferFee      decimal.Decimal   `json:"user_transfer_fee"`
	WithdrawalFeeMode    WithdrawalFeeMode `json:"withdrawal_fee_mode"`
	WithdrawalFeeFlat    int64             `json:"withdrawal_fee_flat"`
	WithdrawalFeePercent decimal.Decimal   `json:"withdrawal_fee_percent"`
	MinTransferAmount    int64             `json:"min_transfer_amount"`
	MinWithdrawalAmount  int64             `json:"min_withdrawal_amount"`
}

// SubscriptionSettings holds activation and renewal pricing and the grace window.
type SubscriptionSettings struct {
	ActivationAmount  int64 `json:"activation_amount"`
	RenewalAmount     int64 `json:"renewal_amount"`
	RenewalPeriodDays int   `json:"renewal_period_days"`
	GracePeriodHours  int   `json:"grace_period_hours"`
}

// RenewalPeriod returns the subscription length.
func (s SubscriptionSettings) RenewalPeriod() time.Duration {
	return time.Duration(s.RenewalPeriodDays) * 24 * time.Hour
}

// GracePeriod returns the grace window length.
func (s SubscriptionSettings) GracePeriod() time.Duration {
	return time.Duration(s.GracePeriodHours) * time.Hour
}

// SMTPSettings configures outbound mail for the notification collaborator.
type SMTPSettings struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password,omitempty"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
	UseTLS    bool   `json:"use_tls"`
}

// PaymentProviderSettings configures the deposit/payout provider integration.
type PaymentProviderSettings struct {
	Provider      string `json:"provider"`
	APIKey        string `json:"api_key,omitempty"`
	APISecret     string `json:"api_secret,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
	Network       string `json:"network"`
	Enabled       bool   `json:"enabled"`
}
