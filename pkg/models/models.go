package models

import (
	"time"
)

// AccountStatus is the subscription state of an account.
type AccountStatus string

const (
	INACTIVE   AccountStatus = "inactive"
	ACTIVE     AccountStatus = "active"
	GRACE      AccountStatus = "grace"
	COMPRESSED AccountStatus = "compressed"
)

// Account represents a registered member of the referral tree.
// SponsorID is empty for root accounts and never changes after creation.
type Account struct {
	ID                  string        `json:"id" dynamodbav:"id"`
	Email               string        `json:"email" dynamodbav:"email"`
	ReferralCode        string        `json:"referral_code" dynamodbav:"referral_code"`
	SponsorID           string        `json:"sponsor_id,omitempty" dynamodbav:"sponsor_id,omitempty"`
	Status              AccountStatus `json:"status" dynamodbav:"status"`
	SubscriptionExpires *time.Time    `json:"subscription_expires,omitempty" dynamodbav:"subscription_expires,omitempty"`
	GraceEndsAt         *time.Time    `json:"grace_ends_at,omitempty" dynamodbav:"grace_ends_at,omitempty"`
	DepositAddress      string        `json:"deposit_address,omitempty" dynamodbav:"deposit_address,omitempty"`
	DirectReferrals     int           `json:"direct_referrals" dynamodbav:"direct_referrals"`
	Version             int64         `json:"version" dynamodbav:"version"`
	CreatedAt           time.Time     `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" dynamodbav:"updated_at"`
}

// EffectiveStatus refines the stored status with the clock. An active
// subscription past its expiry is in grace until GraceEndsAt (or expiry plus
// grace when the sweep has not stamped it yet), and compressed afterwards.
func (a *Account) EffectiveStatus(now time.Time, grace time.Duration) AccountStatus {
	switch a.Status {
	case ACTIVE:
		if a.SubscriptionExpires == nil || now.Before(*a.SubscriptionExpires) {
			return ACTIVE
		}
		if now.Before(a.graceEnd(grace)) {
			return GRACE
		}
		return COMPRESSED
	case GRACE:
		if now.Before(a.graceEnd(grace)) {
			return GRACE
		}
		return COMPRESSED
	}
	return a.Status
}

func (a *Account) graceEnd(grace time.Duration) time.Time {
	if a.GraceEndsAt != nil {
		return *a.GraceEndsAt
	}
	if a.SubscriptionExpires != nil {
		return a.SubscriptionExpires.Add(grace)
	}
	return time.Time{}
}

// WalletKind identifies one of the balances held in a Wallet.
type WalletKind string

const (
	EARNINGS WalletKind = "earnings"
	DEPOSIT  WalletKind = "deposit"
	// HOLDING escrows level income earned while the account is in its grace period.
	HOLDING WalletKind = "holding"
)

// Wallet holds the balances of a single account, in minor units.
type Wallet struct {
	AccountID       string    `json:"account_id" dynamodbav:"account_id"`
	EarningsBalance int64     `json:"earnings_balance" dynamodbav:"earnings_balance"`
	DepositBalance  int64     `json:"deposit_balance" dynamodbav:"deposit_balance"`
	HoldingBalance  int64     `json:"holding_balance" dynamodbav:"holding_balance"`
	Version         int64     `json:"version" dynamodbav:"version"`
	UpdatedAt       time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Balance returns the balance of the given kind.
func (w *Wallet) Balance(kind WalletKind) int64 {
	switch kind {
	case EARNINGS:
		return w.EarningsBalance
	case DEPOSIT:
		return w.DepositBalance
	case HOLDING:
		return w.HoldingBalance
	}
	return 0
}

// Add adjusts the balance of the given kind by delta.
func (w *Wallet) Add(kind WalletKind, delta int64) {
	switch kind {
	case EARNINGS:
		w.EarningsBalance += delta
	case DEPOSIT:
		w.DepositBalance += delta
	case HOLDING:
		w.HoldingBalance += delta
	}
}

// Negative reports whether any balance is below zero.
func (w *Wallet) Negative() bool {
	return w.EarningsBalance < 0 || w.DepositBalance < 0 || w.HoldingBalance < 0
}

// ProcessedEvent marks an idempotency key as consumed.
type ProcessedEvent struct {
	EventID   string    `json:"event_id" dynamodbav:"event_id"`
	Kind      string    `json:"kind" dynamodbav:"kind"`
	AccountID string    `json:"account_id" dynamodbav:"account_id"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}
