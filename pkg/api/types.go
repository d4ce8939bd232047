// Package api holds the HTTP wire types and the chi server glue of the ledger API.
// Amounts are decimal strings with two places, e.g. "49.00".
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}

// Account defines model for Account.
type Account struct {
	Id                  string              `json:"id"`
	Email               openapi_types.Email `json:"email"`
	ReferralCode        string              `json:"referral_code"`
	SponsorId           *string             `json:"sponsor_id,omitempty"`
	Status              string              `json:"status"`
	SubscriptionExpires *time.Time          `json:"subscription_expires,omitempty"`
	GraceEndsAt         *time.Time          `json:"grace_ends_at,omitempty"`
	DepositAddress      *string             `json:"deposit_address,omitempty"`
	DirectReferrals     int                 `json:"direct_referrals"`
	CreatedAt           time.Time           `json:"created_at"`
}

// NewAccount defines model for NewAccount.
type NewAccount struct {
	Email          openapi_types.Email `json:"email"`
	ReferralCode   *string             `json:"referral_code,omitempty"`
	DepositAddress *string             `json:"deposit_address,omitempty"`
}

// Wallet defines model for Wallet.
type Wallet struct {
	AccountId string    `json:"account_id"`
	Earnings  string    `json:"earnings"`
	Deposit   string    `json:"deposit"`
	Holding   string    `json:"holding"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction defines model for Transaction.
type Transaction struct {
	Id                       string    `json:"id"`
	AccountId                string    `json:"account_id"`
	Type                     string    `json:"type"`
	Wallet                   string    `json:"wallet"`
	Amount                   string    `json:"amount"`
	Fee                      string    `json:"fee"`
	Delta                    string    `json:"delta"`
	Level                    *int      `json:"level,omitempty"`
	CounterpartAccountId     *string   `json:"counterpart_account_id,omitempty"`
	CounterpartTransactionId *string   `json:"counterpart_transaction_id,omitempty"`
	Status                   string    `json:"status"`
	Description              *string   `json:"description,omitempty"`
	Address                  *string   `json:"address,omitempty"`
	TxHash                   *string   `json:"tx_hash,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TransactionPage defines model for TransactionPage.
type TransactionPage struct {
	Items      []Transaction `json:"items"`
	NextCursor *string       `json:"next_cursor,omitempty"`
}

// WalletView defines model for WalletView.
type WalletView struct {
	Wallet      Wallet        `json:"wallet"`
	Withdrawals []Transaction `json:"withdrawals"`
	Deposits    []Transaction `json:"deposits"`
}

// LifecycleRequest defines model for LifecycleRequest. EventId overrides the
// default idempotency key of an activation or renewal.
type LifecycleRequest struct {
	EventId *string `json:"event_id,omitempty"`
}

// Credit defines model for Credit.
type Credit struct {
	AccountId string `json:"account_id"`
	Type      string `json:"type"`
	Level     *int   `json:"level,omitempty"`
	Wallet    string `json:"wallet"`
	Amount    string `json:"amount"`
}

// Distribution defines model for Distribution.
type Distribution struct {
	EventId   string       `json:"event_id"`
	Replayed  bool         `json:"replayed"`
	Payment   *Transaction `json:"payment,omitempty"`
	Credits   []Credit     `json:"credits"`
	Forfeited string       `json:"forfeited"`
}

// InternalTransferRequest defines model for InternalTransferRequest.
type InternalTransferRequest struct {
	Direction      string  `json:"direction"`
	Amount         string  `json:"amount"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

// UserTransferRequest defines model for UserTransferRequest. Recipient is an
// email address or a referral code.
type UserTransferRequest struct {
	Recipient      string  `json:"recipient"`
	Amount         string  `json:"amount"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

// WithdrawalRequest defines model for WithdrawalRequest.
type WithdrawalRequest struct {
	Amount         string  `json:"amount"`
	Address        string  `json:"address"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

// SettlementRequest defines model for SettlementRequest.
type SettlementRequest struct {
	Status string  `json:"status"`
	TxHash *string `json:"tx_hash,omitempty"`
}

// OperationResult defines model for OperationResult.
type OperationResult struct {
	Replayed     bool          `json:"replayed"`
	Transactions []Transaction `json:"transactions"`
}

// DepositRequest defines model for DepositRequest.
type DepositRequest struct {
	EventId   *string `json:"event_id,omitempty"`
	AccountId string  `json:"account_id"`
	Amount    string  `json:"amount"`
	TxHash    string  `json:"tx_hash"`
}

// DepositResult defines model for DepositResult.
type DepositResult struct {
	Replayed    bool          `json:"replayed"`
	Transaction *Transaction  `json:"transaction,omitempty"`
	Activation  *Distribution `json:"activation,omitempty"`
	Renewal     *Distribution `json:"renewal,omitempty"`
}

// Dashboard defines model for Dashboard.
type Dashboard struct {
	Account            Account           `json:"account"`
	Status             string            `json:"status"`
	GraceEndsAt        *time.Time        `json:"grace_ends_at,omitempty"`
	Wallet             Wallet            `json:"wallet"`
	DirectReferrals    []Account         `json:"direct_referrals"`
	TeamSize           int               `json:"team_size"`
	RecentTransactions []Transaction     `json:"recent_transactions"`
	LevelIncome        map[string]string `json:"level_income"`
	ActivationAmount   string            `json:"activation_amount"`
	RenewalAmount      string            `json:"renewal_amount"`
	GracePeriodHours   int               `json:"grace_period_hours"`
}

// Income defines model for Income.
type Income struct {
	ByLevel map[string]string `json:"by_level"`
	ByType  map[string]string `json:"by_type"`
	Total   string            `json:"total"`
	Held    string            `json:"held"`
}

// TeamLevel defines model for TeamLevel.
type TeamLevel struct {
	Level   int       `json:"level"`
	Count   int       `json:"count"`
	Members []Account `json:"members"`
}

// Team defines model for Team.
type Team struct {
	Levels []TeamLevel `json:"levels"`
	Total  int         `json:"total"`
}

// Overview defines model for Overview.
type Overview struct {
	TotalUsers      int    `json:"total_users"`
	InactiveUsers   int    `json:"inactive_users"`
	ActiveUsers     int    `json:"active_users"`
	GraceUsers      int    `json:"grace_users"`
	CompressedUsers int    `json:"compressed_users"`
	TotalEarnings   string `json:"total_earnings"`
	TotalDeposit    string `json:"total_deposit"`
	TotalHolding    string `json:"total_holding"`
}

// UserSummary defines model for UserSummary.
type UserSummary struct {
	Account Account `json:"account"`
	Status  string  `json:"status"`
	Wallet  Wallet  `json:"wallet"`
}

// UserPage defines model for UserPage.
type UserPage struct {
	Items      []UserSummary `json:"items"`
	NextCursor *string       `json:"next_cursor,omitempty"`
}

// UserDetail defines model for UserDetail.
type UserDetail struct {
	Account            Account       `json:"account"`
	Status             string        `json:"status"`
	GraceEndsAt        *time.Time    `json:"grace_ends_at,omitempty"`
	Wallet             Wallet        `json:"wallet"`
	Sponsor            *Account      `json:"sponsor,omitempty"`
	DirectReferrals    []Account     `json:"direct_referrals"`
	RecentTransactions []Transaction `json:"recent_transactions"`
}

// GraceUser defines model for GraceUser.
type GraceUser struct {
	Account     Account   `json:"account"`
	GraceEndsAt time.Time `json:"grace_ends_at"`
	Holding     string    `json:"holding"`
}

// SweepResult defines model for SweepResult.
type SweepResult struct {
	Renewed        int    `json:"renewed"`
	EnteredGrace   int    `json:"entered_grace"`
	Compressed     int    `json:"compressed"`
	ForfeitedTotal string `json:"forfeited_total"`
}

// ListTransactionsParams defines parameters for the transaction feeds.
type ListTransactionsParams struct {
	Type   *string `form:"type,omitempty" json:"type,omitempty"`
	Limit  *int32  `form:"limit,omitempty" json:"limit,omitempty"`
	Cursor *string `form:"cursor,omitempty" json:"cursor,omitempty"`
}

// ListUsersParams defines parameters for ListUsers.
type ListUsersParams struct {
	Limit  *int32  `form:"limit,omitempty" json:"limit,omitempty"`
	Cursor *string `form:"cursor,omitempty" json:"cursor,omitempty"`
}

// LevelRule defines model for LevelRule. Percentages are decimal strings, e.g. "2.5".
type LevelRule struct {
	Level                int    `json:"level"`
	ActivationPercentage string `json:"activation_percentage"`
	RenewalPercentage    string `json:"renewal_percentage"`
	MinDirectReferrals   int    `json:"min_direct_referrals"`
}

// Levels defines model for Levels.
type Levels struct {
	Version   int64       `json:"version"`
	Levels    []LevelRule `json:"levels"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// AdditionalCommission defines model for AdditionalCommission.
type AdditionalCommission struct {
	AccountId            string     `json:"account_id"`
	ActivationPercentage string     `json:"activation_percentage"`
	RenewalPercentage    string     `json:"renewal_percentage"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// WalletSettings defines model for WalletSettings.
type WalletSettings struct {
	EarningsToDepositFee string `json:"earnings_to_deposit_fee"`
	DepositToEarningsFee string `json:"deposit_to_earnings_fee"`
	UserTransferFee      string `json:"user_transfer_fee"`
	WithdrawalFeeMode    string `json:"withdrawal_fee_mode"`
	WithdrawalFeeFlat    string `json:"withdrawal_fee_flat"`
	WithdrawalFeePercent string `json:"withdrawal_fee_percent"`
	MinTransferAmount    string `json:"min_transfer_amount"`
	MinWithdrawalAmount  string `json:"min_withdrawal_amount"`
}

// SubscriptionSettings defines model for SubscriptionSettings.
type SubscriptionSettings struct {
	ActivationAmount  string `json:"activation_amount"`
	RenewalAmount     string `json:"renewal_amount"`
	RenewalPeriodDays int    `json:"renewal_period_days"`
	GracePeriodHours  int    `json:"grace_period_hours"`
}

// SmtpSettings defines model for SmtpSettings. Password is write-only and
// comes back redacted.
type SmtpSettings struct {
	Host      string              `json:"host"`
	Port      int                 `json:"port"`
	Username  string              `json:"username"`
	Password  *string             `json:"password,omitempty"`
	FromEmail openapi_types.Email `json:"from_email"`
	FromName  string              `json:"from_name"`
	UseTls    bool                `json:"use_tls"`
}

// PaymentProviderSettings defines model for PaymentProviderSettings. Secrets
// are write-only and come back redacted.
type PaymentProviderSettings struct {
	Provider      string  `json:"provider"`
	ApiKey        *string `json:"api_key,omitempty"`
	ApiSecret     *string `json:"api_secret,omitempty"`
	WebhookSecret *string `json:"webhook_secret,omitempty"`
	Network       string  `json:"network"`
	Enabled       bool    `json:"enabled"`
}
