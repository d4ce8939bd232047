package storage

import (
	"context"

	"github.com/chris/referral-commission-ledger/pkg/models"
)

// AccountReader defines the interface for reading accounts and the referral tree.
type AccountReader interface {
	// GetAccount retrieves an account by its ID.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// GetAccountByReferralCode resolves a referral code to its account.
	GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error)

	// GetAccountByEmail resolves an email address to its account.
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// ListDirectReferrals returns the accounts sponsored directly by sponsorID.
	ListDirectReferrals(ctx context.Context, sponsorID string) ([]models.Account, error)

	// ListAccountsByStatus returns every account whose stored status equals status.
	ListAccountsByStatus(ctx context.Context, status models.AccountStatus) ([]models.Account, error)

	// ListAccounts pages through all accounts.
	ListAccounts(ctx context.Context, limit int32, cursor string) ([]models.Account, string, error)
}

// AccountWriter defines the interface for registering accounts.
type AccountWriter interface {
	// CreateAccount stores the account with an empty wallet, reserves its email and
	// referral code and increments the sponsor's direct referral count, atomically.
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
}

// AccountStore combines the reader and writer interfaces.
type AccountStore interface {
	AccountReader
	AccountWriter
}
