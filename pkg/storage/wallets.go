package storage

import (
	"context"

	"github.com/chris/referral-commission-ledger/pkg/models"
)

// WalletReader defines the interface for reading wallets. Wallets are created
// together with their account and only change through a Commit.
type WalletReader interface {
	// GetWallet retrieves an account's wallet by account ID.
	GetWallet(ctx context.Context, accountID string) (*models.Wallet, error)

	// ListWallets retrieves all wallets from the storage.
	ListWallets(ctx context.Context) ([]models.Wallet, error)
}
