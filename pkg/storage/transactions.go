package storage

import (
	"context"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
)

// DefaultPageSize is used when a feed request does not specify a limit.
const DefaultPageSize = 20

// MaxPageSize caps a single feed page.
const MaxPageSize = 100

// TransactionFilter narrows a transaction feed. An empty AccountID selects the
// platform-wide feed.
type TransactionFilter struct {
	AccountID string
	Type      models.TransactionType
	Limit     int32
	Cursor    string
}

// TransactionPage is one page of a feed, newest first.
type TransactionPage struct {
	Items      []models.Transaction
	NextCursor string
}

// TransactionReader defines the interface for reading transaction data.
type TransactionReader interface {
	// GetTransaction retrieves a transaction by its ID.
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)

	// ListTransactions returns a page of the user-scoped or global feed.
	ListTransactions(ctx context.Context, filter TransactionFilter) (*TransactionPage, error)

	// GetStuckWithdrawals retrieves withdrawals still pending that were created before cutoff.
	GetStuckWithdrawals(ctx context.Context, cutoff time.Time) ([]models.Transaction, error)
}

// NormalizeLimit clamps a requested page size.
func NormalizeLimit(limit int32) int32 {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
