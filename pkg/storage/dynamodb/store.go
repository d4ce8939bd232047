package dynamodb

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// Tables names every DynamoDB table the store uses.
type Tables struct {
	Accounts     string
	Wallets      string
	Transactions string
	Settings     string
	Events       string
	Lookups      string
}

// Validate reports whether every table name is set.
func (t Tables) Validate() error {
	if t.Accounts == "" || t.Wallets == "" || t.Transactions == "" || t.Settings == "" || t.Events == "" || t.Lookups == "" {
		return errors.New("one or more DynamoDB table names are not set")
	}
	return nil
}

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client DynamoDBAPI
	Tables Tables
}

// New creates a new Store.
func New(client DynamoDBAPI, tables Tables) *Store {
	return &Store{
		Client: client,
		Tables: tables,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

const (
	sponsorIndex      = "sponsor_id-index"
	statusIndex       = "status-index"
	accountFeedIndex  = "account_id-created_at-index"
	globalFeedIndex   = "gsi1pk-created_at-index"
	txStatusIndex     = "status-created_at-index"
	conditionalFailed = "ConditionalCheckFailed"
)

// cancellationCodes returns the per-item cancellation codes of a cancelled
// transaction, or nil if err is not a TransactionCanceledException.
func cancellationCodes(err error) []string {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	codes := make([]string, len(tce.CancellationReasons))
	for i, reason := range tce.CancellationReasons {
		if reason.Code != nil {
			codes[i] = *reason.Code
		}
	}
	return codes
}
