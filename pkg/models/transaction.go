package models

import "time"

// TransactionStatus defines the possible states of a transaction.
type TransactionStatus string

const (
	PENDING   TransactionStatus = "pending"
	COMPLETED TransactionStatus = "completed"
	FAILED    TransactionStatus = "failed"
)

// TransactionType classifies a ledger row.
type TransactionType string

const (
	ACTIVATION          TransactionType = "activation"
	RENEWAL             TransactionType = "renewal"
	LEVEL_INCOME        TransactionType = "level_income"
	ADDITIONAL_INCOME   TransactionType = "additional_income"
	WITHDRAWAL          TransactionType = "withdrawal"
	WITHDRAWAL_REVERSAL TransactionType = "withdrawal_reversal"
	INTERNAL_TRANSFER   TransactionType = "internal_transfer"
	USER_TRANSFER_SENT  TransactionType = "user_transfer_sent"
	USER_TRANSFER_RECVD TransactionType = "user_transfer_received"
	DEPOSIT_CREDIT      TransactionType = "deposit"
	GRACE_RELEASE       TransactionType = "grace_release"
	GRACE_FORFEIT       TransactionType = "grace_forfeit"
)

// TransactionTypes lists every known type, used to validate feed filters.
var TransactionTypes = []TransactionType{
	ACTIVATION, RENEWAL, LEVEL_INCOME, ADDITIONAL_INCOME, WITHDRAWAL, WITHDRAWAL_REVERSAL,
	INTERNAL_TRANSFER, USER_TRANSFER_SENT, USER_TRANSFER_RECVD, DEPOSIT_CREDIT, GRACE_RELEASE, GRACE_FORFEIT,
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsIncome reports whether the type is commission income.
func (t TransactionType) IsIncome() bool {
	return t == LEVEL_INCOME || t == ADDITIONAL_INCOME
}

// TransactionsPartition is the constant partition key of the global feed index.
const TransactionsPartition = "TRANSACTIONS"

// Transaction is an append-only ledger row. Delta is the signed change it applied
// to Wallet when it was posted; summing Delta per wallet yields the balance.
type Transaction struct {
	ID                       string            `json:"id" dynamodbav:"id"`
	AccountID                string            `json:"account_id" dynamodbav:"account_id"`
	Type                     TransactionType   `json:"type" dynamodbav:"type"`
	Wallet                   WalletKind        `json:"wallet" dynamodbav:"wallet"`
	Amount                   int64             `json:"amount" dynamodbav:"amount"`
	Fee                      int64             `json:"fee" dynamodbav:"fee"`
	Delta                    int64             `json:"delta" dynamodbav:"delta"`
	Level                    *int              `json:"level,omitempty" dynamodbav:"level,omitempty"`
	CounterpartAccountID     string            `json:"counterpart_account_id,omitempty" dynamodbav:"counterpart_account_id,omitempty"`
	CounterpartTransactionID string            `json:"counterpart_transaction_id,omitempty" dynamodbav:"counterpart_transaction_id,omitempty"`
	EventID                  string            `json:"event_id,omitempty" dynamodbav:"event_id,omitempty"`
	Status                   TransactionStatus `json:"status" dynamodbav:"status"`
	Description              string            `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Address                  string            `json:"address,omitempty" dynamodbav:"address,omitempty"`
	TxHash                   string            `json:"tx_hash,omitempty" dynamodbav:"tx_hash,omitempty"`
	CreatedAt                time.Time         `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt                time.Time         `json:"updated_at" dynamodbav:"updated_at"`
	GSI1PK                   string            `json:"-" dynamodbav:"gsi1pk"`
}
