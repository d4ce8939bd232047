// Package notify publishes wallet change events for push delivery to clients.
package notify

import (
	"context"
	"log/slog"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// MessageType defines the type of a notification.
type MessageType string

const (
	// MessageTypeWalletUpdate is for messages that update wallet balances.
	MessageTypeWalletUpdate MessageType = "walletUpdate"
)

// Message represents a generic notification.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// WalletUpdatePayload is the payload for a walletUpdate message.
type WalletUpdatePayload struct {
	UserID          string                 `json:"user_id"`
	TransactionID   string                 `json:"transaction_id"`
	TransactionType models.TransactionType `json:"transaction_type"`
	Wallet          models.WalletKind      `json:"wallet"`
	Change          int64                  `json:"change"`
	NewBalance      int64                  `json:"new_balance"`
}

// Publisher defines the interface for publishing notifications.
type Publisher interface {
	Publish(ctx context.Context, message Message) error
}

// NoOpPublisher discards every message.
type NoOpPublisher struct{}

// Publish does nothing.
func (NoOpPublisher) Publish(context.Context, Message) error { return nil }

// WalletUpdates builds one walletUpdate message per transaction of a
// committed commit. NewBalance is the balance after the whole commit.
func WalletUpdates(c *storage.Commit) []Message {
	balances := map[string]models.Wallet{}
	for _, u := range c.Wallets {
		balances[u.Wallet.AccountID] = u.Wallet
	}
	messages := make([]Message, 0, len(c.Transactions))
	for _, tx := range c.Transactions {
		w := balances[tx.AccountID]
		messages = append(messages, Message{
			Type: MessageTypeWalletUpdate,
			Payload: WalletUpdatePayload{
				UserID:          tx.AccountID,
				TransactionID:   tx.ID,
				TransactionType: tx.Type,
				Wallet:          tx.Wallet,
				Change:          tx.Delta,
				NewBalance:      w.Balance(tx.Wallet),
			},
		})
	}
	return messages
}

// PublishCommit publishes the wallet updates of c. Failures are logged and
// never undo the commit.
func PublishCommit(ctx context.Context, p Publisher, logger *slog.Logger, c *storage.Commit) {
	if p == nil {
		return
	}
	for _, m := range WalletUpdates(c) {
		if err := p.Publish(ctx, m); err != nil {
			logger.Error("failed to publish wallet update", "event_id", c.EventID, "error", err)
		}
	}
}
