package scheduler

import (
	"context"
	"time"
)

// PayoutRequest asks the payout worker to send a pending withdrawal on chain.
type PayoutRequest struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Address       string    `json:"address"`
	Amount        int64     `json:"amount"`
	Fee           int64     `json:"fee"`
	RequestedAt   time.Time `json:"requested_at"`
}

// Scheduler defines the interface for a component that hands withdrawals to the payout worker.
type Scheduler interface {
	// SchedulePayout enqueues a pending withdrawal for asynchronous processing.
	SchedulePayout(ctx context.Context, req *PayoutRequest) error
}
