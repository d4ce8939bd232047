package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/app"
	"github.com/chris/referral-commission-ledger/pkg/config"
	"github.com/chris/referral-commission-ledger/pkg/logger"
	"github.com/chris/referral-commission-ledger/pkg/mapping"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/subscription"
)

// Crediter credits confirmed deposits.
type Crediter interface {
	CreditDeposit(ctx context.Context, ev subscription.DepositEvent) (*subscription.DepositResult, error)
}

// Handler consumes confirmed deposits forwarded from the payment provider's webhook.
type Handler struct {
	crediter Crediter
	logger   *slog.Logger
}

// HandleRequest credits each deposit in the batch. The provider may deliver
// the same deposit more than once; the tx hash makes the credit idempotent.
func (h *Handler) HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		var body api.DepositRequest
		if err := json.Unmarshal([]byte(message.Body), &body); err != nil {
			h.logger.Error("dropping malformed deposit message", "message_id", message.MessageId, "error", err)
			continue
		}
		ev, err := mapping.ToDomainDeposit(&body)
		if err != nil {
			h.logger.Error("dropping invalid deposit", "message_id", message.MessageId, "error", err)
			continue
		}

		result, err := h.crediter.CreditDeposit(ctx, ev)
		switch {
		case err == nil:
			h.logger.Info("deposit processed", "account_id", ev.AccountID, "tx_hash", ev.TxHash,
				"replayed", result.Replayed, "activated", result.Activation != nil, "renewed", result.Renewal != nil)
		case storage.IsRejected(err):
			h.logger.Error("deposit rejected", "account_id", ev.AccountID, "tx_hash", ev.TxHash, "error", err)
		default:
			h.logger.Warn("deposit failed, will retry", "account_id", ev.AccountID, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		}
	}
	return resp, nil
}

func main() {
	log := logger.New(false)
	cfg := config.Load(log)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	svcs, err := app.FromConfig(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialise services", "error", err)
		os.Exit(1)
	}

	h := &Handler{crediter: svcs.Subscriptions, logger: log}
	lambda.Start(h.HandleRequest)
}
