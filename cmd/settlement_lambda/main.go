package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/referral-commission-ledger/pkg/app"
	"github.com/chris/referral-commission-ledger/pkg/config"
	"github.com/chris/referral-commission-ledger/pkg/logger"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/wallet"
)

// Settler records payout outcomes.
type Settler interface {
	SettleWithdrawal(ctx context.Context, res wallet.SettlementResult) (*wallet.Result, error)
}

// Handler consumes payout outcomes reported by the payment worker.
type Handler struct {
	settler Settler
	logger  *slog.Logger
}

// HandleRequest settles each withdrawal in the batch. Messages that fail
// transiently are reported back so SQS redelivers only those.
func (h *Handler) HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		var res wallet.SettlementResult
		if err := json.Unmarshal([]byte(message.Body), &res); err != nil {
			h.logger.Error("dropping malformed settlement message", "message_id", message.MessageId, "error", err)
			continue
		}

		result, err := h.settler.SettleWithdrawal(ctx, res)
		switch {
		case err == nil:
			h.logger.Info("withdrawal settled", "transaction_id", res.TransactionID, "status", res.Status, "replayed", result.Replayed)
		case storage.IsRejected(err):
			h.logger.Error("settlement rejected", "transaction_id", res.TransactionID, "status", res.Status, "error", err)
		default:
			h.logger.Warn("settlement failed, will retry", "transaction_id", res.TransactionID, "error", err)
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

	h := &Handler{settler: svcs.Wallets, logger: log}
	lambda.Start(h.HandleRequest)
}
