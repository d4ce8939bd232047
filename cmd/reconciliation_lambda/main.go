package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/referral-commission-ledger/pkg/app"
	"github.com/chris/referral-commission-ledger/pkg/config"
	"github.com/chris/referral-commission-ledger/pkg/logger"
	"github.com/chris/referral-commission-ledger/pkg/subscription"
)

// Sweeper advances subscription lifecycles.
type Sweeper interface {
	Sweep(ctx context.Context) (*subscription.SweepResult, error)
}

// Requeuer re-enqueues withdrawals whose payout was never confirmed.
type Requeuer interface {
	RequeueStuckWithdrawals(ctx context.Context, maxAge time.Duration) (int, error)
}

// Handler runs the periodic maintenance jobs.
type Handler struct {
	sweeper  Sweeper
	requeuer Requeuer
	maxAge   time.Duration
	logger   *slog.Logger
}

// HandleRequest is triggered by an EventBridge Schedule. Both jobs run even if
// the first fails; the first error is returned so the invocation is marked failed.
func (h *Handler) HandleRequest(ctx context.Context) error {
	h.logger.Info("starting reconciliation")

	var firstErr error
	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		h.logger.Error("sweep failed", "error", err)
		firstErr = err
	} else {
		h.logger.Info("sweep finished", "renewed", result.Renewed, "entered_grace", result.EnteredGrace,
			"compressed", result.Compressed, "forfeited_total", result.ForfeitedTotal)
	}

	requeued, err := h.requeuer.RequeueStuckWithdrawals(ctx, h.maxAge)
	if err != nil {
		h.logger.Error("requeue of stuck withdrawals failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	} else if requeued > 0 {
		h.logger.Info("stuck withdrawals re-enqueued", "count", requeued)
	}

	h.logger.Info("reconciliation finished")
	return firstErr
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

	h := &Handler{sweeper: svcs.Subscriptions, requeuer: svcs.Wallets, maxAge: cfg.StuckWithdrawalAge, logger: log}
	lambda.Start(h.HandleRequest)
}
