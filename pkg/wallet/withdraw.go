package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/scheduler"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/google/uuid"
)

// WithdrawalIDPrefix starts the id of every withdrawal row.
const WithdrawalIDPrefix = "GEM-"

// WithdrawalRequest asks for earnings to be paid out to an external address.
type WithdrawalRequest struct {
	AccountID      string `json:"account_id"`
	Amount         int64  `json:"amount"`
	Address        string `json:"address"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SettlementResult is the payout worker's verdict on a pending withdrawal.
type SettlementResult struct {
	TransactionID string                   `json:"transaction_id"`
	Status        models.TransactionStatus `json:"status"`
	TxHash        string                   `json:"tx_hash,omitempty"`
}

var errSettled = errors.New("withdrawal already settled")

// NewWithdrawalID returns a fresh withdrawal id such as GEM-3F9A01BC.
func NewWithdrawalID() string {
	return WithdrawalIDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// WithdrawalFee returns the fee charged on top of amount.
func WithdrawalFee(settings models.WalletSettings, amount int64) int64 {
	if settings.WithdrawalFeeMode == models.FeePercent {
		return money.Percent(amount, settings.WithdrawalFeePercent)
	}
	return settings.WithdrawalFeeFlat
}

// Withdraw debits amount plus fee from the earnings wallet into a pending
// withdrawal row and hands it to the payout worker.
func (s *Service) Withdraw(ctx context.Context, req WithdrawalRequest) (*Result, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("%w: account is required", storage.ErrValidation)
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return nil, fmt.Errorf("%w: withdrawal address is required", storage.ErrValidation)
	}
	if !money.InRange(req.Amount) {
		return nil, fmt.Errorf("%w: amount must be positive and at most %s", storage.ErrValidation, money.Format(money.MaxAmount))
	}
	settings, err := s.settings.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	if req.Amount < settings.MinWithdrawalAmount {
		return nil, fmt.Errorf("%w: minimum withdrawal is %s", storage.ErrBelowMinimum, money.Format(settings.MinWithdrawalAmount))
	}
	fee := WithdrawalFee(settings, req.Amount)
	if fee < 0 || fee > math.MaxInt64-req.Amount {
		return nil, fmt.Errorf("%w: withdrawal fee out of range", storage.ErrValidation)
	}
	total := req.Amount + fee

	eventID := scopedEventID("withdraw", req.AccountID, req.IdempotencyKey)
	result, err := s.commit(ctx, "withdrawal", eventID, func() (*storage.Commit, []models.Transaction, error) {
		w, err := s.store.GetWallet(ctx, req.AccountID)
		if err != nil {
			return nil, nil, err
		}
		if w.EarningsBalance < req.Amount || w.EarningsBalance-req.Amount < fee {
			return nil, nil, fmt.Errorf("%w: earnings wallet holds %s, %s required including fee", storage.ErrInsufficientFunds, money.Format(w.EarningsBalance), money.Format(total))
		}
		b := storage.NewCommitBuilder(eventID, string(models.WITHDRAWAL), req.AccountID, s.clock.Now().UTC())
		b.Track(w)
		tx, err := b.Post(models.Transaction{
			ID:          NewWithdrawalID(),
			AccountID:   req.AccountID,
			Type:        models.WITHDRAWAL,
			Wallet:      models.EARNINGS,
			Amount:      req.Amount,
			Fee:         fee,
			Delta:       -total,
			Status:      models.PENDING,
			Address:     req.Address,
			Description: "Withdrawal to " + req.Address,
		})
		if err != nil {
			return nil, nil, err
		}
		c, err := b.Build()
		return c, []models.Transaction{tx}, err
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		return result, nil
	}

	tx := result.Transactions[0]
	s.logger.Info("withdrawal requested", "transaction_id", tx.ID, "account_id", tx.AccountID, "amount", tx.Amount, "fee", tx.Fee)
	s.schedule(ctx, &tx)
	return result, nil
}

// schedule hands a pending withdrawal to the payout worker. A failure leaves
// the row pending for RequeueStuckWithdrawals.
func (s *Service) schedule(ctx context.Context, tx *models.Transaction) {
	if s.scheduler == nil {
		return
	}
	err := s.scheduler.SchedulePayout(ctx, &scheduler.PayoutRequest{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Address:       tx.Address,
		Amount:        tx.Amount,
		Fee:           tx.Fee,
		RequestedAt:   tx.CreatedAt,
	})
	if err != nil {
		s.logger.Error("withdrawal created but failed to enqueue", "transaction_id", tx.ID, "error", err)
	}
}

// RequeueStuckWithdrawals re-sends every withdrawal pending for longer than
// maxAge to the payout worker and returns how many were sent.
func (s *Service) RequeueStuckWithdrawals(ctx context.Context, maxAge time.Duration) (int, error) {
	stuck, err := s.store.GetStuckWithdrawals(ctx, s.clock.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck withdrawals: %w", err)
	}
	for i := range stuck {
		s.logger.Warn("re-enqueueing stuck withdrawal", "transaction_id", stuck[i].ID, "created_at", stuck[i].CreatedAt)
		s.schedule(ctx, &stuck[i])
	}
	return len(stuck), nil
}

// SettleWithdrawal moves a pending withdrawal to completed, or to failed with
// a reversal crediting amount plus fee back to earnings. Settling again with
// the same outcome is a no-op; a different outcome is a conflict.
func (s *Service) SettleWithdrawal(ctx context.Context, res SettlementResult) (*Result, error) {
	if res.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", storage.ErrValidation)
	}
	if res.Status != models.COMPLETED && res.Status != models.FAILED {
		return nil, fmt.Errorf("%w: cannot settle a withdrawal as %q", storage.ErrValidation, res.Status)
	}

	eventID := "settle:" + res.TransactionID
	result, err := s.commit(ctx, "settlement", eventID, func() (*storage.Commit, []models.Transaction, error) {
		tx, err := s.store.GetTransaction(ctx, res.TransactionID)
		if err != nil {
			return nil, nil, err
		}
		if tx.Type != models.WITHDRAWAL {
			return nil, nil, fmt.Errorf("%w: transaction %s is a %s", storage.ErrValidation, tx.ID, tx.Type)
		}
		if tx.Status != models.PENDING {
			return nil, nil, errSettled
		}

		now := s.clock.Now().UTC()
		b := storage.NewCommitBuilder(eventID, "settlement", tx.AccountID, now)
		b.UpdateStatus(storage.StatusUpdate{TransactionID: tx.ID, From: models.PENDING, To: res.Status, TxHash: res.TxHash})
		settled := *tx
		settled.Status = res.Status
		settled.UpdatedAt = now
		if res.TxHash != "" {
			settled.TxHash = res.TxHash
		}
		txs := []models.Transaction{settled}

		if res.Status == models.FAILED {
			w, err := s.store.GetWallet(ctx, tx.AccountID)
			if err != nil {
				return nil, nil, err
			}
			b.Track(w)
			refund := tx.Amount + tx.Fee
			reversal, err := b.Post(models.Transaction{
				AccountID:                tx.AccountID,
				Type:                     models.WITHDRAWAL_REVERSAL,
				Wallet:                   models.EARNINGS,
				Amount:                   refund,
				Delta:                    refund,
				CounterpartTransactionID: tx.ID,
				Description:              fmt.Sprintf("Withdrawal %s failed, %s returned", tx.ID, money.Format(refund)),
			})
			if err != nil {
				return nil, nil, err
			}
			txs = append(txs, reversal)
		}
		c, err := b.Build()
		return c, txs, err
	})
	if errors.Is(err, errSettled) || (err == nil && result.Replayed) {
		return s.alreadySettled(ctx, res)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("withdrawal settled", "transaction_id", res.TransactionID, "status", res.Status, "tx_hash", res.TxHash)
	return result, nil
}

func (s *Service) alreadySettled(ctx context.Context, res SettlementResult) (*Result, error) {
	tx, err := s.store.GetTransaction(ctx, res.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != res.Status {
		return nil, fmt.Errorf("%w: withdrawal %s is already %s", storage.ErrConflict, tx.ID, tx.Status)
	}
	return &Result{Transactions: []models.Transaction{*tx}, Replayed: true}, nil
}
