package wallet

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/ledgertest"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/scheduler"
	scheduler_mocks "github.com/chris/referral-commission-ledger/pkg/scheduler/mocks"
	"github.com/chris/referral-commission-ledger/pkg/settings"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/storage/memory"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memory.Store
	clock     *clockwork.FakeClock
	settings  *settings.Service
	scheduler *scheduler_mocks.Scheduler
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := ledgertest.NewClock()
	cfg := settings.NewService(store, store, clock, ledgertest.Discard)
	sched := scheduler_mocks.NewScheduler(t)
	return &fixture{
		store:     store,
		clock:     clock,
		settings:  cfg,
		scheduler: sched,
		svc:       NewService(store, cfg, sched, clock, ledgertest.Discard),
	}
}

func (f *fixture) seed(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		ledgertest.Seed(t, f.store, f.clock.Now(), ledgertest.Member{ID: id})
	}
}

func (f *fixture) fund(t *testing.T, id string, kind models.WalletKind, amount int64) {
	t.Helper()
	ledgertest.Fund(t, f.store, f.clock.Now(), id, kind, amount)
}

func (f *fixture) configure(t *testing.T, change func(w *models.WalletSettings)) {
	t.Helper()
	w := settings.DefaultWallet()
	change(&w)
	_, err := f.settings.UpdateWallet(context.Background(), w)
	require.NoError(t, err)
}

func TestInternalTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("Earnings To Deposit", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)

		// Act
		result, err := f.svc.InternalTransfer(ctx, InternalTransferRequest{AccountID: "alice", Direction: EarningsToDeposit, Amount: 10000})

		// Assert
		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)
		debit, credit := result.Transactions[0], result.Transactions[1]
		assert.Equal(t, int64(-10000), debit.Delta)
		assert.Equal(t, int64(100), debit.Fee)
		assert.Equal(t, int64(9900), credit.Delta)
		assert.Equal(t, credit.ID, debit.CounterpartTransactionID)
		assert.Equal(t, debit.ID, credit.CounterpartTransactionID)

		w := ledgertest.Wallet(t, f.store, "alice")
		assert.Equal(t, int64(10000), w.EarningsBalance)
		assert.Equal(t, int64(9900), w.DepositBalance)
		ledgertest.RequireReconciled(t, f.store, "alice")
	})

	t.Run("Deposit To Earnings", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.DEPOSIT, 5000)
		f.configure(t, func(w *models.WalletSettings) { w.DepositToEarningsFee = decimal.NewFromInt(10) })

		// Act
		_, err := f.svc.InternalTransfer(ctx, InternalTransferRequest{AccountID: "alice", Direction: DepositToEarnings, Amount: 5000})

		// Assert
		require.NoError(t, err)
		w := ledgertest.Wallet(t, f.store, "alice")
		assert.Zero(t, w.DepositBalance)
		assert.Equal(t, int64(4500), w.EarningsBalance)
	})

	t.Run("Below Minimum", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)

		// Act
		_, err := f.svc.InternalTransfer(ctx, InternalTransferRequest{AccountID: "alice", Direction: EarningsToDeposit, Amount: 50})

		// Assert
		assert.ErrorIs(t, err, storage.ErrBelowMinimum)
		assert.Len(t, ledgertest.Transactions(t, f.store, "alice"), 1)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 999)

		// Act
		_, err := f.svc.InternalTransfer(ctx, InternalTransferRequest{AccountID: "alice", Direction: EarningsToDeposit, Amount: 1000})

		// Assert
		assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
		assert.Equal(t, int64(999), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
	})

	t.Run("Unknown Direction", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.InternalTransfer(ctx, InternalTransferRequest{AccountID: "alice", Direction: "holding_to_deposit", Amount: 1000})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Replay", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)
		req := InternalTransferRequest{AccountID: "alice", Direction: EarningsToDeposit, Amount: 1000, IdempotencyKey: "k1"}

		// Act
		first, err := f.svc.InternalTransfer(ctx, req)
		require.NoError(t, err)
		second, err := f.svc.InternalTransfer(ctx, req)

		// Assert
		require.NoError(t, err)
		assert.False(t, first.Replayed)
		assert.True(t, second.Replayed)
		assert.Equal(t, int64(19000), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
	})
}

func TestUserTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice", "bob")
		f.fund(t, "alice", models.DEPOSIT, 10000)
		f.configure(t, func(w *models.WalletSettings) { w.UserTransferFee = decimal.NewFromInt(2) })

		// Act
		result, err := f.svc.UserTransfer(ctx, UserTransferRequest{SenderID: "alice", Recipient: "BOB@example.com", Amount: 5000})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(5000), ledgertest.Wallet(t, f.store, "alice").DepositBalance)
		assert.Equal(t, int64(4900), ledgertest.Wallet(t, f.store, "bob").DepositBalance)

		require.Len(t, result.Transactions, 2)
		sent, received := result.Transactions[0], result.Transactions[1]
		assert.Equal(t, models.USER_TRANSFER_SENT, sent.Type)
		assert.Equal(t, models.USER_TRANSFER_RECVD, received.Type)
		assert.Equal(t, "bob", sent.CounterpartAccountID)
		assert.Equal(t, "alice", received.CounterpartAccountID)
		assert.Equal(t, received.ID, sent.CounterpartTransactionID)
		assert.Equal(t, sent.ID, received.CounterpartTransactionID)
		assert.Equal(t, int64(100), sent.Fee)
		ledgertest.RequireReconciled(t, f.store, "alice")
		ledgertest.RequireReconciled(t, f.store, "bob")
	})

	t.Run("By Referral Code", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice", "bob")
		f.fund(t, "alice", models.DEPOSIT, 10000)

		// Act
		_, err := f.svc.UserTransfer(ctx, UserTransferRequest{SenderID: "alice", Recipient: "rbob", Amount: 1000})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(990), ledgertest.Wallet(t, f.store, "bob").DepositBalance)
	})

	t.Run("Recipient Not Found", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.DEPOSIT, 10000)

		_, err := f.svc.UserTransfer(ctx, UserTransferRequest{SenderID: "alice", Recipient: "nobody@example.com", Amount: 1000})

		assert.ErrorIs(t, err, storage.ErrRecipientNotFound)
		assert.Equal(t, int64(10000), ledgertest.Wallet(t, f.store, "alice").DepositBalance)
	})

	t.Run("Self Transfer", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.DEPOSIT, 10000)

		_, err := f.svc.UserTransfer(ctx, UserTransferRequest{SenderID: "alice", Recipient: "RALICE", Amount: 1000})

		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice", "bob")
		f.fund(t, "alice", models.EARNINGS, 10000)

		_, err := f.svc.UserTransfer(ctx, UserTransferRequest{SenderID: "alice", Recipient: "bob@example.com", Amount: 1000})

		assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
		assert.Zero(t, ledgertest.Wallet(t, f.store, "bob").DepositBalance)
	})

	t.Run("Concurrent Transfers Never Overdraw", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice", "bob", "carol")
		f.fund(t, "alice", models.DEPOSIT, 10000)
		f.svc.WithRetry(storage.RetryConfig{MaxAttempts: 50, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

		// Act
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				to := "bob@example.com"
				if i%2 == 0 {
					to = "carol@example.com"
				}
				_, err := f.svc.UserTransfer(ctx, UserTransferRequest{SenderID: "alice", Recipient: to, Amount: 2500})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)

		// Assert
		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, storage.ErrInsufficientFunds) || errors.Is(err, storage.ErrBusy), "unexpected error: %v", err)
		}
		w := ledgertest.Wallet(t, f.store, "alice")
		assert.Equal(t, int64(10000-2500*succeeded), w.DepositBalance)
		assert.GreaterOrEqual(t, w.DepositBalance, int64(0))
		for _, id := range []string{"alice", "bob", "carol"} {
			ledgertest.RequireReconciled(t, f.store, id)
		}
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)
		f.scheduler.On("SchedulePayout", mock.Anything, mock.MatchedBy(func(r *scheduler.PayoutRequest) bool {
			return r.AccountID == "alice" && r.Amount == 10000 && r.Fee == 200 && r.Address == "TXaddr"
		})).Return(nil).Once()

		// Act
		result, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000, Address: " TXaddr "})

		// Assert
		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		tx := result.Transactions[0]
		assert.True(t, strings.HasPrefix(tx.ID, WithdrawalIDPrefix))
		assert.Len(t, tx.ID, len(WithdrawalIDPrefix)+8)
		assert.Equal(t, models.PENDING, tx.Status)
		assert.Equal(t, int64(-10200), tx.Delta)
		assert.Equal(t, int64(9800), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
		ledgertest.RequireReconciled(t, f.store, "alice")
	})

	t.Run("Percent Fee", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)
		f.configure(t, func(w *models.WalletSettings) {
			w.WithdrawalFeeMode = models.FeePercent
			w.WithdrawalFeePercent = decimal.RequireFromString("2.5")
		})
		f.scheduler.On("SchedulePayout", mock.Anything, mock.Anything).Return(nil).Once()

		// Act
		result, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000, Address: "TXaddr"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(250), result.Transactions[0].Fee)
		assert.Equal(t, int64(9750), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
	})

	t.Run("Below Minimum", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)

		// Act
		_, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 500, Address: "TXaddr"})

		// Assert
		assert.ErrorIs(t, err, storage.ErrBelowMinimum)
		assert.Equal(t, int64(20000), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
		assert.Len(t, ledgertest.Transactions(t, f.store, "alice"), 1)
		f.scheduler.AssertNotCalled(t, "SchedulePayout", mock.Anything, mock.Anything)
	})

	t.Run("Fee Not Covered", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 10100)

		_, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000, Address: "TXaddr"})

		assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
	})

	t.Run("Amount Plus Fee Overflows", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")

		// Act
		_, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: math.MaxInt64 - 1, Address: "TXaddr"})

		// Assert
		assert.ErrorIs(t, err, storage.ErrValidation)
		assert.Equal(t, int64(0), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
		assert.Empty(t, ledgertest.Transactions(t, f.store, "alice"))
		f.scheduler.AssertNotCalled(t, "SchedulePayout", mock.Anything, mock.Anything)
	})

	t.Run("Largest Amount Still Checks Balance", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)

		_, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: money.MaxAmount, Address: "TXaddr"})

		assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
		assert.Equal(t, int64(20000), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
	})

	t.Run("Missing Address", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Enqueue Failure Keeps Withdrawal", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)
		f.scheduler.On("SchedulePayout", mock.Anything, mock.Anything).Return(errors.New("queue down")).Once()

		// Act
		result, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000, Address: "TXaddr"})

		// Assert
		require.NoError(t, err)
		stored, err := f.store.GetTransaction(ctx, result.Transactions[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.PENDING, stored.Status)
	})
}

func TestSettleWithdrawal(t *testing.T) {
	ctx := context.Background()

	pending := func(t *testing.T) (*fixture, models.Transaction) {
		t.Helper()
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 20000)
		f.scheduler.On("SchedulePayout", mock.Anything, mock.Anything).Return(nil)
		result, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000, Address: "TXaddr"})
		require.NoError(t, err)
		return f, result.Transactions[0]
	}

	t.Run("Completed", func(t *testing.T) {
		// Arrange
		f, tx := pending(t)

		// Act
		result, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: tx.ID, Status: models.COMPLETED, TxHash: "0xabc"})

		// Assert
		require.NoError(t, err)
		assert.False(t, result.Replayed)
		stored, err := f.store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.COMPLETED, stored.Status)
		assert.Equal(t, "0xabc", stored.TxHash)
		assert.Equal(t, int64(9800), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
	})

	t.Run("Failed Reverses Amount And Fee", func(t *testing.T) {
		// Arrange
		f, tx := pending(t)

		// Act
		result, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: tx.ID, Status: models.FAILED})

		// Assert
		require.NoError(t, err)
		require.Len(t, result.Transactions, 2)
		reversal := result.Transactions[1]
		assert.Equal(t, models.WITHDRAWAL_REVERSAL, reversal.Type)
		assert.Equal(t, int64(10200), reversal.Delta)
		assert.Equal(t, tx.ID, reversal.CounterpartTransactionID)
		assert.Equal(t, int64(20000), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
		ledgertest.RequireReconciled(t, f.store, "alice")
	})

	t.Run("Same Outcome Is A No-op", func(t *testing.T) {
		// Arrange
		f, tx := pending(t)
		_, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: tx.ID, Status: models.FAILED})
		require.NoError(t, err)

		// Act
		result, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: tx.ID, Status: models.FAILED})

		// Assert
		require.NoError(t, err)
		assert.True(t, result.Replayed)
		assert.Equal(t, int64(20000), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
	})

	t.Run("Different Outcome Conflicts", func(t *testing.T) {
		// Arrange
		f, tx := pending(t)
		_, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: tx.ID, Status: models.COMPLETED})
		require.NoError(t, err)

		// Act
		_, err = f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: tx.ID, Status: models.FAILED})

		// Assert
		assert.ErrorIs(t, err, storage.ErrConflict)
		assert.Equal(t, int64(9800), ledgertest.Wallet(t, f.store, "alice").EarningsBalance)
	})

	t.Run("Not A Withdrawal", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice")
		f.fund(t, "alice", models.EARNINGS, 100)
		deposit := ledgertest.Transactions(t, f.store, "alice")[0]

		_, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: deposit.ID, Status: models.COMPLETED})

		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Not Found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: "GEM-00000000", Status: models.COMPLETED})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Invalid Status", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SettleWithdrawal(ctx, SettlementResult{TransactionID: "GEM-00000000", Status: models.PENDING})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})
}

func TestRequeueStuckWithdrawals(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "alice")
	f.fund(t, "alice", models.EARNINGS, 50000)
	f.scheduler.On("SchedulePayout", mock.Anything, mock.Anything).Return(nil)

	old, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000, Address: "TXaddr"})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 10000, Address: "TXaddr"})
	require.NoError(t, err)

	// Act
	n, err := f.svc.RequeueStuckWithdrawals(ctx, time.Hour)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.scheduler.AssertNumberOfCalls(t, "SchedulePayout", 3)
	f.scheduler.AssertCalled(t, "SchedulePayout", mock.Anything, mock.MatchedBy(func(r *scheduler.PayoutRequest) bool {
		return r.TransactionID == old.Transactions[0].ID
	}))
}

func TestGetWallet(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "alice")
	f.fund(t, "alice", models.EARNINGS, 20000)
	f.scheduler.On("SchedulePayout", mock.Anything, mock.Anything).Return(nil)
	_, err := f.svc.Withdraw(ctx, WithdrawalRequest{AccountID: "alice", Amount: 5000, Address: "TXaddr"})
	require.NoError(t, err)

	// Act
	view, err := f.svc.GetWallet(ctx, "alice")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(14800), view.Wallet.EarningsBalance)
	assert.Len(t, view.Withdrawals, 1)
	assert.Len(t, view.Deposits, 1)

	t.Run("Not Found", func(t *testing.T) {
		_, err := f.svc.GetWallet(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestTransactions(t *testing.T) {
	f := newFixture(t)

	t.Run("Unknown Type", func(t *testing.T) {
		_, err := f.svc.Transactions(context.Background(), storage.TransactionFilter{Type: "bonus"})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Global Feed", func(t *testing.T) {
		f.seed(t, "alice", "bob")
		f.fund(t, "alice", models.DEPOSIT, 100)
		f.fund(t, "bob", models.DEPOSIT, 100)

		page, err := f.svc.Transactions(context.Background(), storage.TransactionFilter{})

		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, "bob", page.Items[0].AccountID)
	})
}
