package wallets_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/handlers/wallets"
	"github.com/chris/referral-commission-ledger/pkg/handlers/wallets/mocks"
	"github.com/chris/referral-commission-ledger/pkg/ledgertest"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
}

func TestGetWallet(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		svc := mocks.NewWalletService(t)
		svc.On("GetWallet", mock.Anything, "alice").Return(&wallet.WalletView{
			Wallet: models.Wallet{AccountID: "alice", EarningsBalance: 4900, DepositBalance: 100},
		}, nil)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		// Act
		h.GetWallet(rr, httptest.NewRequest(http.MethodGet, "/accounts/alice/wallet", nil), "alice")

		// Assert
		require.Equal(t, http.StatusOK, rr.Code)
		var got api.WalletView
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, "49.00", got.Wallet.Earnings)
		assert.Equal(t, "1.00", got.Wallet.Deposit)
		assert.Equal(t, "0.00", got.Wallet.Holding)
	})

	t.Run("Not Found", func(t *testing.T) {
		svc := mocks.NewWalletService(t)
		svc.On("GetWallet", mock.Anything, "nobody").Return(nil, fmt.Errorf("%w: account nobody", storage.ErrNotFound))
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		h.GetWallet(rr, httptest.NewRequest(http.MethodGet, "/accounts/nobody/wallet", nil), "nobody")

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestInternalTransfer(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		svc := mocks.NewWalletService(t)
		want := wallet.InternalTransferRequest{AccountID: "alice", Direction: wallet.EarningsToDeposit, Amount: 10000, IdempotencyKey: "k1"}
		svc.On("InternalTransfer", mock.Anything, want).Return(&wallet.Result{Transactions: []models.Transaction{{ID: "t1"}, {ID: "t2"}}}, nil)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		key := "k1"
		req := post(t, "/accounts/alice/transfers/internal", api.InternalTransferRequest{Direction: "earnings_to_deposit", Amount: "100.00", IdempotencyKey: &key})
		rr := httptest.NewRecorder()

		// Act
		h.InternalTransfer(rr, req, "alice")

		// Assert
		require.Equal(t, http.StatusCreated, rr.Code)
		var got api.OperationResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Len(t, got.Transactions, 2)
		assert.False(t, got.Replayed)
	})

	t.Run("Replay Returns OK", func(t *testing.T) {
		svc := mocks.NewWalletService(t)
		svc.On("InternalTransfer", mock.Anything, mock.Anything).Return(&wallet.Result{Replayed: true}, nil)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		h.InternalTransfer(rr, post(t, "/x", api.InternalTransferRequest{Direction: "earnings_to_deposit", Amount: "1.00"}), "alice")

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Malformed Amount", func(t *testing.T) {
		svc := mocks.NewWalletService(t)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		h.InternalTransfer(rr, post(t, "/x", api.InternalTransferRequest{Direction: "earnings_to_deposit", Amount: "ten"}), "alice")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "InternalTransfer", mock.Anything, mock.Anything)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		svc := mocks.NewWalletService(t)
		svc.On("InternalTransfer", mock.Anything, mock.Anything).Return(nil, storage.ErrInsufficientFunds)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		h.InternalTransfer(rr, post(t, "/x", api.InternalTransferRequest{Direction: "earnings_to_deposit", Amount: "500.00"}), "alice")

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})
}

func TestUserTransfer(t *testing.T) {
	t.Run("Recipient Not Found", func(t *testing.T) {
		// Arrange
		svc := mocks.NewWalletService(t)
		svc.On("UserTransfer", mock.Anything, wallet.UserTransferRequest{SenderID: "alice", Recipient: "ghost@example.com", Amount: 5000}).
			Return(nil, storage.ErrRecipientNotFound)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		// Act
		h.UserTransfer(rr, post(t, "/x", api.UserTransferRequest{Recipient: "ghost@example.com", Amount: "50"}), "alice")

		// Assert
		assert.Equal(t, http.StatusNotFound, rr.Code)
		var body api.Error
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.NotEmpty(t, body.Error)
	})

	t.Run("Unknown Field Rejected", func(t *testing.T) {
		svc := mocks.NewWalletService(t)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		h.UserTransfer(rr, post(t, "/x", map[string]string{"recipient": "bob", "amount": "1", "memo": "hi"}), "alice")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		// Arrange
		svc := mocks.NewWalletService(t)
		svc.On("Withdraw", mock.Anything, wallet.WithdrawalRequest{AccountID: "alice", Amount: 1000, Address: "TXaddr"}).
			Return(&wallet.Result{Transactions: []models.Transaction{{ID: "GEM-0A1B2C3D", Status: models.PENDING}}}, nil)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		// Act
		h.Withdraw(rr, post(t, "/x", api.WithdrawalRequest{Amount: "10.00", Address: "TXaddr"}), "alice")

		// Assert
		require.Equal(t, http.StatusAccepted, rr.Code)
		var got api.OperationResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, "GEM-0A1B2C3D", got.Transactions[0].Id)
	})

	t.Run("Below Minimum", func(t *testing.T) {
		svc := mocks.NewWalletService(t)
		svc.On("Withdraw", mock.Anything, mock.Anything).Return(nil, storage.ErrBelowMinimum)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		h.Withdraw(rr, post(t, "/x", api.WithdrawalRequest{Amount: "1.00", Address: "TXaddr"}), "alice")

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})
}

func TestSettleWithdrawal(t *testing.T) {
	t.Run("Completed", func(t *testing.T) {
		// Arrange
		svc := mocks.NewWalletService(t)
		hash := "0xabc"
		svc.On("SettleWithdrawal", mock.Anything, wallet.SettlementResult{TransactionID: "GEM-1", Status: models.COMPLETED, TxHash: hash}).
			Return(&wallet.Result{}, nil)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		// Act
		h.SettleWithdrawal(rr, post(t, "/x", api.SettlementRequest{Status: "completed", TxHash: &hash}), "GEM-1")

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Conflicting Outcome", func(t *testing.T) {
		svc := mocks.NewWalletService(t)
		svc.On("SettleWithdrawal", mock.Anything, mock.Anything).Return(nil, storage.ErrConflict)
		h := wallets.NewWalletsHandler(svc, ledgertest.Discard)
		rr := httptest.NewRecorder()

		h.SettleWithdrawal(rr, post(t, "/x", api.SettlementRequest{Status: "failed"}), "GEM-1")

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}
