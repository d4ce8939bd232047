package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/scheduler/mocks"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func transferCommit(t *testing.T) *storage.Commit {
	t.Helper()
	b := storage.NewCommitBuilder("k", "user_transfer", "a", time.Now())
	b.Track(&models.Wallet{AccountID: "a", EarningsBalance: 5000})
	b.Track(&models.Wallet{AccountID: "b"})
	_, err := b.Post(models.Transaction{AccountID: "a", Type: models.USER_TRANSFER_SENT, Wallet: models.EARNINGS, Amount: 5000, Delta: -5000})
	require.NoError(t, err)
	_, err = b.Post(models.Transaction{AccountID: "b", Type: models.USER_TRANSFER_RECVD, Wallet: models.DEPOSIT, Amount: 4900, Delta: 4900})
	require.NoError(t, err)
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

func TestWalletUpdates(t *testing.T) {
	messages := WalletUpdates(transferCommit(t))

	require.Len(t, messages, 2)
	received := messages[1].Payload.(WalletUpdatePayload)
	assert.Equal(t, "b", received.UserID)
	assert.Equal(t, int64(4900), received.Change)
	assert.Equal(t, int64(4900), received.NewBalance)
	assert.Equal(t, int64(0), messages[0].Payload.(WalletUpdatePayload).NewBalance)
}

func TestPublishCommit(t *testing.T) {
	t.Run("Sends Every Update", func(t *testing.T) {
		mockClient := mocks.NewSQSAPI(t)
		mockClient.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(&sqs.SendMessageOutput{}, nil).Twice()

		PublishCommit(context.Background(), NewSQSPublisher(mockClient, "q"), slog.New(slog.NewTextHandler(io.Discard, nil)), transferCommit(t))
	})

	t.Run("Errors Are Swallowed", func(t *testing.T) {
		mockClient := mocks.NewSQSAPI(t)
		mockClient.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))

		assert.NotPanics(t, func() {
			PublishCommit(context.Background(), NewSQSPublisher(mockClient, "q"), slog.New(slog.NewTextHandler(io.Discard, nil)), transferCommit(t))
		})
	})
}
