package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/referral-commission-ledger/pkg/scheduler"
	"github.com/chris/referral-commission-ledger/pkg/scheduler/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSchedulePayout(t *testing.T) {
	req := &scheduler.PayoutRequest{TransactionID: "GEM-0A1B2C3D", AccountID: "acct", Address: "TXyz", Amount: 4800, Fee: 200}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockClient := mocks.NewSQSAPI(t)
		mockClient.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			var got scheduler.PayoutRequest
			if err := json.Unmarshal([]byte(*in.MessageBody), &got); err != nil {
				return false
			}
			return *in.QueueUrl == "https://queue" && got.TransactionID == req.TransactionID && got.Amount == 4800
		}), mock.Anything).Return(&sqs.SendMessageOutput{}, nil)

		// Act
		err := scheduler.NewSQSScheduler(mockClient, "https://queue").SchedulePayout(context.Background(), req)

		// Assert
		require.NoError(t, err)
	})

	t.Run("Send Error", func(t *testing.T) {
		// Arrange
		mockClient := mocks.NewSQSAPI(t)
		mockClient.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		// Act
		err := scheduler.NewSQSScheduler(mockClient, "https://queue").SchedulePayout(context.Background(), req)

		// Assert
		assert.ErrorContains(t, err, "failed to send message to SQS")
	})
}
