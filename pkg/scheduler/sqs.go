package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used to enqueue messages.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ SQSAPI = (*sqs.Client)(nil)

// SQSScheduler implements the Scheduler interface using AWS SQS.
type SQSScheduler struct {
	Client   SQSAPI
	QueueURL string
}

// NewSQSScheduler creates a new SQSScheduler.
func NewSQSScheduler(client SQSAPI, queueURL string) *SQSScheduler {
	return &SQSScheduler{
		Client:   client,
		QueueURL: queueURL,
	}
}

// Make sure we conform to the interface
var _ Scheduler = (*SQSScheduler)(nil)

// SchedulePayout sends the payout request to an SQS queue.
func (s *SQSScheduler) SchedulePayout(ctx context.Context, req *PayoutRequest) error {
	// Marshal the request to JSON.
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal payout request for SQS: %w", err)
	}

	// Send the message to SQS.
	_, err = s.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"transaction_id": {DataType: aws.String("String"), StringValue: aws.String(req.TransactionID)},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	return nil
}

// LogScheduler only logs payout requests. It stands in for the queue when
// running locally without AWS.
type LogScheduler struct {
	Logger *slog.Logger
}

var _ Scheduler = (*LogScheduler)(nil)

// SchedulePayout logs the request.
func (s *LogScheduler) SchedulePayout(ctx context.Context, req *PayoutRequest) error {
	s.Logger.Info("payout scheduled", "transaction_id", req.TransactionID, "account_id", req.AccountID, "amount", req.Amount)
	return nil
}
