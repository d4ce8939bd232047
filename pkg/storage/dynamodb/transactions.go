package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// GetTransaction retrieves a transaction from DynamoDB by its ID.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": txID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Transactions),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("%w: transaction %s", storage.ErrNotFound, txID)
	}

	var tx models.Transaction
	if err := attributevalue.UnmarshalMap(result.Item, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	return &tx, nil
}

// ListTransactions pages through the user feed index or the global feed index,
// newest first. A type filter is applied server side, so a page is filled by
// issuing further queries until the limit is reached or the index is exhausted.
func (s *Store) ListTransactions(ctx context.Context, filter storage.TransactionFilter) (*storage.TransactionPage, error) {
	startKey, err := decodeCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Tables.Transactions),
		ScanIndexForward:          aws.Bool(false),
		ExpressionAttributeValues: map[string]types.AttributeValue{},
	}
	if filter.AccountID != "" {
		input.IndexName = aws.String(accountFeedIndex)
		input.KeyConditionExpression = aws.String("account_id = :pk")
		input.ExpressionAttributeValues[":pk"] = &types.AttributeValueMemberS{Value: filter.AccountID}
	} else {
		input.IndexName = aws.String(globalFeedIndex)
		input.KeyConditionExpression = aws.String("gsi1pk = :pk")
		input.ExpressionAttributeValues[":pk"] = &types.AttributeValueMemberS{Value: models.TransactionsPartition}
	}
	if filter.Type != "" {
		input.FilterExpression = aws.String("#type = :type")
		input.ExpressionAttributeNames = map[string]string{"#type": "type"}
		input.ExpressionAttributeValues[":type"] = &types.AttributeValueMemberS{Value: string(filter.Type)}
	}

	limit := storage.NormalizeLimit(filter.Limit)
	page := &storage.TransactionPage{Items: []models.Transaction{}}
	for {
		input.Limit = aws.Int32(limit - int32(len(page.Items)))
		input.ExclusiveStartKey = startKey

		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query transactions: %w", err)
		}
		var batch []models.Transaction
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
		}
		page.Items = append(page.Items, batch...)

		startKey = result.LastEvaluatedKey
		if len(startKey) == 0 || int32(len(page.Items)) >= limit {
			break
		}
	}

	page.NextCursor, err = encodeCursor(startKey)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetStuckWithdrawals retrieves withdrawals still pending that were created before cutoff.
func (s *Store) GetStuckWithdrawals(ctx context.Context, cutoff time.Time) ([]models.Transaction, error) {
	cutoffAV, err := attributevalue.Marshal(cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cutoff time: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Transactions),
		IndexName:              aws.String(txStatusIndex),
		KeyConditionExpression: aws.String("#status = :status AND created_at < :cutoff"),
		FilterExpression:       aws.String("#type = :type"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#type":   "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(models.PENDING)},
			":cutoff": cutoffAV,
			":type":   &types.AttributeValueMemberS{Value: string(models.WITHDRAWAL)},
		},
	}

	transactions := []models.Transaction{}
	paginator := dynamodb.NewQueryPaginator(s.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query for stuck withdrawals: %w", err)
		}
		var batch []models.Transaction
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stuck withdrawals: %w", err)
		}
		transactions = append(transactions, batch...)
	}

	return transactions, nil
}
