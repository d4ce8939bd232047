package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListTransactions(t *testing.T) {
	tx1, _ := attributevalue.MarshalMap(models.Transaction{ID: "t1", AccountID: "a", Type: models.LEVEL_INCOME})
	tx2, _ := attributevalue.MarshalMap(models.Transaction{ID: "t2", AccountID: "a", Type: models.LEVEL_INCOME})
	lastKey := map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: "t2"},
		"account_id": &types.AttributeValueMemberS{Value: "a"},
		"created_at": &types.AttributeValueMemberS{Value: "2025-01-01T00:00:00Z"},
	}

	t.Run("User Feed With Cursor", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == accountFeedIndex && !*in.ScanIndexForward && *in.Limit == 2 && in.FilterExpression != nil
		}), mock.Anything).Return(&dynamodb.QueryOutput{
			Items:            []map[string]types.AttributeValue{tx1, tx2},
			LastEvaluatedKey: lastKey,
		}, nil).Once()

		store := New(mockClient, testTables)
		page, err := store.ListTransactions(context.Background(), storage.TransactionFilter{AccountID: "a", Type: models.LEVEL_INCOME, Limit: 2})

		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		require.NotEmpty(t, page.NextCursor)

		decoded, err := decodeCursor(page.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, "t2", decoded["id"].(*types.AttributeValueMemberS).Value)
		mockClient.AssertExpectations(t)
	})

	t.Run("Global Feed Fills Short Pages", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == globalFeedIndex && *in.Limit == 2
		}), mock.Anything).Return(&dynamodb.QueryOutput{
			Items:            []map[string]types.AttributeValue{tx1},
			LastEvaluatedKey: lastKey,
		}, nil).Once()
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == globalFeedIndex && *in.Limit == 1
		}), mock.Anything).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{tx2},
		}, nil).Once()

		store := New(mockClient, testTables)
		page, err := store.ListTransactions(context.Background(), storage.TransactionFilter{Limit: 2})

		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Empty(t, page.NextCursor)
		mockClient.AssertExpectations(t)
	})

	t.Run("Invalid Cursor", func(t *testing.T) {
		store := New(new(mocks.DynamoDBAPI), testTables)
		_, err := store.ListTransactions(context.Background(), storage.TransactionFilter{Cursor: "%%%"})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})
}

func TestGetStuckWithdrawals(t *testing.T) {
	mockClient := new(mocks.DynamoDBAPI)
	w, _ := attributevalue.MarshalMap(models.Transaction{ID: "GEM-ABCDEF12", Type: models.WITHDRAWAL, Status: models.PENDING})
	mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return *in.IndexName == txStatusIndex
	}), mock.Anything).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{w}}, nil)

	store := New(mockClient, testTables)
	stuck, err := store.GetStuckWithdrawals(context.Background(), time.Now())

	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "GEM-ABCDEF12", stuck[0].ID)
	mockClient.AssertExpectations(t)
}
