package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
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

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestCreateAccount(t *testing.T) {
	account := &models.Account{
		ID:           "child",
		Email:        "child@example.com",
		ReferralCode: "CHILD001",
		SponsorID:    "parent",
		Status:       models.INACTIVE,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			if len(in.TransactItems) != 5 {
				return false
			}
			sponsor := in.TransactItems[4].Update
			return sponsor != nil && *sponsor.TableName == "accounts" &&
				sponsor.Key["id"].(*types.AttributeValueMemberS).Value == "parent"
		}), mock.Anything).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		store := New(mockClient, testTables)
		created, err := store.CreateAccount(context.Background(), account)

		require.NoError(t, err)
		assert.Equal(t, int64(1), created.Version)
		mockClient.AssertExpectations(t)
	})

	t.Run("Root Account Skips Sponsor Update", func(t *testing.T) {
		root := *account
		root.SponsorID = ""
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 4
		}), mock.Anything).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		store := New(mockClient, testTables)
		_, err := store.CreateAccount(context.Background(), &root)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Unknown Sponsor", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, cancelled("None", "None", "None", "None", "ConditionalCheckFailed"))

		store := New(mockClient, testTables)
		_, err := store.CreateAccount(context.Background(), account)

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("Email Taken", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, cancelled("None", "None", "ConditionalCheckFailed", "None", "None"))

		store := New(mockClient, testTables)
		_, err := store.CreateAccount(context.Background(), account)

		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
		assert.Contains(t, err.Error(), "child@example.com")
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		store := New(mockClient, testTables)
		_, err := store.CreateAccount(context.Background(), account)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create account in DynamoDB")
		mockClient.AssertExpectations(t)
	})
}

func TestGetAccountByReferralCode(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		lookupItem, _ := attributevalue.MarshalMap(lookup{LookupKey: "referral_code#ABC", AccountID: "acc-1"})
		accountItem, _ := attributevalue.MarshalMap(models.Account{ID: "acc-1", ReferralCode: "ABC"})

		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == "lookups" && in.Key["lookup_key"].(*types.AttributeValueMemberS).Value == "referral_code#ABC"
		}), mock.Anything).Return(&dynamodb.GetItemOutput{Item: lookupItem}, nil).Once()
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == "accounts"
		}), mock.Anything).Return(&dynamodb.GetItemOutput{Item: accountItem}, nil).Once()

		store := New(mockClient, testTables)
		acc, err := store.GetAccountByReferralCode(context.Background(), "abc")

		require.NoError(t, err)
		assert.Equal(t, "acc-1", acc.ID)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("GetItem", mock.Anything, mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		store := New(mockClient, testTables)
		_, err := store.GetAccountByReferralCode(context.Background(), "nope")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestListDirectReferrals(t *testing.T) {
	mockClient := new(mocks.DynamoDBAPI)
	c1, _ := attributevalue.MarshalMap(models.Account{ID: "c1", SponsorID: "p"})
	c2, _ := attributevalue.MarshalMap(models.Account{ID: "c2", SponsorID: "p"})
	mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return *in.IndexName == sponsorIndex
	}), mock.Anything).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{c1, c2}}, nil)

	store := New(mockClient, testTables)
	children, err := store.ListDirectReferrals(context.Background(), "p")

	require.NoError(t, err)
	assert.Len(t, children, 2)
	mockClient.AssertExpectations(t)
}
