package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// GetWallet retrieves an account's wallet from DynamoDB.
func (s *Store) GetWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"account_id": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wallet account ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Wallets),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("%w: wallet for account %s", storage.ErrNotFound, accountID)
	}

	var wallet models.Wallet
	if err := attributevalue.UnmarshalMap(result.Item, &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return &wallet, nil
}

// ListWallets retrieves all wallets from DynamoDB.
func (s *Store) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	wallets := []models.Wallet{}
	paginator := dynamodb.NewScanPaginator(s.Client, &dynamodb.ScanInput{
		TableName: aws.String(s.Tables.Wallets),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallets: %w", err)
		}
		var batch []models.Wallet
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wallets: %w", err)
		}
		wallets = append(wallets, batch...)
	}
	return wallets, nil
}

// walletUpdate writes absolute balances guarded by the version read earlier.
func (s *Store) walletUpdate(u storage.WalletUpdate) (types.TransactWriteItem, error) {
	nowAV, err := attributevalue.Marshal(u.Wallet.UpdatedAt)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal timestamp: %w", err)
	}
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           aws.String(s.Tables.Wallets),
		Key:                 map[string]types.AttributeValue{"account_id": &types.AttributeValueMemberS{Value: u.Wallet.AccountID}},
		UpdateExpression:    aws.String("SET earnings_balance = :earnings, deposit_balance = :deposit, holding_balance = :holding, version = :next, updated_at = :now"),
		ConditionExpression: aws.String("version = :version"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":earnings": numberAV(u.Wallet.EarningsBalance),
			":deposit":  numberAV(u.Wallet.DepositBalance),
			":holding":  numberAV(u.Wallet.HoldingBalance),
			":next":     numberAV(u.ExpectedVersion + 1),
			":version":  numberAV(u.ExpectedVersion),
			":now":      nowAV,
		},
	}}, nil
}
