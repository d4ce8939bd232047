package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// lookup is a uniqueness claim on an email or referral code.
type lookup struct {
	LookupKey string `dynamodbav:"lookup_key"`
	AccountID string `dynamodbav:"account_id"`
}

func emailKey(email string) string { return "email#" + strings.ToLower(email) }
func codeKey(code string) string   { return "referral_code#" + strings.ToUpper(code) }

// CreateAccount stores the account and its empty wallet, claims the email and
// referral code and increments the sponsor's referral count in one transaction.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	created := *account
	created.Version = 1
	created.UpdatedAt = created.CreatedAt
	wallet := models.Wallet{AccountID: created.ID, Version: 1, UpdatedAt: created.CreatedAt}

	accountAV, err := attributevalue.MarshalMap(created)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account: %w", err)
	}
	walletAV, err := attributevalue.MarshalMap(wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wallet: %w", err)
	}
	emailAV, err := attributevalue.MarshalMap(lookup{LookupKey: emailKey(created.Email), AccountID: created.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email lookup: %w", err)
	}
	codeAV, err := attributevalue.MarshalMap(lookup{LookupKey: codeKey(created.ReferralCode), AccountID: created.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal referral code lookup: %w", err)
	}
	nowAV, err := attributevalue.Marshal(created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(s.Tables.Accounts),
			Item:                accountAV,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		}},
		{Put: &types.Put{
			TableName:           aws.String(s.Tables.Wallets),
			Item:                walletAV,
			ConditionExpression: aws.String("attribute_not_exists(account_id)"),
		}},
		{Put: &types.Put{
			TableName:           aws.String(s.Tables.Lookups),
			Item:                emailAV,
			ConditionExpression: aws.String("attribute_not_exists(lookup_key)"),
		}},
		{Put: &types.Put{
			TableName:           aws.String(s.Tables.Lookups),
			Item:                codeAV,
			ConditionExpression: aws.String("attribute_not_exists(lookup_key)"),
		}},
	}
	if created.SponsorID != "" {
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(s.Tables.Accounts),
			Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: created.SponsorID}},
			UpdateExpression:    aws.String("SET direct_referrals = direct_referrals + :one, version = version + :one, updated_at = :now"),
			ConditionExpression: aws.String("attribute_exists(id)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
				":now": nowAV,
			},
		}})
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		codes := cancellationCodes(err)
		failed := func(i int) bool { return i < len(codes) && codes[i] == conditionalFailed }
		switch {
		case failed(4):
			return nil, fmt.Errorf("%w: sponsor %s", storage.ErrNotFound, created.SponsorID)
		case failed(0), failed(1):
			return nil, fmt.Errorf("%w: account %s", storage.ErrAlreadyExists, created.ID)
		case failed(2):
			return nil, fmt.Errorf("%w: email %s", storage.ErrAlreadyExists, created.Email)
		case failed(3):
			return nil, fmt.Errorf("%w: referral code %s", storage.ErrAlreadyExists, created.ReferralCode)
		}
		return nil, fmt.Errorf("failed to create account in DynamoDB: %w", err)
	}

	return &created, nil
}

// GetAccount retrieves an account from DynamoDB by its ID.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Accounts),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: accountID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("%w: account %s", storage.ErrNotFound, accountID)
	}

	var account models.Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// GetAccountByReferralCode resolves a referral code through the lookups table.
func (s *Store) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return s.getByLookup(ctx, codeKey(code))
}

// GetAccountByEmail resolves an email address through the lookups table.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getByLookup(ctx, emailKey(email))
}

func (s *Store) getByLookup(ctx context.Context, key string) (*models.Account, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Lookups),
		Key:       map[string]types.AttributeValue{"lookup_key": &types.AttributeValueMemberS{Value: key}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get lookup from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}

	var l lookup
	if err := attributevalue.UnmarshalMap(result.Item, &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lookup: %w", err)
	}
	return s.GetAccount(ctx, l.AccountID)
}

// ListDirectReferrals queries the sponsor index.
func (s *Store) ListDirectReferrals(ctx context.Context, sponsorID string) ([]models.Account, error) {
	return s.queryAccounts(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Accounts),
		IndexName:              aws.String(sponsorIndex),
		KeyConditionExpression: aws.String("sponsor_id = :sponsor"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sponsor": &types.AttributeValueMemberS{Value: sponsorID},
		},
	})
}

// ListAccountsByStatus queries the status index.
func (s *Store) ListAccountsByStatus(ctx context.Context, status models.AccountStatus) ([]models.Account, error) {
	return s.queryAccounts(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Accounts),
		IndexName:              aws.String(statusIndex),
		KeyConditionExpression: aws.String("#status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
}

func (s *Store) queryAccounts(ctx context.Context, input *dynamodb.QueryInput) ([]models.Account, error) {
	accounts := []models.Account{}
	paginator := dynamodb.NewQueryPaginator(s.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query accounts: %w", err)
		}
		var batch []models.Account
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
		}
		accounts = append(accounts, batch...)
	}
	return accounts, nil
}

// ListAccounts scans one page of the accounts table.
func (s *Store) ListAccounts(ctx context.Context, limit int32, cursor string) ([]models.Account, string, error) {
	startKey, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	result, err := s.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(s.Tables.Accounts),
		Limit:             aws.Int32(storage.NormalizeLimit(limit)),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to scan accounts: %w", err)
	}

	var accounts []models.Account
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &accounts); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal accounts: %w", err)
	}
	next, err := encodeCursor(result.LastEvaluatedKey)
	if err != nil {
		return nil, "", err
	}
	return accounts, next, nil
}

func numberAV(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}
