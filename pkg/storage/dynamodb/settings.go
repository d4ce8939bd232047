package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

const overridePrefix = "additional_commission#"

// settingsItem stores a configuration document as JSON so decimal
// percentages round-trip exactly.
type settingsItem struct {
	SettingKey string    `dynamodbav:"setting_key"`
	Value      string    `dynamodbav:"value"`
	Version    int64     `dynamodbav:"version"`
	UpdatedAt  time.Time `dynamodbav:"updated_at"`
}

type overrideItem struct {
	SettingKey           string    `dynamodbav:"setting_key"`
	UserID               string    `dynamodbav:"user_id"`
	ActivationPercentage string    `dynamodbav:"activation_percentage"`
	RenewalPercentage    string    `dynamodbav:"renewal_percentage"`
	UpdatedAt            time.Time `dynamodbav:"updated_at"`
}

func settingKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"setting_key": &types.AttributeValueMemberS{Value: key}}
}

// GetSettings decodes the document stored under key into dest.
func (s *Store) GetSettings(ctx context.Context, key string, dest any) (int64, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Settings),
		Key:            settingKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get settings from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return 0, fmt.Errorf("%w: settings %s", storage.ErrNotFound, key)
	}

	var item settingsItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return 0, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := json.Unmarshal([]byte(item.Value), dest); err != nil {
		return 0, fmt.Errorf("failed to decode settings %s: %w", key, err)
	}
	return item.Version, nil
}

// PutSettings replaces the document under key, conditioned on expectedVersion.
func (s *Store) PutSettings(ctx context.Context, key string, value any, expectedVersion int64) (int64, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to encode settings %s: %w", key, err)
	}
	item, err := attributevalue.MarshalMap(settingsItem{
		SettingKey: key,
		Value:      string(raw),
		Version:    expectedVersion + 1,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal settings: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.Tables.Settings),
		Item:      item,
	}
	if expectedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(setting_key)")
	} else {
		input.ConditionExpression = aws.String("version = :version")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{":version": numberAV(expectedVersion)}
	}

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return 0, fmt.Errorf("%w: settings %s changed since version %d", storage.ErrConflict, key, expectedVersion)
		}
		return 0, fmt.Errorf("failed to put settings in DynamoDB: %w", err)
	}
	return expectedVersion + 1, nil
}

// ListAdditionalCommissions scans the override records of the settings table.
func (s *Store) ListAdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error) {
	out := []models.AdditionalCommission{}
	paginator := dynamodb.NewScanPaginator(s.Client, &dynamodb.ScanInput{
		TableName:        aws.String(s.Tables.Settings),
		FilterExpression: aws.String("begins_with(setting_key, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: overridePrefix},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan additional commissions: %w", err)
		}
		var batch []overrideItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal additional commissions: %w", err)
		}
		for _, item := range batch {
			c, err := item.toModel()
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// PutAdditionalCommission upserts the override of commission.UserID.
func (s *Store) PutAdditionalCommission(ctx context.Context, commission *models.AdditionalCommission) error {
	item, err := attributevalue.MarshalMap(overrideItem{
		SettingKey:           overridePrefix + commission.UserID,
		UserID:               commission.UserID,
		ActivationPercentage: commission.ActivationPercentage.String(),
		RenewalPercentage:    commission.RenewalPercentage.String(),
		UpdatedAt:            commission.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal additional commission: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Tables.Settings),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put additional commission in DynamoDB: %w", err)
	}
	return nil
}

// DeleteAdditionalCommission removes the override of userID.
func (s *Store) DeleteAdditionalCommission(ctx context.Context, userID string) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.Tables.Settings),
		Key:                 settingKey(overridePrefix + userID),
		ConditionExpression: aws.String("attribute_exists(setting_key)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return fmt.Errorf("%w: additional commission for %s", storage.ErrNotFound, userID)
		}
		return fmt.Errorf("failed to delete additional commission from DynamoDB: %w", err)
	}
	return nil
}

func (o overrideItem) toModel() (models.AdditionalCommission, error) {
	activation, err := decimal.NewFromString(o.ActivationPercentage)
	if err != nil {
		return models.AdditionalCommission{}, fmt.Errorf("invalid activation percentage for %s: %w", o.UserID, err)
	}
	renewal, err := decimal.NewFromString(o.RenewalPercentage)
	if err != nil {
		return models.AdditionalCommission{}, fmt.Errorf("invalid renewal percentage for %s: %w", o.UserID, err)
	}
	return models.AdditionalCommission{
		UserID:               strings.TrimPrefix(o.SettingKey, overridePrefix),
		ActivationPercentage: activation,
		RenewalPercentage:    renewal,
		UpdatedAt:            o.UpdatedAt,
	}, nil
}
