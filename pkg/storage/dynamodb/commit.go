package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

type itemKind int

const (
	kindEvent itemKind = iota
	kindWallet
	kindAccount
	kindCheck
	kindTransaction
	kindStatus
)

// Commit applies the whole commit as a single TransactWriteItems call. Every
// wallet and account write is conditioned on the version read by the caller.
func (s *Store) Commit(ctx context.Context, c *storage.Commit) error {
	if c.Size() > storage.MaxCommitItems {
		return fmt.Errorf("%w: commit touches %d records", storage.ErrValidation, c.Size())
	}
	if c.Size() == 0 {
		return nil
	}

	items, kinds, err := s.buildItems(c)
	if err != nil {
		return err
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return classifyCommitError(err, kinds, c.EventID)
	}
	return nil
}

func classifyCommitError(err error, kinds []itemKind, eventID string) error {
	var inProgress *types.TransactionInProgressException
	if errors.As(err, &inProgress) {
		return fmt.Errorf("%w: transaction in progress", storage.ErrBusy)
	}

	codes := cancellationCodes(err)
	if codes == nil {
		return fmt.Errorf("failed to execute commit: %w", err)
	}
	for i, code := range codes {
		if code == conditionalFailed && i < len(kinds) && kinds[i] == kindEvent {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateEvent, eventID)
		}
	}
	for _, code := range codes {
		if code == conditionalFailed || code == "TransactionConflict" {
			return fmt.Errorf("%w: commit cancelled (%s)", storage.ErrConflict, code)
		}
	}
	return fmt.Errorf("failed to execute commit: %w", err)
}

func (s *Store) buildItems(c *storage.Commit) ([]types.TransactWriteItem, []itemKind, error) {
	var items []types.TransactWriteItem
	var kinds []itemKind
	add := func(item types.TransactWriteItem, kind itemKind) {
		items = append(items, item)
		kinds = append(kinds, kind)
	}

	nowAV, err := attributevalue.Marshal(c.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	if c.EventID != "" {
		eventAV, err := attributevalue.MarshalMap(models.ProcessedEvent{
			EventID:   c.EventID,
			Kind:      c.EventKind,
			AccountID: c.AccountID,
			CreatedAt: c.CreatedAt,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		add(types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.Tables.Events),
			Item:                eventAV,
			ConditionExpression: aws.String("attribute_not_exists(event_id)"),
		}}, kindEvent)
	}

	for _, u := range c.Wallets {
		u.Wallet.UpdatedAt = c.CreatedAt
		item, err := s.walletUpdate(u)
		if err != nil {
			return nil, nil, err
		}
		add(item, kindWallet)
	}

	for _, u := range c.Accounts {
		item, err := s.accountUpdate(u, nowAV)
		if err != nil {
			return nil, nil, err
		}
		add(item, kindAccount)
	}

	for _, chk := range c.Checks {
		add(types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:           aws.String(s.Tables.Accounts),
			Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: chk.AccountID}},
			ConditionExpression: aws.String("version = :version"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":version": numberAV(chk.ExpectedVersion),
			},
		}}, kindCheck)
	}

	for _, tx := range c.Transactions {
		txAV, err := attributevalue.MarshalMap(tx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal transaction: %w", err)
		}
		add(types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.Tables.Transactions),
			Item:                txAV,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		}}, kindTransaction)
	}

	for _, u := range c.StatusUpdates {
		expr := "SET #status = :to, updated_at = :now"
		values := map[string]types.AttributeValue{
			":to":   &types.AttributeValueMemberS{Value: string(u.To)},
			":from": &types.AttributeValueMemberS{Value: string(u.From)},
			":now":  nowAV,
		}
		if u.TxHash != "" {
			expr += ", tx_hash = :hash"
			values[":hash"] = &types.AttributeValueMemberS{Value: u.TxHash}
		}
		add(types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(s.Tables.Transactions),
			Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: u.TransactionID}},
			UpdateExpression:    aws.String(expr),
			ConditionExpression: aws.String("#status = :from"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: values,
		}}, kindStatus)
	}

	return items, kinds, nil
}

// accountUpdate writes the lifecycle fields of an account. Identity and tree
// position are never part of an update.
func (s *Store) accountUpdate(u storage.AccountUpdate, nowAV types.AttributeValue) (types.TransactWriteItem, error) {
	set := []string{"#status = :status", "version = :next", "updated_at = :now"}
	var remove []string
	values := map[string]types.AttributeValue{
		":status":  &types.AttributeValueMemberS{Value: string(u.Account.Status)},
		":next":    numberAV(u.ExpectedVersion + 1),
		":version": numberAV(u.ExpectedVersion),
		":now":     nowAV,
	}

	optionalTime := func(attr, placeholder string, value any, present bool) error {
		if !present {
			remove = append(remove, attr)
			return nil
		}
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", attr, err)
		}
		set = append(set, attr+" = "+placeholder)
		values[placeholder] = av
		return nil
	}
	if err := optionalTime("subscription_expires", ":expires", u.Account.SubscriptionExpires, u.Account.SubscriptionExpires != nil); err != nil {
		return types.TransactWriteItem{}, err
	}
	if err := optionalTime("grace_ends_at", ":grace", u.Account.GraceEndsAt, u.Account.GraceEndsAt != nil); err != nil {
		return types.TransactWriteItem{}, err
	}

	expr := "SET " + strings.Join(set, ", ")
	if len(remove) > 0 {
		expr += " REMOVE " + strings.Join(remove, ", ")
	}

	return types.TransactWriteItem{Update: &types.Update{
		TableName:           aws.String(s.Tables.Accounts),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: u.Account.ID}},
		UpdateExpression:    aws.String(expr),
		ConditionExpression: aws.String("version = :version"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	}}, nil
}

// GetEvent returns the record of a committed event.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.ProcessedEvent, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Events),
		Key:            map[string]types.AttributeValue{"event_id": &types.AttributeValueMemberS{Value: eventID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("%w: event %s", storage.ErrNotFound, eventID)
	}

	var ev models.ProcessedEvent
	if err := attributevalue.UnmarshalMap(result.Item, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &ev, nil
}
