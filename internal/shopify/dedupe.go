package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type LedgerAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DeliveryLedger remembers webhook ids so redelivered webhooks are skipped.
type DeliveryLedger struct {
	DB    LedgerAPI
	Table string
	TTL   time.Duration
	Now   func() time.Time
}

// Claim returns (isDuplicate, error). A ledger without a table or an empty
// webhook id never reports duplicates.
func (l *DeliveryLedger) Claim(ctx context.Context, webhookID, shopDomain, topic string) (bool, error) {
	if l == nil || l.DB == nil || strings.TrimSpace(l.Table) == "" {
		return false, nil
	}
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return false, nil
	}

	now := time.Now().UTC()
	if l.Now != nil {
		now = l.Now().UTC()
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	_, err := l.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.Table),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("WH#%s", webhookID)},
			"Shop":      &types.AttributeValueMemberS{Value: shopDomain},
			"Topic":     &types.AttributeValueMemberS{Value: topic},
			"CreatedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttl).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// Release forgets a claimed webhook id so a redelivery is processed again.
func (l *DeliveryLedger) Release(ctx context.Context, webhookID string) error {
	if l == nil || l.DB == nil || strings.TrimSpace(l.Table) == "" {
		return nil
	}
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return nil
	}
	_, err := l.DB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("WH#%s", webhookID)},
		},
	})
	return err
}
