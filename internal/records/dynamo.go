package records

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"retainer/internal/db"
)

func RecordPK(email string) string {
	return "EMAIL#" + email
}

// DynamoStore keeps one item per email under PK "EMAIL#<email>".
type DynamoStore struct {
	DB    db.DynamoAPI
	Table string
}

func NewDynamoStore(client db.DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{DB: client, Table: table}
}

func (s *DynamoStore) Get(ctx context.Context, email string) (*Record, error) {
	out, err := s.DB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: RecordPK(email)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get record: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

func (s *DynamoStore) Put(ctx context.Context, rec *Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: RecordPK(rec.Email)}
	item["UpdatedEpoch"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.UpdatedAt.Unix(), 10)}

	if _, err := s.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamodb put record: %w", err)
	}
	return nil
}

// ListUpdatedSince scans the table. It is only used by the daily export.
func (s *DynamoStore) ListUpdatedSince(ctx context.Context, since time.Time) ([]Record, error) {
	var (
		out   []Record
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.DB.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.Table),
			FilterExpression: aws.String("#u >= :since"),
			ExpressionAttributeNames: map[string]string{
				"#u": "UpdatedEpoch",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":since": &types.AttributeValueMemberN{Value: strconv.FormatInt(since.Unix(), 10)},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan records: %w", err)
		}

		var recs []Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		out = append(out, recs...)

		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}
