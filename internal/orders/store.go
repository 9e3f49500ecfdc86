package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
)

// ErrOrderNotFound is returned by updates addressed to an id that does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put writes the whole order item. Used for seeding and by tests; the worker
// never overwrites full records.
func (s *Store) Put(ctx context.Context, o Order) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateField sets a single string attribute (plus updated_at) without touching
// the rest of the item. Returns ErrOrderNotFound if the id does not exist.
func (s *Store) UpdateField(ctx context.Context, orderID, field, value string) error {
	if field == "" {
		return errors.New("update field: empty attribute name")
	}
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         awsString("SET #f = :v, updated_at = :ua"),
		ConditionExpression:      awsString("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#f": field, "#id": "id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":  &types.AttributeValueMemberS{Value: value},
			":ua": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("update %s on %s: %w", field, orderID, ErrOrderNotFound)
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// UpdateStatus sets the status attribute.
func (s *Store) UpdateStatus(ctx context.Context, orderID, status string) error {
	return s.UpdateField(ctx, orderID, "status", status)
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
