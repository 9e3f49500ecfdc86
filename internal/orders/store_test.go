package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a simple mock that supports PutItem, GetItem and UpdateItem
// against a single table keyed by "id".
type mockDynamo struct {
	mu          sync.Mutex
	items       map[string]map[string]types.AttributeValue
	putCalls    int
	updateCalls int
	lastUpdate  *dyn.UpdateItemInput
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		items: map[string]map[string]types.AttributeValue{},
	}
}

func keyOf(m map[string]types.AttributeValue) (string, error) {
	v, ok := m["id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("no id attribute")
	}
	return v.Value, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	pk, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	m.items[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.items[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	m.lastUpdate = params
	pk, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.items[pk]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	item[params.ExpressionAttributeNames["#f"]] = params.ExpressionAttributeValues[":v"]
	item["updated_at"] = params.ExpressionAttributeValues[":ua"]
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func seed(t *testing.T, m *mockDynamo, item map[string]types.AttributeValue) {
	t.Helper()
	pk, err := keyOf(item)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	m.items[pk] = item
}

func TestGet_DecodesUpstreamItem(t *testing.T) {
	mock := newMockDynamo()
	seed(t, mock, map[string]types.AttributeValue{
		"id":      &types.AttributeValueMemberS{Value: "p-1"},
		"cliente": &types.AttributeValueMemberS{Value: "Ana"},
		"mesa":    &types.AttributeValueMemberN{Value: "7"},
		"itens": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "Pizza"},
			&types.AttributeValueMemberS{Value: "Suco"},
		}},
		"status": &types.AttributeValueMemberS{Value: StatusPending},
	})

	store := NewStore(mock, "Pedidos")
	got, err := store.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected order, got nil")
	}
	if got.Customer != "Ana" || got.Table != "7" || got.Status != StatusPending {
		t.Fatalf("unexpected order: %+v", got)
	}
	if len(got.Items) != 2 || got.Items[0] != "Pizza" || got.Items[1] != "Suco" {
		t.Fatalf("items not preserved in order: %v", got.Items)
	}
}

func TestGet_NotFoundReturnsNil(t *testing.T) {
	store := NewStore(newMockDynamo(), "Pedidos")
	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil order, got %+v", got)
	}
}

func TestUpdateField_IsPartialUpdate(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "Pedidos")
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return fixed }

	if err := store.Put(context.Background(), Order{
		ID:       "p-2",
		Customer: "Bruno",
		Table:    "3",
		Items:    []string{"Café"},
		Status:   StatusPending,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// a concurrent writer's unrelated attribute must survive the status update
	mock.items["p-2"]["garcom"] = &types.AttributeValueMemberS{Value: "Carlos"}

	if err := store.UpdateStatus(context.Background(), "p-2", StatusConcluded); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mock.putCalls != 1 {
		t.Fatalf("expected no full-record writes from update, got %d puts", mock.putCalls)
	}
	if mock.lastUpdate.ConditionExpression == nil || *mock.lastUpdate.ConditionExpression != "attribute_exists(#id)" {
		t.Fatalf("expected existence condition, got %v", mock.lastUpdate.ConditionExpression)
	}

	var got Order
	if err := attributevalue.UnmarshalMap(mock.items["p-2"], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != StatusConcluded {
		t.Fatalf("expected status %s, got %s", StatusConcluded, got.Status)
	}
	if got.UpdatedAt != "2026-10-18T12:00:00Z" {
		t.Fatalf("unexpected updated_at %q", got.UpdatedAt)
	}
	if _, ok := mock.items["p-2"]["garcom"]; !ok {
		t.Fatalf("unrelated attribute was clobbered")
	}
}

func TestUpdateField_MissingOrder(t *testing.T) {
	store := NewStore(newMockDynamo(), "Pedidos")
	err := store.UpdateField(context.Background(), "ghost", "status", StatusConcluded)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestTableRef_RejectsUnsupportedType(t *testing.T) {
	var ref TableRef
	err := ref.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberBOOL{Value: true})
	if err == nil {
		t.Fatalf("expected error for BOOL mesa")
	}
}
