package idempotency

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is an in-memory ledger table for PutItem/GetItem/UpdateItem.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	// implement ConditionExpression: attribute_not_exists(idempotency_key)
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(idempotency_key)" {
		keyAttr := params.Item["idempotency_key"]
		if keyAttr == nil {
			return nil, errors.New("missing key")
		}
		k := keyAttr.(*types.AttributeValueMemberS).Value
		if _, ok := m.table[k]; ok {
			// simulate conditional failure
			return nil, &types.ConditionalCheckFailedException{}
		}
		m.table[k] = params.Item
		return &dyn.PutItemOutput{}, nil
	}
	// otherwise simple put (overwrite)
	if params.Item == nil {
		return nil, errors.New("nil item")
	}
	k := params.Item["idempotency_key"].(*types.AttributeValueMemberS).Value
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return nil, errors.New("item not found")
	}
	// placeholders map 1:1 onto the attributes MarkDone and MarkFailed set
	fields := map[string]string{
		":rb":     "response_body",
		":rs":     "response_status",
		":ua":     "updated_at",
		":n":      "note",
		":done":   "status",
		":failed": "status",
	}
	for placeholder, attr := range fields {
		if v, ok := params.ExpressionAttributeValues[placeholder]; ok {
			item[attr] = v
		}
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}
