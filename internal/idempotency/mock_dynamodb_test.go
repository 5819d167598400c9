package idempotency

import (
	"context"
	"fmt"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory stand-in for the idempotency table. UpdateItem
// understands only the two SET expressions the store issues.
type mockDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) PutItem(ctx context.Context, input *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := input.Item["idempotency_key"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("item missing idempotency_key")
	}
	if input.ConditionExpression != nil && strings.HasPrefix(*input.ConditionExpression, "attribute_not_exists(") {
		if _, exists := m.items[key.Value]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[key.Value] = input.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, input *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := input.Key["idempotency_key"].(*types.AttributeValueMemberS)
	item, ok := m.items[key.Value]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, input *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := input.Key["idempotency_key"].(*types.AttributeValueMemberS)
	item, ok := m.items[key.Value]
	if !ok {
		return nil, fmt.Errorf("item not found: %s", key.Value)
	}

	vals := input.ExpressionAttributeValues
	switch {
	case strings.Contains(*input.UpdateExpression, ":done"):
		item["status"] = vals[":done"]
		item["response_body"] = vals[":rb"]
		item["response_status"] = vals[":rs"]
		item["updated_at"] = vals[":ua"]
	case strings.Contains(*input.UpdateExpression, ":failed"):
		item["status"] = vals[":failed"]
		item["note"] = vals[":n"]
		item["updated_at"] = vals[":ua"]
	default:
		return nil, fmt.Errorf("unsupported update expression %q", *input.UpdateExpression)
	}
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, input *dyn.TransactWriteItemsInput, _ ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, fmt.Errorf("TransactWriteItems not used by the idempotency store")
}
