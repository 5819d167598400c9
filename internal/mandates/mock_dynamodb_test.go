package mandates

import (
	"context"
	"fmt"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory stand-in for the mandates table that honors the
// two condition expressions the store uses.
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

	id, ok := input.Item["mandate_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("item missing mandate_id")
	}
	existing := m.items[id.Value]

	if input.ConditionExpression != nil {
		cond := *input.ConditionExpression
		switch {
		case strings.HasPrefix(cond, "attribute_not_exists("):
			if existing != nil {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case cond == "version = :expected":
			if existing == nil {
				return nil, &types.ConditionalCheckFailedException{}
			}
			expected := input.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN)
			current, ok := existing["version"].(*types.AttributeValueMemberN)
			if !ok || current.Value != expected.Value {
				return nil, &types.ConditionalCheckFailedException{}
			}
		default:
			return nil, fmt.Errorf("unsupported condition %q", cond)
		}
	}

	m.items[id.Value] = input.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, input *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := input.Key["mandate_id"].(*types.AttributeValueMemberS)
	item, ok := m.items[id.Value]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, input *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, fmt.Errorf("UpdateItem not used by the mandates store")
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, input *dyn.TransactWriteItemsInput, _ ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, fmt.Errorf("TransactWriteItems not used by the mandates store")
}
