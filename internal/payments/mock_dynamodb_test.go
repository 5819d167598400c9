package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory mock supporting the conditional writes the
// stores rely on. Items are stored per table: table -> pkValue -> item map.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	putCalls      int
	getCalls      int
	transactCalls int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
}

// tableKeyAttr maps each mocked table to its primary-key attribute, matching
// the key schemas the real tables use. Resolving the key per table (rather
// than scanning the item for a known attribute) matters because the
// idempotency item carries both idempotency_key and transaction_id.
var tableKeyAttr = map[string]string{
	"transactions": "transaction_id",
	"mandates":     "mandate_id",
	"idempotency":  "idempotency_key",
}

// itemPK finds the primary key value in an item or key map.
func itemPK(table string, attrs map[string]types.AttributeValue) (string, error) {
	name, ok := tableKeyAttr[table]
	if !ok {
		return "", fmt.Errorf("no key schema for table %s", table)
	}
	v, ok := attrs[name]
	if !ok {
		return "", errors.New("no recognized primary key attribute")
	}
	return v.(*types.AttributeValueMemberS).Value, nil
}

// checkCondition evaluates the two condition expressions the stores use.
func (m *mockDynamo) checkCondition(table, pk string, condition *string, values map[string]types.AttributeValue) error {
	if condition == nil {
		return nil
	}
	existing, exists := m.tables[table][pk]
	switch {
	case strings.HasPrefix(*condition, "attribute_not_exists("):
		if exists {
			return &types.ConditionalCheckFailedException{}
		}
	case *condition == "version = :expected":
		if !exists {
			return &types.ConditionalCheckFailedException{}
		}
		current, ok := existing["version"].(*types.AttributeValueMemberN)
		if !ok {
			return &types.ConditionalCheckFailedException{}
		}
		expected := values[":expected"].(*types.AttributeValueMemberN).Value
		if current.Value != expected {
			return &types.ConditionalCheckFailedException{}
		}
	default:
		return fmt.Errorf("unsupported condition expression: %s", *condition)
	}
	return nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++

	table := *params.TableName
	m.ensureTable(table)
	pk, err := itemPK(table, params.Item)
	if err != nil {
		return nil, err
	}
	if err := m.checkCondition(table, pk, params.ConditionExpression, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	m.tables[table][pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	table := *params.TableName
	m.ensureTable(table)
	pk, err := itemPK(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := *params.TableName
	m.ensureTable(table)
	pk, err := itemPK(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return nil, errors.New("item not found")
	}
	// naive apply for the idempotency mark expressions
	for placeholder, attrName := range map[string]string{
		":done": "status", ":failed": "status", ":rb": "response_body",
		":rs": "response_status", ":ua": "updated_at", ":n": "note",
	} {
		if v, ok := params.ExpressionAttributeValues[placeholder]; ok {
			item[attrName] = v
		}
	}
	m.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++

	// First pass: verify all conditions.
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			continue
		}
		table := *p.TableName
		m.ensureTable(table)
		pk, err := itemPK(table, p.Item)
		if err != nil {
			return nil, err
		}
		if err := m.checkCondition(table, pk, p.ConditionExpression, p.ExpressionAttributeValues); err != nil {
			return nil, &types.TransactionCanceledException{}
		}
	}
	// Second pass: apply all puts.
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			continue
		}
		table := *p.TableName
		pk, _ := itemPK(table, p.Item)
		m.tables[table][pk] = p.Item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
