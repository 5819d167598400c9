package mandates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/openfloat/go-payment-switch/internal/aws"
)

// ErrConcurrentModification indicates a stale mandate write was rejected.
var ErrConcurrentModification = errors.New("mandate modified concurrently")

// Store encapsulates operations on the mandates table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new mandates Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists a new mandate. Fails if the id already exists.
func (s *Store) Create(ctx context.Context, m Mandate) error {
	now := s.nowFunc()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal mandate: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(mandate_id)"),
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches a mandate by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, mandateID string) (*Mandate, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"mandate_id": &types.AttributeValueMemberS{Value: mandateID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var m Mandate
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, fmt.Errorf("unmarshal mandate: %w", err)
	}
	return &m, nil
}

// Update writes back a mutated mandate, guarded by the version the caller
// read. Stale writes fail with ErrConcurrentModification.
func (s *Store) Update(ctx context.Context, m *Mandate) error {
	expected := m.Version
	m.Version++
	m.UpdatedAt = s.nowFunc()

	item, err := attributevalue.MarshalMap(*m)
	if err != nil {
		m.Version = expected
		return fmt.Errorf("marshal mandate: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expected)},
		},
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		m.Version = expected
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
