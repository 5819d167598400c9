package payments

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

// Store encapsulates operations on the transactions table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new transactions Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists a new transaction. Fails if the id already exists.
func (s *Store) Create(ctx context.Context, tx Transaction) error {
	now := s.nowFunc()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	item, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(transaction_id)"),
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return fmt.Errorf("transaction %s already exists: %w", tx.TransactionID, ErrConcurrentModification)
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (with ConditionExpression attribute_not_exists(idempotency_key))
//   - transaction record in the transactions table
//
// It marshals both items and issues a TransactWriteItems call. The
// idempotency item must carry the idempotency_key attribute.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, tx Transaction, ttlWindow time.Duration) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	if _, ok := idempMap["expires_at"]; !ok && ttlWindow > 0 {
		expires := s.nowFunc().Add(ttlWindow).Unix()
		idempMap["expires_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expires)}
	}

	now := s.nowFunc()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	txMap, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction item: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           &idempotencyTable,
				Item:                idempMap,
				ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
			},
		},
		{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                txMap,
				ConditionExpression: awsString("attribute_not_exists(transaction_id)"),
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return fmt.Errorf("transaction canceled (likely idempotency key exists): %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches a transaction by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, transactionID string) (*Transaction, error) {
	key := map[string]types.AttributeValue{
		"transaction_id": &types.AttributeValueMemberS{Value: transactionID},
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
	var tx Transaction
	if err := attributevalue.UnmarshalMap(out.Item, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Update writes back a mutated transaction, guarded by the version the
// caller read. A stale write (someone else committed in between) fails with
// ErrConcurrentModification and the stored record is untouched. On success
// the passed record's Version reflects the committed value.
func (s *Store) Update(ctx context.Context, tx *Transaction) error {
	expected := tx.Version
	tx.Version++
	tx.UpdatedAt = s.nowFunc()

	item, err := attributevalue.MarshalMap(*tx)
	if err != nil {
		tx.Version = expected
		return fmt.Errorf("marshal transaction: %w", err)
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
		tx.Version = expected
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
