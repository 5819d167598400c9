package redirects

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore tracks the out-of-band authentication step per transaction: the
// caller-supplied return destination and a monotonically increasing attempt
// counter used to observe duplicate redirect completions.
type StateStore interface {
	Begin(ctx context.Context, transactionID, returnURL string) error
	IncrementAttempt(ctx context.Context, transactionID string) (int64, error)
	ReturnURL(ctx context.Context, transactionID string) (string, error)
	Clear(ctx context.Context, transactionID string) error
}

// RedisStore keeps redirect state in Redis with a TTL; abandoned redirects
// age out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis at addr.
func NewRedisStore(addr string, poolSize int, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			PoolSize:     poolSize,
			MinIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
		ttl: ttl,
	}
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if _, err := s.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func returnKey(transactionID string) string {
	return "redirects:" + transactionID + ":return"
}

func attemptsKey(transactionID string) string {
	return "redirects:" + transactionID + ":attempts"
}

// Begin records the return destination and resets the attempt counter.
func (s *RedisStore) Begin(ctx context.Context, transactionID, returnURL string) error {
	if err := s.client.Set(ctx, returnKey(transactionID), returnURL, s.ttl).Err(); err != nil {
		return fmt.Errorf("set return url: %w", err)
	}
	if err := s.client.Set(ctx, attemptsKey(transactionID), 0, s.ttl).Err(); err != nil {
		return fmt.Errorf("reset attempt counter: %w", err)
	}
	return nil
}

// IncrementAttempt bumps and returns the completion-attempt counter.
func (s *RedisStore) IncrementAttempt(ctx context.Context, transactionID string) (int64, error) {
	n, err := s.client.Incr(ctx, attemptsKey(transactionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment attempt counter: %w", err)
	}
	return n, nil
}

// ReturnURL fetches the stored return destination; empty if none or expired.
func (s *RedisStore) ReturnURL(ctx context.Context, transactionID string) (string, error) {
	v, err := s.client.Get(ctx, returnKey(transactionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get return url: %w", err)
	}
	return v, nil
}

// Clear drops the redirect state once the transaction leaves
// REQUIRES_CUSTOMER_ACTION.
func (s *RedisStore) Clear(ctx context.Context, transactionID string) error {
	if err := s.client.Del(ctx, returnKey(transactionID), attemptsKey(transactionID)).Err(); err != nil {
		return fmt.Errorf("clear redirect state: %w", err)
	}
	return nil
}
