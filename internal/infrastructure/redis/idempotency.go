package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "minishop:idempotency"
	// pendingValue marks a key whose first request has not produced an order yet.
	pendingValue = "~pending"
)

// IdempotencyStore claims idempotency keys with SETNX so that only one request
// per (customer, key) reaches the order workflow.
type IdempotencyStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyStore(client redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Acquire(ctx context.Context, customerID, key string) (string, bool, error) {
	k := s.key(customerID, key)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, k, pendingValue, s.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("idempotency: setnx %s: %w", k, err)
		}
		if ok {
			return "", true, nil
		}

		v, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("idempotency: get %s: %w", k, err)
		}
		if v == pendingValue {
			return "", false, nil
		}
		return v, false, nil
	}
	return "", false, nil
}

func (s *IdempotencyStore) Bind(ctx context.Context, customerID, key, orderID string) error {
	if err := s.client.Set(ctx, s.key(customerID, key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: bind: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, customerID, key string) error {
	if err := s.client.Del(ctx, s.key(customerID, key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(customerID, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, customerID, key)
}
