package memory

import (
	"context"
	"sync"
	"time"
)

const pendingOrderID = ""

type idempotencyEntry struct {
	orderID   string
	expiresAt time.Time
}

// IdempotencyStore is the in-process counterpart of the Redis store.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]idempotencyEntry
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *IdempotencyStore) Acquire(ctx context.Context, customerID, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := customerID + ":" + key
	if e, ok := s.entries[k]; ok && !s.expired(e) {
		return e.orderID, false, nil
	}
	s.entries[k] = idempotencyEntry{orderID: pendingOrderID, expiresAt: s.deadline()}
	return "", true, nil
}

func (s *IdempotencyStore) Bind(ctx context.Context, customerID, key, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[customerID+":"+key] = idempotencyEntry{orderID: orderID, expiresAt: s.deadline()}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, customerID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, customerID+":"+key)
	return nil
}

func (s *IdempotencyStore) deadline() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *IdempotencyStore) expired(e idempotencyEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
