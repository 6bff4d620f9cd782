package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/internal/repository"
)

const (
	keyPrefix     = "bulkpromo:idempotency:"
	pendingMarker = "pending"
)

// IdempotencyStore implements repository.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewIdempotencyStore creates a Redis-backed idempotency store. Completed
// receipts live for ttl; unfinished reservations expire after pendingTTL.
func NewIdempotencyStore(client *redis.Client, ttl, pendingTTL time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client:     client,
		ttl:        ttl,
		pendingTTL: pendingTTL,
	}
}

// Reserve claims key with a pending marker.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx idempotency key: %w", err)
	}
	return ok, nil
}

// Complete replaces the pending marker with the receipt.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, receipt *domain.CommitReceipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set idempotency receipt: %w", err)
	}
	return nil
}

// Lookup returns the stored receipt for key.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (*domain.CommitReceipt, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get idempotency key: %w", err)
	}
	if string(data) == pendingMarker {
		return nil, repository.ErrInProgress
	}

	var receipt domain.CommitReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &receipt, nil
}

// Release removes the reservation for key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del idempotency key: %w", err)
	}
	return nil
}
