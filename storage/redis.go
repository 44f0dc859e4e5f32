package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores the token in Redis under a device-scoped key. It backs
// shared kiosk deployments (bank counters, registrar desks) where the session
// follows the device profile rather than a local disk.
//
// RedisSlot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisSlot struct {
	redis  redis.UniversalClient
	prefix string
	device string
	ttl    time.Duration
}

// NewRedisSlot creates a [RedisSlot] for the given device ID. prefix sets the
// Redis key namespace; ttl bounds how long an untouched token survives in
// Redis (0 means no expiry — the token's own exp claim still applies on read).
func NewRedisSlot(client redis.UniversalClient, prefix, deviceID string, ttl time.Duration) *RedisSlot {
	if prefix == "" {
		prefix = "admit"
	}
	return &RedisSlot{
		redis:  client,
		prefix: prefix,
		device: deviceID,
		ttl:    ttl,
	}
}

func (r *RedisSlot) key() string {
	return r.prefix + ":token:" + r.device
}

// Get reads the stored token.
//
//	Performance: 1 Redis GET.
func (r *RedisSlot) Get(ctx context.Context) (string, error) {
	value, err := r.redis.Get(ctx, r.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set replaces the stored token, refreshing the slot TTL.
//
//	Performance: 1 Redis SET.
func (r *RedisSlot) Set(ctx context.Context, token string) error {
	if err := r.redis.Set(ctx, r.key(), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	return nil
}

// Delete removes the stored token. Deleting an empty slot is a no-op.
//
//	Performance: 1 Redis DEL.
func (r *RedisSlot) Delete(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}
	return nil
}
