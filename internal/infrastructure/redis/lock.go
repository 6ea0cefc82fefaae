package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
)

// Lua script for safe lock release (only owner can release)
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock is a single-owner lock held in Redis with SET NX PX.
type DistributedLock struct {
	client   redis.Cmdable
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a new distributed lock
func NewDistributedLock(client redis.Cmdable, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    key,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock once
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.acquired = ok
	return ok, nil
}

// AcquireWithRetry polls until the lock is taken, ctx ends or attempts run out.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", l.key, domainErrors.ErrLockAcquisitionFailed)
}

// Release releases the lock if this instance still owns it
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	result, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	l.acquired = false

	if val, ok := result.(int64); !ok || val == 0 {
		return errors.New("lock expired before release")
	}
	return nil
}

// IntentLocker serializes webhook handling per payment intent.
type IntentLocker struct {
	client   redis.Cmdable
	ttl      time.Duration
	attempts int
	delay    time.Duration
}

// NewIntentLocker waits up to roughly ttl for a contended lock.
func NewIntentLocker(client redis.Cmdable, ttl time.Duration) *IntentLocker {
	const delay = 100 * time.Millisecond
	attempts := int(ttl / delay)
	if attempts < 1 {
		attempts = 1
	}
	return &IntentLocker{client: client, ttl: ttl, attempts: attempts, delay: delay}
}

// IntentLockKey is the Redis key guarding a payment intent.
func IntentLockKey(intentID string) string {
	return "escrow:intent:" + intentID
}

// Lock acquires the intent lock and returns its release func.
func (l *IntentLocker) Lock(ctx context.Context, intentID string) (func(context.Context) error, error) {
	lock := NewDistributedLock(l.client, IntentLockKey(intentID), l.ttl)
	if err := lock.AcquireWithRetry(ctx, l.attempts, l.delay); err != nil {
		return nil, err
	}
	return lock.Release, nil
}
