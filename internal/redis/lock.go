package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

const lockKeyPrefix = "vaccine-scheduler:slot-lock:"

// Locker guards the read-check-write sequence on one caregiver day.
// A held key is polled with backoff for at most the lock TTL or until ctx ends;
// giving up is reported as ErrLockNotAcquired.
type Locker interface {
	WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker shares slot locks between every process using the same Redis.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{client: client, ttl: ttl}
}

func lockKey(slotKey string) string {
	return lockKeyPrefix + slotKey
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	key := lockKey(slotKey)
	token := uuid.NewString()

	err := acquire(ctx, l.ttl, func(ctx context.Context) (bool, error) {
		err := l.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
		switch {
		case errors.Is(err, redis.Nil):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("acquire slot lock %s: %w", slotKey, err)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	// release even when the caller's context is already done
	defer func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}()

	return runHeld(ctx, l.ttl, fn)
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	minLockBackoff = 5 * time.Millisecond
	maxLockBackoff = 100 * time.Millisecond
)

// acquire calls try with capped exponential backoff until it takes the lock.
// A holder keeps the key for at most ttl, so waiting longer than that is pointless.
func acquire(ctx context.Context, ttl time.Duration, try func(ctx context.Context) (bool, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	backoff := minLockBackoff
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if err := ctx.Err(); errors.Is(err, context.Canceled) {
				return err
			}
			return ErrLockNotAcquired
		case <-timer.C:
		}
		backoff = min(backoff*2, maxLockBackoff)
	}
}

// runHeld bounds fn by the lock TTL so the critical section ends before the key can expire.
func runHeld(ctx context.Context, ttl time.Duration, fn func(ctx context.Context) error) error {
	heldCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	return fn(heldCtx)
}
