package redisclient

import (
	"context"
	"sync"
	"time"
)

type localSlotLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	ttl  time.Duration
}

// NewLocalSlotLocker creates an in-process Locker with the same contract as the
// Redis one. It only serializes callers sharing this process.
func NewLocalSlotLocker(ttl time.Duration) Locker {
	return &localSlotLocker{
		held: make(map[string]struct{}),
		ttl:  ttl,
	}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	err := acquire(ctx, l.ttl, func(context.Context) (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, busy := l.held[slotKey]; busy {
			return false, nil
		}
		l.held[slotKey] = struct{}{}
		return true, nil
	})
	if err != nil {
		return err
	}

	defer func() {
		l.mu.Lock()
		delete(l.held, slotKey)
		l.mu.Unlock()
	}()

	return runHeld(ctx, l.ttl, fn)
}
