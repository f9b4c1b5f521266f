package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const defaultLockTTL = 10 * time.Minute

// Lock makes a cycle exclusive across worker replicas. ok is false when
// another replica holds it.
type Lock interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

// RedisLock adapts a redis.Locker to Lock under a fixed name.
type RedisLock struct {
	locker redis.Locker
	name   string
	ttl    time.Duration
}

// NewRedisLock takes the lock name and hold time. ttl defaults to ten minutes
// and must outlast a full cycle.
func NewRedisLock(locker redis.Locker, name string, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("cron: redis locker required")
	}
	if name == "" {
		return nil, errors.New("cron: lock name required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{locker: locker, name: name, ttl: ttl}, nil
}

func (l *RedisLock) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	unlock, err := l.locker.AcquireLock(ctx, l.name, l.ttl)
	switch {
	case errors.Is(err, redis.ErrLockHeld):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cron: lock %s: %w", l.name, err)
	}
	return unlock, true, nil
}
