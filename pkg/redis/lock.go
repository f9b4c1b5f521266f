package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld means someone else owns the lock right now.
var ErrLockHeld = errors.New("lock already held")

// Locker guards short critical sections across API replicas and workers.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Only the holder's token may delete the key.
const releaseLockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// AcquireLock sets the lock key with a random token for ttl. release is a
// no-op when the lock already expired and was taken by another holder.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := c.keys.Lock(name)
	token := uuid.NewString()
	ok, err := c.cmd.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func(ctx context.Context) error {
		return c.cmd.Eval(ctx, releaseLockScript, []string{key}, token).Err()
	}
	return release, nil
}
