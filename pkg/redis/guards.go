package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// releaseScript deletes the lock only while it still holds the caller's
// token, so an expired-and-retaken lock is left alone.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// FixedWindowAllow counts one hit against scope and reports whether the
// window's count is still within limit. The window starts on the first hit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if err := c.ready(); err != nil {
		return false, 0, err
	}
	key := c.RateLimitKey(scope)

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 && window > 0 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count <= limit, count, nil
}

// TryLock attempts a single SET NX. When not acquired the returned release
// is a no-op.
func (c *Client) TryLock(ctx context.Context, scope, id string, ttl time.Duration) (func(context.Context), bool, error) {
	noop := func(context.Context) {}
	if err := c.ready(); err != nil {
		return noop, false, err
	}

	key := c.LockKey(scope, id)
	token := uuid.NewString()
	acquired, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !acquired {
		return noop, false, err
	}
	return func(releaseCtx context.Context) {
		_ = c.rdb.Eval(releaseCtx, releaseScript, []string{key}, token).Err()
	}, true, nil
}

func (c *Client) RateLimitKey(scope string) string {
	return c.keys.join("rate_limit", scope)
}

func (c *Client) LockKey(scope, id string) string {
	return c.keys.join("lock", scope, id)
}
