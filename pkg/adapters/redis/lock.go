package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/ports"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// unlockScript releases the lock only when the stored value still matches,
// so a lock that expired and was re-acquired elsewhere is never deleted.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// Locker implements ports.DistributedLocker using Redis SET NX PX. It lets
// session writes serialize across replicas.
type Locker struct {
	client  *backend.Client
	prefix  string
	backoff time.Duration
}

// NewLocker creates a Redis locker. Keys are namespaced under prefix.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client:  client,
		prefix:  prefix,
		backoff: 100 * time.Millisecond,
	}
}

// Lock acquires a lock for the key, polling until acquisition or context
// cancellation. The returned UnlockFunc must be called to release it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	// A per-acquisition value makes the Lua release safe.
	val := fmt.Sprintf("%d", time.Now().UnixNano())

	ticker := time.NewTicker(l.backoff)
	defer ticker.Stop()

	for {
		success, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if success {
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, val).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, ctx.Err())
		case <-ticker.C:
		}
	}
}
