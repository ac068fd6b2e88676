package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("practitioner lock not acquired")
)

// Locker serializes booking writes per practitioner. Correctness of the
// ledger does not depend on it (the conditional insert is the authority);
// it keeps concurrent writers for the same practitioner from burning
// transactions against each other.
type Locker interface {
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisPractitionerLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPractitionerLocker creates a locker backed by a per-practitioner Redis key.
func NewPractitionerLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisPractitionerLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisPractitionerLocker) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:practitioner:%s", practitionerID.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire practitioner lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisPractitionerLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release practitioner lock: %w", err)
	}
	return nil
}
