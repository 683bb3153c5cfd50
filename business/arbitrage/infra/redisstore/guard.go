// Package redisstore holds the Redis-backed in-flight guard and exposure journal.
package redisstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/prediction-arb/business/arbitrage/app"
	"github.com/fd1az/prediction-arb/internal/apperror"
)

const (
	guardPrefix     = "arb:inflight:"
	defaultGuardTTL = 2 * time.Minute
)

// releaseLua deletes the key only while it still holds our token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

var _ app.Guard = (*Guard)(nil)

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithTokenFunc overrides lock token generation.
func WithTokenFunc(fn func() string) GuardOption {
	return func(g *Guard) {
		g.token = fn
	}
}

// Guard is an in-flight guard shared by every process using the same Redis.
// Keys expire after ttl so a crashed holder cannot block a key forever.
type Guard struct {
	rdb   redis.UniversalClient
	ttl   time.Duration
	token func() string

	mu   sync.Mutex
	held map[string]string
}

// NewGuard creates a Guard. ttl must exceed the longest execution.
func NewGuard(rdb redis.UniversalClient, ttl time.Duration, opts ...GuardOption) *Guard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	g := &Guard{
		rdb:   rdb,
		ttl:   ttl,
		token: uuid.NewString,
		held:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func guardKey(key string) string {
	return guardPrefix + key
}

// Acquire sets the key with SET NX PX. It returns false when another holder has it.
func (g *Guard) Acquire(ctx context.Context, key string) (bool, error) {
	token := g.token()
	ok, err := g.rdb.SetNX(ctx, guardKey(key), token, g.ttl).Result()
	if err != nil {
		return false, apperror.New(apperror.CodeGuardUnavailable,
			apperror.WithContext("acquire "+key), apperror.WithCause(err))
	}
	if !ok {
		return false, nil
	}

	g.mu.Lock()
	g.held[key] = token
	g.mu.Unlock()
	return true, nil
}

// Release deletes the key if this process still owns it.
func (g *Guard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	token, ok := g.held[key]
	delete(g.held, key)
	g.mu.Unlock()

	if !ok {
		return apperror.Invariant("release of guard key not held: " + key)
	}

	n, err := g.rdb.Eval(ctx, releaseLua, []string{guardKey(key)}, token).Int64()
	if err != nil {
		return apperror.New(apperror.CodeGuardUnavailable,
			apperror.WithContext("release "+key), apperror.WithCause(err))
	}
	if n == 0 {
		return apperror.New(apperror.CodeLockLost,
			apperror.WithContext(fmt.Sprintf("%s expired after %s", key, g.ttl)))
	}
	return nil
}

// Ping checks the Redis connection.
func (g *Guard) Ping(ctx context.Context) error {
	return g.rdb.Ping(ctx).Err()
}
