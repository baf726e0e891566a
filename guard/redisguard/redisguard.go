// Package redisguard implements guard.Locker on Redis with bsm/redislock,
// for deployments running more than one Treasury process against the same
// store.
package redisguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/treasury/guard"
)

var _ guard.Locker = (*Locker)(nil)

// Locker obtains distributed locks under a key prefix.
type Locker struct {
	client  *redislock.Client
	prefix  string
	ttl     time.Duration
	backoff time.Duration
	logger  *slog.Logger
}

// Option configures a Locker.
type Option func(*Locker)

// WithPrefix sets the Redis key prefix. Defaults to "treasury:lock:".
func WithPrefix(p string) Option { return func(l *Locker) { l.prefix = p } }

// WithTTL sets the lock lease. Defaults to 30s.
func WithTTL(d time.Duration) Option { return func(l *Locker) { l.ttl = d } }

// WithBackoff sets the linear retry interval while waiting. Defaults to 50ms.
func WithBackoff(d time.Duration) Option { return func(l *Locker) { l.backoff = d } }

// WithLogger sets the logger used for release failures.
func WithLogger(logger *slog.Logger) Option { return func(l *Locker) { l.logger = logger } }

// New returns a Locker backed by rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:  redislock.New(rdb),
		prefix:  "treasury:lock:",
		ttl:     30 * time.Second,
		backoff: 50 * time.Millisecond,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock implements guard.Locker. It retries until ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (guard.Unlock, error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", guard.ErrNotObtained, key)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Join(guard.ErrNotObtained, ctx.Err())
		}
		return nil, fmt.Errorf("treasury/redisguard: obtain %s: %w", key, err)
	}

	return func() {
		// Release on a fresh context so a cancelled caller still frees the key.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("treasury: redis lock release failed",
				"key", key,
				"error", err,
			)
		}
	}, nil
}
