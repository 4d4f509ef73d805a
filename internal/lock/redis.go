package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Both scripts act only while the lease still carries our token.
const (
	releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`
	renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`
)

type leaseClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker is a lease lock shared by every process using the same redis.
// A held lease is renewed every ttl/3. It expires after ttl if its holder
// dies, and the holder's context is cancelled once renewal stops working.
type RedisLocker struct {
	client leaseClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    zerolog.Logger
}

func NewRedisLocker(client *redis.Client, prefix string, ttl, retry time.Duration, log zerolog.Logger) *RedisLocker {
	return newRedisLocker(client, prefix, ttl, retry, log)
}

func newRedisLocker(client leaseClient, prefix string, ttl, retry time.Duration, log zerolog.Logger) *RedisLocker {
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  retry,
		log:    log.With().Str("component", "redis_locker").Logger(),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	name := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, nil, errors.NewRetryableError(err, "failed to acquire lock "+name)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("lock %s: %w: %v", name, errors.ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(held, cancel, name, token, stop, done)

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)
			l.release(name, token)
		})
	}, nil
}

// keepAlive renews the lease until stop is closed. It cancels held when the
// lease is gone or could not be renewed before a third of ttl remained.
func (l *RedisLocker) keepAlive(held context.Context, lost context.CancelCauseFunc, name, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	expires := time.Now().Add(l.ttl)
	for {
		select {
		case <-stop:
			return
		case <-held.Done():
			return
		case <-ticker.C:
		}

		n, err := l.client.Eval(held, renewScript, []string{name}, token, l.ttl.Milliseconds()).Int()
		switch {
		case err == nil && n == 1:
			expires = time.Now().Add(l.ttl)
			continue
		case err == nil:
			lost(fmt.Errorf("lock %s: lease lost: %w", name, errors.ErrLockNotAcquired))
			l.log.Warn().Str("lock", name).Msg("Lock lease lost")
			return
		case held.Err() != nil:
			return
		}

		l.log.Warn().Err(err).Str("lock", name).Msg("Failed to renew lock")
		if time.Until(expires) < l.ttl/3 {
			lost(fmt.Errorf("lock %s: renewal failed: %w", name, errors.ErrLockNotAcquired))
			return
		}
	}
}

func (l *RedisLocker) release(name, token string) {
	// The caller's context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := l.client.Eval(ctx, releaseScript, []string{name}, token).Int()
	if err != nil {
		l.log.Error().Err(err).Str("lock", name).Msg("Failed to release lock")
		return
	}
	if n == 0 {
		l.log.Warn().Str("lock", name).Msg("Lock lease expired before release")
	}
}
