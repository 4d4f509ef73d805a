package lock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := m.Acquire(ctx, "book.xls")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	_, releaseA, err := m.Acquire(ctx, "a.xls")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		_, releaseB, err := m.Acquire(ctx, "b.xls")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b.xls blocked behind a.xls")
	}
}

func TestKeyedMutexContextCancel(t *testing.T) {
	m := NewKeyedMutex()
	held, release, err := m.Acquire(context.Background(), "book.xls")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = m.Acquire(ctx, "book.xls")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.NoError(t, held.Err())
	release()
	release()
	assert.Error(t, held.Err())
	assert.Equal(t, 0, m.Len())
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLocker(client, "test:lock:", time.Second, 10*time.Millisecond, zerolog.Nop())
	_, release, err := l.Acquire(context.Background(), "book.xls")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = l.Acquire(ctx, "book.xls")
	assert.Error(t, err)

	release()
	_, release2, err := l.Acquire(context.Background(), "book.xls")
	require.NoError(t, err)
	release2()
}

// fakeLeases is an in-memory stand-in for the redis keys behind RedisLocker.
type fakeLeases struct {
	mu       sync.Mutex
	values   map[string]string
	expires  map[string]time.Time
	renewals int
	renewErr error
}

func newFakeLeases() *fakeLeases {
	return &fakeLeases{values: map[string]string{}, expires: map[string]time.Time{}}
}

func (f *fakeLeases) live(key string) (string, bool) {
	v, ok := f.values[key]
	if ok && time.Now().After(f.expires[key]) {
		delete(f.values, key)
		return "", false
	}
	return v, ok
}

func (f *fakeLeases) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live(key); ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.expires[key] = time.Now().Add(expiration)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLeases) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.live(keys[0]); !ok || v != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch script {
	case renewScript:
		if f.renewErr != nil {
			return redis.NewCmdResult(nil, f.renewErr)
		}
		f.expires[keys[0]] = time.Now().Add(time.Duration(args[1].(int64)) * time.Millisecond)
		f.renewals++
	case releaseScript:
		delete(f.values, keys[0])
	}
	return redis.NewCmdResult(int64(1), nil)
}

// steal hands the lease to another holder.
func (f *fakeLeases) steal(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = "someone-else"
	f.expires[key] = time.Now().Add(time.Minute)
}

func (f *fakeLeases) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live(key)
	return ok
}

func TestRedisLockerRenewsLease(t *testing.T) {
	leases := newFakeLeases()
	l := newRedisLocker(leases, "lock:", 60*time.Millisecond, 5*time.Millisecond, zerolog.Nop())

	held, release, err := l.Acquire(context.Background(), "file:f-1")
	require.NoError(t, err)

	// Hold well past the ttl; renewals keep the lease alive.
	time.Sleep(200 * time.Millisecond)
	assert.True(t, leases.held("lock:file:f-1"))
	assert.NoError(t, held.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, err = l.Acquire(ctx, "file:f-1")
	assert.ErrorIs(t, err, errors.ErrLockNotAcquired)

	release()
	assert.False(t, leases.held("lock:file:f-1"))
	assert.Error(t, held.Err())

	leases.mu.Lock()
	assert.GreaterOrEqual(t, leases.renewals, 3)
	leases.mu.Unlock()
}

func TestRedisLockerCancelsWhenLeaseLost(t *testing.T) {
	leases := newFakeLeases()
	l := newRedisLocker(leases, "lock:", 60*time.Millisecond, 5*time.Millisecond, zerolog.Nop())

	held, release, err := l.Acquire(context.Background(), "file:f-1")
	require.NoError(t, err)
	defer release()

	leases.steal("lock:file:f-1")
	select {
	case <-held.Done():
	case <-time.After(time.Second):
		t.Fatal("holder not told about the lost lease")
	}
	assert.ErrorIs(t, context.Cause(held), errors.ErrLockNotAcquired)

	release()
	// Releasing must not delete the new holder's lease.
	assert.True(t, leases.held("lock:file:f-1"))
}

func TestRedisLockerCancelsWhenRenewalFails(t *testing.T) {
	leases := newFakeLeases()
	leases.renewErr = redis.ErrClosed
	l := newRedisLocker(leases, "lock:", 60*time.Millisecond, 5*time.Millisecond, zerolog.Nop())

	held, release, err := l.Acquire(context.Background(), "file:f-1")
	require.NoError(t, err)
	defer release()

	select {
	case <-held.Done():
	case <-time.After(time.Second):
		t.Fatal("holder kept working without a renewed lease")
	}
	assert.ErrorIs(t, context.Cause(held), errors.ErrLockNotAcquired)
}
