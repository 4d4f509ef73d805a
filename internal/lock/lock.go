// Package lock serializes work on a key, either inside one process or across
// processes through redis.
package lock

import (
	"context"
	"sync"
)

// Locker hands out exclusive access to a key. The returned context is done
// once the lock is released or can no longer be guaranteed; work done under
// the lock should use it. The release func must be called.
type Locker interface {
	Acquire(ctx context.Context, key string) (held context.Context, release func(), err error)
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds
// or waits for them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

func (m *KeyedMutex) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, e)
		return nil, nil, ctx.Err()
	}

	held, cancel := context.WithCancel(ctx)
	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel()
			<-e.sem
			m.unref(key, e)
		})
	}, nil
}

func (m *KeyedMutex) unref(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len reports how many keys are held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
