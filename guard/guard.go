// Package guard serializes work on a single key. Treasury takes a guard on
// the campaign (or creator) before opening a store transaction so that
// concurrent calls for the same key queue up instead of racing on
// optimistic row versions.
package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrNotObtained is returned when a lock cannot be acquired before the
// context is done or the backend gives up retrying.
var ErrNotObtained = errors.New("guard: lock not obtained")

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Locker acquires mutual exclusion on a key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Nop is a Locker that never blocks. Use it when the store's own
// transactions are the only serialization required.
type Nop struct{}

// Lock implements Locker.
func (Nop) Lock(context.Context, string) (Unlock, error) { return func() {}, nil }

// Local is an in-process keyed mutex. Entries are reference-counted and
// removed once no goroutine holds or waits on them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

// Lock implements Locker. It blocks until the key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, errors.Join(ErrNotObtained, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *Local) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// Len reports how many keys are currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
