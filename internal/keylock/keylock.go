// Package keylock serializes access to individual session ids. Distinct keys
// never block one another, and entries are reclaimed once the last holder or
// waiter is gone, so the lock table stays bounded under id churn.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyLock is a set of per-key mutual exclusion tokens with context-aware
// acquisition. The zero value is not usable; construct with [New].
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty lock table.
func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Acquire blocks until the token for key is held or ctx is done. On success
// the returned release func must be called on every exit path; it is safe to
// call exactly once.
func (l *KeyLock) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.unref(key, e)
		}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

// TryAcquire takes the token for key only if it is free. The second return
// reports whether the token was taken.
func (l *KeyLock) TryAcquire(key string) (func(), bool) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.unref(key, e)
		}, true
	default:
		l.unref(key, e)
		return nil, false
	}
}

// Len reports the number of live entries. Test hook for the reclamation
// invariant.
func (l *KeyLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyLock) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 && l.entries[key] == e {
		delete(l.entries, key)
	}
}
