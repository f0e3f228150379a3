package store

import (
	"context"
	"sync"
)

// MemoryLocker implements Locker with one in-process mutex per resource. It
// satisfies the same exclusivity contract as FileLocker for a single process
// and is the substitution tests use.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) resourceLock(resource string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[resource]
	if !ok {
		m = &sync.Mutex{}
		l.locks[resource] = m
	}
	return m
}

// WithExclusive runs fn while holding the mutex for resource.
func (l *MemoryLocker) WithExclusive(ctx context.Context, resource string, fn func() error) error {
	m := l.resourceLock(resource)
	m.Lock()
	defer m.Unlock()
	return fn()
}
