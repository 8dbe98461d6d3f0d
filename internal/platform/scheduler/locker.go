package scheduler

import (
	"context"
	"sync"
	"time"
)

// Locker guards a source against overlapping runs, across processes when
// backed by a shared store.
type Locker interface {
	// TryLock returns acquired=false without error when the lock is held elsewhere
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// LocalLocker is an in-process Locker
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), clock: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, false, nil
	}

	expires := now.Add(ttl)
	l.held[key] = expires
	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// a lock that expired and was taken again belongs to someone else
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
		return nil
	}
	return release, true, nil
}
