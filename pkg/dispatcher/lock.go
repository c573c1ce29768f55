package dispatcher

import (
	"context"
	"sync"
	"time"
)

// Locker grants exclusive per-target leases. Acquire never blocks waiting for
// a held lease; it reports false instead.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// LocalLocker serializes runs within one process.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		keys: make(map[string]struct{}),
	}
}

// Acquire ignores ttl; a local lease lives until it is released.
func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.keys[key]; held {
		return nil, false, nil
	}

	l.keys[key] = struct{}{}

	return &localLease{locker: l, key: key}, true, nil
}

func (l *LocalLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.keys, key)
}

type localLease struct {
	locker *LocalLocker
	key    string
	once   sync.Once
}

func (l *localLease) Release(_ context.Context) error {
	l.once.Do(func() {
		l.locker.release(l.key)
	})

	return nil
}
