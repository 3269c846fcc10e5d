// Package lease provides short-lived exclusive leases used to serialize
// sync passes and token refreshes per user.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned when the lease is already held by another worker.
var ErrHeld = errors.New("lease already held")

// ReleaseFunc releases an acquired lease. Safe to call once.
type ReleaseFunc func(ctx context.Context)

// Locker acquires named exclusive leases with a bounded lifetime.
type Locker interface {
	// Acquire takes the lease for key, or returns ErrHeld when another
	// holder is active. The lease expires after ttl even if never released.
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

type memoryHold struct {
	holder   uint64
	deadline time.Time
}

// MemoryLocker is an in-process Locker for single-node deployments and tests.
type MemoryLocker struct {
	mu     sync.Mutex
	holds  map[string]memoryHold
	nextID uint64
}

// NewMemoryLocker creates a new in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{holds: make(map[string]memoryHold)}
}

// Acquire takes the lease for key if it is free or expired. The release
// only drops the lease while this acquisition still holds it; a release
// arriving after the TTL expired leaves a successor's lease untouched.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if hold, ok := l.holds[key]; ok && now.Before(hold.deadline) {
		return nil, ErrHeld
	}
	l.nextID++
	holder := l.nextID
	l.holds[key] = memoryHold{holder: holder, deadline: now.Add(ttl)}

	return func(ctx context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if hold, ok := l.holds[key]; ok && hold.holder == holder {
			delete(l.holds, key)
		}
	}, nil
}
