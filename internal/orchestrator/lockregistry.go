package orchestrator

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// aideLock is a channel-based binary semaphore standing in for a mutex that
// supports context-bounded acquisition: sync.Mutex has no way to time out a
// Lock() call, and a second caller on a busy aide must wait only up to a
// configurable bound before getting a busy error.
type aideLock chan struct{}

func newAideLock() aideLock {
	l := make(aideLock, 1)
	l <- struct{}{}
	return l
}

// Acquire blocks until the lock is free or ctx is done, whichever comes
// first.
func (l aideLock) Acquire(ctx context.Context) error {
	select {
	case <-l:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns the lock. Must only be called by a goroutine that
// successfully called Acquire.
func (l aideLock) Release() {
	l <- struct{}{}
}

// LockRegistry serializes turns per aide: a concurrent map of id -> lock
// with eviction of idle entries, realized over hashicorp/golang-lru/v2's
// expirable LRU rather than a hand-rolled map plus cleanup ticker.
type LockRegistry struct {
	// createMu serializes the check-then-create race on a cache miss; it is
	// held only long enough to look up or insert an entry, never across a
	// whole turn.
	createMu sync.Mutex
	cache    *lru.LRU[string, aideLock]
}

// NewLockRegistry builds a registry that evicts an aide's lock entry after
// idleTTL of disuse. idleTTL <= 0 defaults to 10 minutes.
func NewLockRegistry(idleTTL time.Duration) *LockRegistry {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &LockRegistry{cache: lru.NewLRU[string, aideLock](4096, nil, idleTTL)}
}

// lockFor returns the lock for aideID, creating one on first use.
func (r *LockRegistry) lockFor(aideID string) aideLock {
	r.createMu.Lock()
	defer r.createMu.Unlock()
	if l, ok := r.cache.Get(aideID); ok {
		// Get does not extend an entry's expiry; re-adding it does, so the
		// idle TTL counts from the last use rather than from creation.
		r.cache.Add(aideID, l)
		return l
	}
	l := newAideLock()
	r.cache.Add(aideID, l)
	return l
}

// Acquire blocks (bounded by ctx) until aideID's lock is held by the caller.
// Callers must call the returned release func exactly once.
func (r *LockRegistry) Acquire(ctx context.Context, aideID string) (release func(), err error) {
	l := r.lockFor(aideID)
	if err := l.Acquire(ctx); err != nil {
		return nil, err
	}
	return l.Release, nil
}
