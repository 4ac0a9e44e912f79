package chat

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Locker grants exclusive, non-blocking ownership of a key. The returned
// release func must be safe to call more than once.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Guard allows one active stream per user. A nil Guard allows everything.
type Guard struct {
	locker Locker
	prefix string
}

// NewGuard builds a guard on top of locker.
func NewGuard(locker Locker) *Guard {
	return &Guard{locker: locker, prefix: "chat:stream:"}
}

// Acquire claims the user's stream slot.
func (g *Guard) Acquire(ctx context.Context, userID int64) (func(), error) {
	if g == nil || g.locker == nil {
		return func() {}, nil
	}
	release, ok, err := g.locker.TryLock(ctx, g.prefix+strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	if !ok {
		return nil, ErrStreamInProgress
	}
	return release, nil
}

// MemoryLocker is an in-process Locker for single instance deployments.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// TryLock implements Locker.
func (l *MemoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
