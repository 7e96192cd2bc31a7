// Package lock guarantees that at most one collection cycle writes at a time.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrLocked = errors.New("cycle lock held")

// Locker hands out the cycle lock. Acquire does not wait: when the lock is held
// it returns ErrLocked.
type Locker interface {
	Acquire(ctx context.Context) (func(), error)
}

// Local is an in-process lock.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
