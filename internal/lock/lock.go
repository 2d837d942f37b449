// Package lock serializes pipeline runs with an advisory, non-blocking lock.
package lock

import (
	"context"
	"errors"
	"sync"
)

const (
	DriverLocal = "local"
	DriverRedis = "redis"
)

// ErrLocked is returned by TryLock when another run holds the lock.
var ErrLocked = errors.New("run lock is held by another run")

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

// Locker acquires the run lock without waiting.
type Locker interface {
	TryLock(ctx context.Context) (Release, error)
}

// Local guards runs inside a single process.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryLock(context.Context) (Release, error) {
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
