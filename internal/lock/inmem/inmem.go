// Package inmem is an in-process lock.Locker for tests, mirroring
// discovery/inmem/inmem.go's "no external dependency needed for unit tests"
// role.
//
// Production: consul.Locker (see internal/lock/consul).
// Testing/local: inmem.Locker.
package inmem

import "context"

type Locker struct {
	held map[string]bool
}

func NewLocker() *Locker {
	return &Locker{held: map[string]bool{}}
}

func (l *Locker) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	if l.held[key] {
		return nil, false, nil
	}

	l.held[key] = true
	release := func() {
		delete(l.held, key)
	}

	return release, true, nil
}
