// Package lock abstracts the per-owner run exclusivity the supervisor
// wrapper needs: the task-polling command is intentionally single-threaded
// to avoid double-dispatching checkouts, and this is the cross-process
// analogue when the supervisor overlaps two invocations for the same owner.
// Adapted from discovery.Registry's pattern of a Consul implementation plus
// an in-memory test double.
package lock

import "context"

// Locker guards one named resource (an owner id's command run) against
// concurrent holders.
type Locker interface {
	// TryAcquire attempts to take the lock for key. ok is false if another
	// holder currently has it; release must be called to give it up.
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}
