// Package lock provides per-key exclusive locks used to serialize mutations
// of a single aggregate. This is part of the platform layer and contains no
// business logic.
package lock

import "context"

// Locker acquires an exclusive lock for key. The returned unlock func is safe
// to call more than once. Acquisition failures are retriable.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
