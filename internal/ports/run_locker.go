package ports

import "context"

// RunLocker serializes optimization runs across service instances.
type RunLocker interface {
	// TryLock acquires the lock without waiting. The returned release func is
	// non-nil only when acquired is true.
	TryLock(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}
