package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockBusy means another holder owns the key; callers should retry later.
	ErrLockBusy = errors.New("lock: busy")
	// ErrNotHeld is returned by Release when the token no longer owns the key.
	ErrNotHeld = errors.New("lock: not held")
)

// Locker is a shared key-value mutex. Implementations must be safe across goroutines and,
// for distributed ones, across processes.
type Locker interface {
	// TryAcquire attempts to take key for ttl without blocking. ok is false when the key is
	// held by someone else; err is reserved for infrastructure failures.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees key only if token still owns it.
	Release(ctx context.Context, key, token string) error
}

// ReservationKey scopes a lock to one product variant.
func ReservationKey(productID, variant string) string {
	return "lock:stock:" + productID + ":" + variant
}

// ReturnKey scopes a lock to the returnable quantities of one order.
func ReturnKey(orderID string) string {
	return "lock:returns:" + orderID
}
