package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domlock "github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
)

type holder struct {
	token   string
	expires time.Time
}

// MemoryLocker is an in-process Locker for single-node deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]holder
	clock func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]holder),
		clock: time.Now,
	}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = holder{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.held[key]
	if !ok || h.token != token {
		return domlock.ErrNotHeld
	}
	delete(l.held, key)
	return nil
}
