package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

const (
	componentLock     = "reservation-lock"
	releaseTimeout    = time.Second
	DefaultTTL        = 5 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 15 * time.Millisecond
)

type Options struct {
	// Retries is the number of extra immediate attempts after the first one.
	Retries    int
	RetryDelay time.Duration
}

// Manager serializes critical sections per key through a shared Locker. The lock is an
// advisory throughput aid; correctness of stock never depends on it.
type Manager struct {
	locker   lock.Locker
	opts     Options
	log      observability.Logger
	attempts observability.Counter
}

func NewManager(locker lock.Locker, opts Options, tel observability.Observability) *Manager {
	if tel == nil {
		tel = observability.Nop()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	return &Manager{
		locker:   locker,
		opts:     opts,
		log:      tel.Logger().With(observability.F("component", componentLock)),
		attempts: tel.Metrics().Counter(observability.MLockAcquisitions),
	}
}

// WithLock runs fn while holding key. Contention beyond the retry budget fails fast with
// lock.ErrLockBusy. Lock-store failures degrade to running fn unlocked. The lock is released on
// every exit path, including panics.
func (m *Manager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := logctx.FromOr(ctx, m.log).With(observability.F("lock_key", key))

	token, held, err := m.acquire(ctx, key, ttl)
	switch {
	case errors.Is(err, lock.ErrLockBusy):
		m.count("busy")
		logger.Info("lock_busy", observability.F("attempts", m.opts.Retries+1))
		return err
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.count("degraded")
		logger.Warn("lock_unavailable_degraded", observability.F("error", err))
	default:
		m.count("acquired")
	}

	if held {
		defer m.release(ctx, logger, key, token)
	}
	return fn(ctx)
}

func (m *Manager) acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= m.opts.Retries; attempt++ {
		if attempt > 0 && m.opts.RetryDelay > 0 {
			timer := time.NewTimer(m.opts.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", false, ctx.Err()
			case <-timer.C:
			}
		}
		token, ok, err := m.locker.TryAcquire(ctx, key, ttl)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return token, true, nil
		}
		lastErr = lock.ErrLockBusy
	}
	return "", false, lastErr
}

func (m *Manager) release(ctx context.Context, logger observability.Logger, key, token string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := m.locker.Release(relCtx, key, token); err != nil {
		// The TTL bounds how long a lost release can block the key.
		logger.Warn("lock_release_failed", observability.F("error", err))
	}
}

func (m *Manager) count(outcome string) {
	m.attempts.Add(1, observability.L("outcome", outcome))
}
