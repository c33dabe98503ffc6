package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/reservation"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

const (
	inventoryService = "inventory-service"
	releaseTimeout   = 5 * time.Second
)

// Line is one stock movement request.
type Line struct {
	Key      dominv.VariantKey
	Quantity int
}

type movement struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant"`
	Delta     int    `json:"delta"`
	// For is the action the movement was made under, set on failure records.
	For   string `json:"for,omitempty"`
	Error string `json:"error,omitempty"`
}

// ReleaseError lists the lines Release could not return to the ledger.
type ReleaseError struct {
	Failed []Line
	Err    error
}

func (e *ReleaseError) Error() string { return e.Err.Error() }
func (e *ReleaseError) Unwrap() error { return e.Err }

// Service owns every stock movement the storefront makes: reservations under the per-variant
// lock, and compensating releases.
type Service struct {
	ledger dominv.Ledger
	locks  *reservation.Manager
	audit  *appaudit.Writer
	ttl    time.Duration
	log    observability.Logger
}

func NewService(ledger dominv.Ledger, locks *reservation.Manager, audit *appaudit.Writer, lockTTL time.Duration, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		ledger: ledger,
		locks:  locks,
		audit:  audit,
		ttl:    lockTTL,
		log:    tel.Logger().With(observability.F("service", inventoryService)),
	}
}

// Reserve takes every line or none. When a line fails, lines reserved earlier in the same call
// are released before the error is returned.
func (s *Service) Reserve(ctx context.Context, lines []Line) error {
	done := make([]Line, 0, len(lines))
	for _, l := range lines {
		if err := s.reserveOne(ctx, l); err != nil {
			if len(done) > 0 {
				_ = s.Release(ctx, domaudit.ActionInventoryRelease, done)
			}
			return err
		}
		done = append(done, l)
	}
	return nil
}

func (s *Service) reserveOne(ctx context.Context, l Line) error {
	if l.Quantity <= 0 {
		return dominv.ErrInvalidQuantity
	}
	err := s.locks.WithLock(ctx, lock.ReservationKey(l.Key.ProductID, l.Key.Variant), s.ttl, func(ctx context.Context) error {
		return s.ledger.Reserve(ctx, l.Key, l.Quantity)
	})
	if err != nil {
		if errors.Is(err, dominv.ErrOutOfStock) || errors.Is(err, lock.ErrLockBusy) {
			return fmt.Errorf("reserve %s: %w", l.Key, err)
		}
		return fmt.Errorf("inventory: reserve %s: %w", l.Key, err)
	}

	s.audit.Append(ctx, appaudit.Record{
		Action:     domaudit.ActionInventoryReserve,
		TargetType: domaudit.TargetVariant,
		TargetID:   l.Key.String(),
		After:      movement{ProductID: l.Key.ProductID, Variant: l.Key.Variant, Delta: -l.Quantity},
	})
	return nil
}

// Release returns quantities to the ledger, recording each increment under action. It keeps
// going past individual failures and runs to completion even when ctx is already cancelled.
// Lines it could not return are audited as ActionInventoryReleaseFailed and reported in a
// *ReleaseError.
func (s *Service) Release(ctx context.Context, action string, lines []Line) error {
	logger := logctx.FromOr(ctx, s.log)
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	var (
		errs   []error
		failed []Line
	)
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if err := s.ledger.Release(relCtx, l.Key, l.Quantity); err != nil {
			logger.Error("inventory_release_failed",
				observability.F("variant", l.Key.String()),
				observability.F("quantity", l.Quantity),
				observability.F("action", action),
				observability.F("error", err),
			)
			errs = append(errs, fmt.Errorf("inventory: release %s: %w", l.Key, err))
			failed = append(failed, l)
			s.audit.Append(relCtx, appaudit.Record{
				Action:     domaudit.ActionInventoryReleaseFailed,
				TargetType: domaudit.TargetVariant,
				TargetID:   l.Key.String(),
				After: movement{
					ProductID: l.Key.ProductID,
					Variant:   l.Key.Variant,
					Delta:     l.Quantity,
					For:       action,
					Error:     err.Error(),
				},
			})
			continue
		}
		s.audit.Append(ctx, appaudit.Record{
			Action:     action,
			TargetType: domaudit.TargetVariant,
			TargetID:   l.Key.String(),
			After:      movement{ProductID: l.Key.ProductID, Variant: l.Key.Variant, Delta: l.Quantity},
		})
	}
	if len(failed) == 0 {
		return nil
	}
	return &ReleaseError{Failed: failed, Err: errors.Join(errs...)}
}

// MergeLines folds duplicate variants into one line, keeping first-seen order.
func MergeLines(lines []Line) []Line {
	index := make(map[dominv.VariantKey]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.Key]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.Key] = len(out)
		out = append(out, l)
	}
	return out
}
