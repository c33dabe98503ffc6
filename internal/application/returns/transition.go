package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseReturnTransition = "return.transition"

// Restocker returns refunded quantities to the ledger.
type Restocker interface {
	Release(ctx context.Context, action string, lines []appinv.Line) error
}

var eventScopes = map[domain.Event]access.Scope{
	domain.EventSchedulePickup: access.ScopeReturnsPickup,
	domain.EventReceive:        access.ScopeReturnsReceive,
	domain.EventPassQC:         access.ScopeReturnsQC,
	domain.EventFailQC:         access.ScopeReturnsQC,
	domain.EventRefund:         access.ScopeReturnsRefund,
}

// authorize gates event for actor. Reopen has no scope: only the admin role may override a
// QC rejection.
// authorizeTarget admits actor when at least one edge into target is open to them. It runs
// before the request is loaded; authorize re-checks the exact edge afterwards.
func authorizeTarget(actor access.Principal, target domain.Status) error {
	events := domain.EventsInto(target)
	for _, e := range events {
		if authorize(actor, e) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move returns to %s", access.ErrForbidden, target)
}

func authorize(actor access.Principal, event domain.Event) error {
	if event == domain.EventReopen {
		if !actor.IsAdmin() {
			return fmt.Errorf("%w: reopen requires admin", access.ErrForbidden)
		}
		return nil
	}
	scope, ok := eventScopes[event]
	if !ok {
		return fmt.Errorf("%w: no scope for %s", access.ErrForbidden, event)
	}
	return actor.Require(scope)
}

type TransitionReturnInput struct {
	ReturnID        string
	Status          string
	Notes           string
	RejectionReason string
}

type TransitionReturnResult struct {
	Request *domain.Request
	From    domain.Status
}

type TransitionReturnUseCase struct {
	repo      domain.Repository
	orders    OrderReader
	locks     Locker
	stock     Restocker
	audit     *appaudit.Writer
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewTransitionReturnUseCase(
	repo domain.Repository,
	orders OrderReader,
	locks Locker,
	stock Restocker,
	audit *appaudit.Writer,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *TransitionReturnUseCase {
	return &TransitionReturnUseCase{
		repo:      repo,
		orders:    orders,
		locks:     locks,
		stock:     stock,
		audit:     audit,
		publisher: publisher,
		in:        application.NewInstruments(tel, returnsService),
	}
}

// Execute applies one return transition. Permission for the target and its mandatory fields
// are checked before anything is loaded, so a rejected call never touches stored state.
func (uc *TransitionReturnUseCase) Execute(ctx context.Context, cmd TransitionReturnInput) (_ *TransitionReturnResult, err error) {
	ctx, run := uc.in.Begin(ctx, useCaseReturnTransition, "TransitionReturn",
		attribute.String("return.id", cmd.ReturnID),
		attribute.String("return.target_status", cmd.Status),
	)
	defer func() { run.End(err) }()

	actor, ok := access.PrincipalFrom(ctx)
	if !ok {
		run.Fail("UNAUTHORIZED")
		return nil, access.ErrUnauthorized
	}
	if strings.TrimSpace(cmd.ReturnID) == "" {
		run.Fail("RETURN_ID_REQUIRED")
		return nil, application.Validation("return request id is required")
	}
	target, err := domain.ParseStatus(strings.TrimSpace(cmd.Status))
	if err != nil {
		run.Fail("INVALID_TRANSITION")
		return nil, err
	}
	if err := authorizeTarget(actor, target); err != nil {
		run.Fail("FORBIDDEN")
		return nil, err
	}
	input := domain.TransitionInput{Notes: cmd.Notes, RejectionReason: cmd.RejectionReason}
	if err := input.ValidateFor(target); err != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, application.ValidationErr(err)
	}

	current, err := uc.repo.Get(ctx, cmd.ReturnID)
	if err != nil {
		run.Fail("RETURN_LOAD_FAILED")
		return nil, wrapRepositoryError(err)
	}
	event, err := domain.EventBetween(current.Status, target)
	if err != nil {
		run.Fail("INVALID_TRANSITION")
		return nil, err
	}
	if err := authorize(actor, event); err != nil {
		run.Fail("FORBIDDEN")
		return nil, err
	}

	next := current.Clone()
	from, err := next.Apply(event, input)
	if err != nil {
		run.Fail("INVALID_TRANSITION")
		if errors.Is(err, domain.ErrNotesRequired) || errors.Is(err, domain.ErrReasonRequired) {
			return nil, application.ValidationErr(err)
		}
		return nil, err
	}

	if event == domain.EventReopen {
		// Reopening reclaims the lines, which later requests may have taken meanwhile.
		err = uc.locks.WithLock(ctx, lock.ReturnKey(next.OrderID), returnLockTTL, func(ctx context.Context) error {
			if err := uc.checkReclaim(ctx, next); err != nil {
				return err
			}
			return uc.repo.UpdateStatus(ctx, next, from)
		})
	} else {
		err = uc.repo.UpdateStatus(ctx, next, from)
	}
	if err != nil {
		if errors.Is(err, domain.ErrExceedsReturnable) || errors.Is(err, lock.ErrLockBusy) {
			run.Fail("RECLAIM_REJECTED")
			return nil, err
		}
		if errors.Is(err, domain.ErrConflict) {
			run.Fail("CONCURRENT_TRANSITION")
			return nil, fmt.Errorf("%w: %s no longer %s", domain.ErrInvalidTransition, next.ID, from)
		}
		run.Fail("RETURN_UPDATE_FAILED")
		return nil, wrapRepositoryError(err)
	}

	uc.audit.Append(ctx, appaudit.Record{
		Action:     domaudit.ActionReturnTransition,
		TargetType: domaudit.TargetReturn,
		TargetID:   next.ID,
		Before:     statusSnapshot(current),
		After:      statusSnapshot(next),
	})

	// Only the single winner of the status swap into Refunded gets here, so restock runs once.
	if next.Status == domain.StatusRefunded {
		if err := uc.stock.Release(ctx, domaudit.ActionReturnRestock, restockLines(next)); err != nil {
			run.Fail("RESTOCK_FAILED")
			return nil, fmt.Errorf("returns: refunded %s but restock failed: %w", next.ID, err)
		}
	}

	run.Publish(ctx, uc.publisher, domain.NewStatusChangedEvent(next, from))
	run.Annotate(
		observability.F("return_id", next.ID),
		observability.F("from", string(from)),
		observability.F("to", string(next.Status)),
	)
	return &TransitionReturnResult{Request: next, From: from}, nil
}

func (uc *TransitionReturnUseCase) checkReclaim(ctx context.Context, r *domain.Request) error {
	o, err := uc.orders.Get(ctx, r.OrderID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
	existing, err := uc.repo.ListByOrder(ctx, r.OrderID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
	others := existing[:0]
	for _, e := range existing {
		if e.ID != r.ID {
			others = append(others, e)
		}
	}
	left := Returnable(o, others)
	for _, it := range r.Items {
		if it.Quantity > left[it.LineItemID] {
			return fmt.Errorf("%w: line %s has %d left, %d to reclaim",
				domain.ErrExceedsReturnable, it.LineItemID, left[it.LineItemID], it.Quantity)
		}
		left[it.LineItemID] -= it.Quantity
	}
	return nil
}

func restockLines(r *domain.Request) []appinv.Line {
	lines := make([]appinv.Line, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, appinv.Line{
			Key:      dominv.VariantKey{ProductID: it.ProductID, Variant: it.Variant},
			Quantity: it.Quantity,
		})
	}
	return appinv.MergeLines(lines)
}

func wrapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
