package order

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
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderTransition = "order.transition"

// eventScopes maps each order event to the scope allowed to apply it.
var eventScopes = map[domain.Event]access.Scope{
	domain.EventConfirm: access.ScopeOrdersConfirm,
	domain.EventPack:    access.ScopeOrdersPack,
	domain.EventShip:    access.ScopeOrdersShip,
	domain.EventDeliver: access.ScopeOrdersDeliver,
	domain.EventCancel:  access.ScopeOrdersCancel,
}

// ScopeFor returns the scope gating event.
func ScopeFor(event domain.Event) (access.Scope, bool) {
	s, ok := eventScopes[event]
	return s, ok
}

// TransitionOrderInput names the move either by Action or by target Status; Action wins.
type TransitionOrderInput struct {
	OrderID string
	Action  string
	Status  string
}

type TransitionOrderResult struct {
	Order *domain.Order
	From  domain.Status
}

type TransitionOrderUseCase struct {
	repo      domain.Repository
	stock     StockPort
	audit     *appaudit.Writer
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewTransitionOrderUseCase(
	repo domain.Repository,
	stock StockPort,
	audit *appaudit.Writer,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *TransitionOrderUseCase {
	return &TransitionOrderUseCase{
		repo:      repo,
		stock:     stock,
		audit:     audit,
		publisher: publisher,
		in:        application.NewInstruments(tel, orderService),
	}
}

func (uc *TransitionOrderUseCase) Execute(ctx context.Context, cmd TransitionOrderInput) (_ *TransitionOrderResult, err error) {
	ctx, run := uc.in.Begin(ctx, useCaseOrderTransition, "TransitionOrder",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.action", cmd.Action),
		attribute.String("order.target_status", cmd.Status),
	)
	defer func() { run.End(err) }()

	actor, ok := access.PrincipalFrom(ctx)
	if !ok {
		run.Fail("UNAUTHORIZED")
		return nil, access.ErrUnauthorized
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.Validation("order id is required")
	}
	if cmd.Action == "" && cmd.Status == "" {
		run.Fail("ACTION_REQUIRED")
		return nil, application.Validation("action or status is required")
	}

	current, err := uc.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, wrapRepositoryError(err)
	}

	event, err := resolveEvent(current.Status, cmd)
	if err != nil {
		run.Fail("INVALID_TRANSITION")
		return nil, err
	}
	scope, _ := ScopeFor(event)
	if err := actor.Require(scope); err != nil {
		run.Fail("FORBIDDEN")
		return nil, err
	}

	next := current.Clone()
	from, err := next.Apply(event)
	if err != nil {
		run.Fail("INVALID_TRANSITION")
		return nil, err
	}

	if err := uc.repo.UpdateStatus(ctx, next, from); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Someone else moved the order first; report against what is stored now.
			run.Fail("CONCURRENT_TRANSITION")
			return nil, fmt.Errorf("%w: %s no longer %s", domain.ErrInvalidTransition, next.ID, from)
		}
		run.Fail("ORDER_UPDATE_FAILED")
		return nil, wrapRepositoryError(err)
	}

	uc.audit.Append(ctx, appaudit.Record{
		Action:     domaudit.ActionOrderTransition,
		TargetType: domaudit.TargetOrder,
		TargetID:   next.ID,
		Before:     orderSnapshot{Status: from},
		After:      orderSnapshot{Status: next.Status},
	})

	if event == domain.EventCancel {
		if err := uc.stock.Release(ctx, domaudit.ActionInventoryRelease, linesOf(next)); err != nil {
			// The cancel is committed and cannot be retried, so the owed stock goes on record.
			owed := linesOf(next)
			var relErr *appinv.ReleaseError
			if errors.As(err, &relErr) {
				owed = relErr.Failed
			}
			uc.audit.Append(ctx, appaudit.Record{
				Action:     domaudit.ActionOrderReleaseOwed,
				TargetType: domaudit.TargetOrder,
				TargetID:   next.ID,
				After:      owedSnapshot(owed),
			})
			run.Fail("CANCEL_RELEASE_FAILED")
			return nil, fmt.Errorf("order: cancelled %s but stock release failed: %w", next.ID, err)
		}
	}

	run.Publish(ctx, uc.publisher, domain.NewStatusChangedEvent(next, from))
	run.Annotate(
		observability.F("order_id", next.ID),
		observability.F("from", string(from)),
		observability.F("to", string(next.Status)),
	)
	return &TransitionOrderResult{Order: next, From: from}, nil
}

type owedLine struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity"`
}

type owedStock struct {
	Lines []owedLine `json:"lines"`
}

func owedSnapshot(lines []appinv.Line) owedStock {
	out := owedStock{Lines: make([]owedLine, 0, len(lines))}
	for _, l := range lines {
		out.Lines = append(out.Lines, owedLine{ProductID: l.Key.ProductID, Variant: l.Key.Variant, Quantity: l.Quantity})
	}
	return out
}

func resolveEvent(current domain.Status, cmd TransitionOrderInput) (domain.Event, error) {
	if cmd.Action != "" {
		return domain.ParseEvent(strings.ToLower(strings.TrimSpace(cmd.Action)))
	}
	target, err := domain.ParseStatus(strings.ToLower(strings.TrimSpace(cmd.Status)))
	if err != nil {
		return "", err
	}
	return domain.EventBetween(current, target)
}
