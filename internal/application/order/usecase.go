package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService      = "order-service"
	useCaseOrderPlace = "order.place"

	replaySettleAttempts = 5
	replaySettleDelay    = 20 * time.Millisecond
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

type CartLine struct {
	ProductID string
	Variant   string
	Quantity  int
}

type PlaceOrderInput struct {
	UserID       string
	Items        []CartLine
	Shipping     domain.Address
	Confirmation dompay.Confirmation
}

type PlaceOrderResult struct {
	Order *domain.Order
	// Replayed is true when the confirmation had already produced this order.
	Replayed bool
}

// PlaceOrderUseCase turns a paid cart into a Processing order: verify payment, replay a consumed
// confirmation, price and reserve every line, then persist.
type PlaceOrderUseCase struct {
	repo      domain.Repository
	catalog   catalog.Catalog
	stock     StockPort
	gate      PaymentGate
	pricing   domain.Pricing
	ids       application.IDGenerator
	audit     *appaudit.Writer
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewPlaceOrderUseCase(
	repo domain.Repository,
	cat catalog.Catalog,
	stock StockPort,
	gate PaymentGate,
	pricing domain.Pricing,
	ids application.IDGenerator,
	audit *appaudit.Writer,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *PlaceOrderUseCase {
	return &PlaceOrderUseCase{
		repo:      repo,
		catalog:   cat,
		stock:     stock,
		gate:      gate,
		pricing:   pricing,
		ids:       ids,
		audit:     audit,
		publisher: publisher,
		in:        application.NewInstruments(tel, orderService),
	}
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, run := uc.in.Begin(ctx, useCaseOrderPlace, "PlaceOrder",
		attribute.String("order.user_id", cmd.UserID),
		attribute.String("payment.id", cmd.Confirmation.PaymentID),
		attribute.Int("order.line_count", len(cmd.Items)),
	)
	span := run.Span()
	defer func() { run.End(err) }()

	lines, err := validatePlace(cmd)
	if err != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, err
	}

	if err := uc.gate.Verify(ctx, cmd.Confirmation); err != nil {
		if errors.Is(err, dompay.ErrPaymentInvalid) {
			run.Fail("PAYMENT_INVALID")
		} else {
			run.Fail("PAYMENT_VERIFY_FAILED")
		}
		return nil, err
	}

	if existing, ok, lookupErr := uc.gate.Consumed(ctx, cmd.Confirmation.PaymentID); lookupErr != nil {
		run.Fail("PAYMENT_LOOKUP_FAILED")
		return nil, lookupErr
	} else if ok {
		return uc.replay(run, existing, cmd.UserID)
	}

	items, err := uc.price(ctx, lines)
	if err != nil {
		run.Fail("PRICING_FAILED")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	if err := uc.stock.Reserve(ctx, lines); err != nil {
		if errors.Is(err, dominv.ErrOutOfStock) || errors.Is(err, lock.ErrLockBusy) {
			// A concurrent delivery of this confirmation may hold the stock we lost to.
			if existing, ok := uc.awaitConsumed(ctx, cmd.Confirmation.PaymentID); ok {
				return uc.replay(run, existing, cmd.UserID)
			}
		}
		switch {
		case errors.Is(err, dominv.ErrOutOfStock):
			run.Fail("OUT_OF_STOCK")
		case errors.Is(err, application.ErrValidation), errors.Is(err, dominv.ErrInvalidQuantity):
			run.Fail("VALIDATION_FAILED")
		default:
			run.Fail("RESERVATION_FAILED")
		}
		return nil, err
	}

	entity, err := domain.New(uc.ids.NewID(), cmd.UserID, cmd.Confirmation.PaymentID, items, cmd.Shipping, uc.pricing)
	if err != nil {
		uc.compensate(ctx, run, lines)
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, application.ValidationErr(err)
	}

	if err := uc.repo.Insert(ctx, entity); err != nil {
		uc.compensate(ctx, run, lines)
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race with a concurrent delivery of the same confirmation.
			if existing, ok, lookupErr := uc.gate.Consumed(ctx, cmd.Confirmation.PaymentID); lookupErr == nil && ok {
				return uc.replay(run, existing, cmd.UserID)
			}
		}
		run.Fail("REPO_INSERT_FAILED")
		return nil, wrapRepositoryError(err)
	}

	uc.audit.Append(ctx, appaudit.Record{
		Action:     domaudit.ActionOrderCreate,
		TargetType: domaudit.TargetOrder,
		TargetID:   entity.ID,
		After:      snapshotOf(entity),
	})
	run.Publish(ctx, uc.publisher, domain.NewPlacedEvent(entity))

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.placed", trace.WithAttributes(attribute.String("order.id", entity.ID)))
	run.Annotate(
		observability.F("order_id", entity.ID),
		observability.F("total", entity.Totals.Total),
	)
	return &PlaceOrderResult{Order: entity}, nil
}

// awaitConsumed polls briefly for an order created from paymentID by a concurrent delivery that
// has reserved stock but not yet inserted.
func (uc *PlaceOrderUseCase) awaitConsumed(ctx context.Context, paymentID string) (*domain.Order, bool) {
	for attempt := 0; ; attempt++ {
		existing, ok, err := uc.gate.Consumed(ctx, paymentID)
		if err == nil && ok {
			return existing, true
		}
		if err != nil || attempt >= replaySettleAttempts {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(replaySettleDelay):
		}
	}
}

func (uc *PlaceOrderUseCase) replay(run *application.Run, existing *domain.Order, userID string) (*PlaceOrderResult, error) {
	if existing.UserID != userID {
		run.Fail("PAYMENT_ALREADY_CONSUMED")
		return nil, fmt.Errorf("%w: payment %s belongs to another order", ErrConflict, existing.PaymentID)
	}
	run.Status("IDEMPOTENT_REPLAY")
	run.Span().AddEvent("order.idempotent_replay",
		trace.WithAttributes(attribute.String("order.id", existing.ID)),
	)
	run.Annotate(observability.F("order_id", existing.ID))
	return &PlaceOrderResult{Order: existing, Replayed: true}, nil
}

func (uc *PlaceOrderUseCase) compensate(ctx context.Context, run *application.Run, lines []appinv.Line) {
	if err := uc.stock.Release(ctx, domaudit.ActionInventoryRelease, lines); err != nil {
		run.Annotate(observability.F("compensation_error", err.Error()))
	}
}

func (uc *PlaceOrderUseCase) price(ctx context.Context, lines []appinv.Line) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(lines))
	for _, l := range lines {
		p, err := uc.catalog.Price(ctx, l.Key.ProductID, l.Key.Variant)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, application.Validation(fmt.Sprintf("unknown product variant %s", l.Key))
			}
			return nil, fmt.Errorf("order: price %s: %w", l.Key, err)
		}
		items = append(items, domain.LineItem{
			ID:        uc.ids.NewID(),
			ProductID: l.Key.ProductID,
			Variant:   l.Key.Variant,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: p.UnitPrice,
		})
	}
	return items, nil
}

func validatePlace(cmd PlaceOrderInput) ([]appinv.Line, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return nil, application.Validation("user id is required")
	}
	if len(cmd.Items) == 0 {
		return nil, application.ValidationErr(domain.ErrNoItems)
	}
	lines := make([]appinv.Line, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		key, err := dominv.NewVariantKey(it.ProductID, it.Variant)
		if err != nil {
			return nil, application.ValidationErr(err)
		}
		if it.Quantity <= 0 {
			return nil, application.ValidationErr(domain.ErrInvalidQuantity)
		}
		lines = append(lines, appinv.Line{Key: key, Quantity: it.Quantity})
	}
	return appinv.MergeLines(lines), nil
}

func linesOf(o *domain.Order) []appinv.Line {
	lines := make([]appinv.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, appinv.Line{
			Key:      dominv.VariantKey{ProductID: it.ProductID, Variant: it.Variant},
			Quantity: it.Quantity,
		})
	}
	return lines
}

type orderSnapshot struct {
	Status    domain.Status     `json:"status"`
	UserID    string            `json:"user_id,omitempty"`
	PaymentID string            `json:"payment_id,omitempty"`
	Totals    *domain.Totals    `json:"totals,omitempty"`
	Items     []domain.LineItem `json:"items,omitempty"`
}

func snapshotOf(o *domain.Order) orderSnapshot {
	totals := o.Totals
	return orderSnapshot{
		Status:    o.Status,
		UserID:    o.UserID,
		PaymentID: o.PaymentID,
		Totals:    &totals,
		Items:     o.Items,
	}
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
