package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	returnsService    = "returns-service"
	useCaseReturnOpen = "return.create"
	returnLockTTL     = 5 * time.Second
)

var ErrRepository = errors.New("returns: repository failure")

// Locker runs fn while holding key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// OrderReader is the read side of the order repository the workflow relies on.
type OrderReader interface {
	Get(ctx context.Context, id string) (*domorder.Order, error)
}

type ItemInput struct {
	LineItemID string
	Quantity   int
	Reason     string
	Condition  string
}

type CreateReturnInput struct {
	OrderID string
	Items   []ItemInput
}

type CreateReturnUseCase struct {
	repo      domain.Repository
	orders    OrderReader
	locks     Locker
	ids       application.IDGenerator
	audit     *appaudit.Writer
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewCreateReturnUseCase(
	repo domain.Repository,
	orders OrderReader,
	locks Locker,
	ids application.IDGenerator,
	audit *appaudit.Writer,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateReturnUseCase {
	return &CreateReturnUseCase{
		repo:      repo,
		orders:    orders,
		locks:     locks,
		ids:       ids,
		audit:     audit,
		publisher: publisher,
		in:        application.NewInstruments(tel, returnsService),
	}
}

func (uc *CreateReturnUseCase) Execute(ctx context.Context, cmd CreateReturnInput) (_ *domain.Request, err error) {
	ctx, run := uc.in.Begin(ctx, useCaseReturnOpen, "CreateReturn",
		attribute.String("order.id", cmd.OrderID),
		attribute.Int("return.item_count", len(cmd.Items)),
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
	requested, err := mergeItems(cmd.Items)
	if err != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, err
	}

	o, err := uc.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		if errors.Is(err, domorder.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		run.Fail("FORBIDDEN")
		return nil, fmt.Errorf("%w: order %s", access.ErrForbidden, o.ID)
	}
	if o.Status != domorder.StatusDelivered {
		run.Fail("ORDER_NOT_RETURNABLE")
		return nil, fmt.Errorf("%w: order is %s", domain.ErrOrderNotReturnable, o.Status)
	}

	var created *domain.Request
	err = uc.locks.WithLock(ctx, lock.ReturnKey(o.ID), returnLockTTL, func(ctx context.Context) error {
		existing, err := uc.repo.ListByOrder(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRepository, err)
		}
		items, err := buildItems(o, requested, Returnable(o, existing))
		if err != nil {
			return err
		}
		req, err := domain.New(uc.ids.NewID(), o.ID, o.UserID, items)
		if err != nil {
			return application.ValidationErr(err)
		}
		if err := uc.repo.Insert(ctx, req); err != nil {
			return fmt.Errorf("%w: %w", ErrRepository, err)
		}
		created = req
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExceedsReturnable):
			run.Fail("EXCEEDS_RETURNABLE")
		case errors.Is(err, lock.ErrLockBusy):
			run.Fail("LOCK_BUSY")
		case errors.Is(err, application.ErrValidation):
			run.Fail("VALIDATION_FAILED")
		default:
			run.Fail("RETURN_INSERT_FAILED")
		}
		return nil, err
	}

	uc.audit.Append(ctx, appaudit.Record{
		Action:     domaudit.ActionReturnCreate,
		TargetType: domaudit.TargetReturn,
		TargetID:   created.ID,
		After:      snapshotOf(created),
	})
	run.Publish(ctx, uc.publisher, domain.NewRequestedEvent(created))
	run.Annotate(
		observability.F("return_id", created.ID),
		observability.F("refund_amount", created.RefundAmount),
	)
	return created, nil
}

// Returnable is the per-line quantity still open for return: ordered quantity minus what
// requests that hold stock already claim.
func Returnable(o *domorder.Order, existing []*domain.Request) map[string]int {
	left := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		left[it.ID] = it.Quantity
	}
	for _, r := range existing {
		if !r.HoldsStock() {
			continue
		}
		for _, it := range r.Items {
			left[it.LineItemID] -= it.Quantity
		}
	}
	return left
}

type requestedItem struct {
	ItemInput
	condition domain.Condition
}

func mergeItems(in []ItemInput) ([]requestedItem, error) {
	if len(in) == 0 {
		return nil, application.ValidationErr(domain.ErrNoItems)
	}
	index := make(map[string]int, len(in))
	out := make([]requestedItem, 0, len(in))
	for _, it := range in {
		if strings.TrimSpace(it.LineItemID) == "" {
			return nil, application.Validation("line item id is required")
		}
		if it.Quantity <= 0 {
			return nil, application.ValidationErr(domain.ErrInvalidQuantity)
		}
		if strings.TrimSpace(it.Reason) == "" {
			return nil, application.Validation("return reason is required")
		}
		cond, ok := domain.ParseCondition(it.Condition)
		if !ok {
			return nil, application.Validation(fmt.Sprintf("unknown condition %q", it.Condition))
		}
		if i, dup := index[it.LineItemID]; dup {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.LineItemID] = len(out)
		out = append(out, requestedItem{ItemInput: it, condition: cond})
	}
	return out, nil
}

func buildItems(o *domorder.Order, requested []requestedItem, left map[string]int) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(requested))
	for _, r := range requested {
		line, ok := o.Line(r.LineItemID)
		if !ok {
			return nil, application.Validation(fmt.Sprintf("line item %s is not part of order %s", r.LineItemID, o.ID))
		}
		if r.Quantity > left[line.ID] {
			return nil, fmt.Errorf("%w: line %s has %d left, %d requested",
				domain.ErrExceedsReturnable, line.ID, left[line.ID], r.Quantity)
		}
		items = append(items, domain.Item{
			LineItemID: line.ID,
			ProductID:  line.ProductID,
			Variant:    line.Variant,
			Quantity:   r.Quantity,
			UnitPrice:  line.UnitPrice,
			Reason:     strings.TrimSpace(r.Reason),
			Condition:  r.condition,
		})
	}
	return items, nil
}

type returnSnapshot struct {
	Status          domain.Status `json:"status"`
	OrderID         string        `json:"order_id,omitempty"`
	RefundAmount    int64         `json:"refund_amount,omitempty"`
	Items           []domain.Item `json:"items,omitempty"`
	QCNotes         string        `json:"qc_notes,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
}

func snapshotOf(r *domain.Request) returnSnapshot {
	return returnSnapshot{
		Status:          r.Status,
		OrderID:         r.OrderID,
		RefundAmount:    r.RefundAmount,
		Items:           r.Items,
		QCNotes:         r.QCNotes,
		RejectionReason: r.RejectionReason,
	}
}

func statusSnapshot(r *domain.Request) returnSnapshot {
	return returnSnapshot{
		Status:          r.Status,
		QCNotes:         r.QCNotes,
		RejectionReason: r.RejectionReason,
	}
}
