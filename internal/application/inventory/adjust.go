package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/reservation"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const useCaseAdjustStock = "inventory.adjust"

type AdjustStockInput struct {
	ProductID string
	Variant   string
	Quantity  int
}

type AdjustStockResult struct {
	Key      dominv.VariantKey
	Previous int
	Quantity int
}

type level struct {
	Quantity int `json:"quantity"`
}

// AdjustStockUseCase sets a variant's absolute quantity after a stock count. It takes the same
// per-variant lock as reservations so a count never lands in the middle of one.
type AdjustStockUseCase struct {
	ledger dominv.Ledger
	seeder dominv.Seeder
	locks  *reservation.Manager
	audit  *appaudit.Writer
	ttl    time.Duration
	in     application.Instruments
}

func NewAdjustStockUseCase(ledger dominv.Ledger, seeder dominv.Seeder, locks *reservation.Manager, audit *appaudit.Writer, lockTTL time.Duration, tel observability.Observability) *AdjustStockUseCase {
	return &AdjustStockUseCase{
		ledger: ledger,
		seeder: seeder,
		locks:  locks,
		audit:  audit,
		ttl:    lockTTL,
		in:     application.NewInstruments(tel, inventoryService),
	}
}

func (uc *AdjustStockUseCase) Execute(ctx context.Context, cmd AdjustStockInput) (_ *AdjustStockResult, err error) {
	ctx, run := uc.in.Begin(ctx, useCaseAdjustStock, "AdjustStock",
		attribute.String("product.id", cmd.ProductID),
		attribute.String("product.variant", cmd.Variant),
	)
	defer func() { run.End(err) }()

	actor, ok := access.PrincipalFrom(ctx)
	if !ok {
		run.Fail("UNAUTHORIZED")
		return nil, access.ErrUnauthorized
	}
	if err := actor.Require(access.ScopeInventoryManage); err != nil {
		run.Fail("FORBIDDEN")
		return nil, err
	}
	key, err := dominv.NewVariantKey(cmd.ProductID, cmd.Variant)
	if err != nil {
		run.Fail("VARIANT_KEY_INVALID")
		return nil, application.ValidationErr(err)
	}
	if cmd.Quantity < 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, application.ValidationErr(dominv.ErrInvalidQuantity)
	}

	res := &AdjustStockResult{Key: key, Quantity: cmd.Quantity}
	err = uc.locks.WithLock(ctx, lock.ReservationKey(key.ProductID, key.Variant), uc.ttl, func(ctx context.Context) error {
		prev, err := uc.ledger.Available(ctx, key)
		if err != nil {
			return fmt.Errorf("inventory: available %s: %w", key, err)
		}
		res.Previous = prev
		if err := uc.seeder.Seed(ctx, key, cmd.Quantity); err != nil {
			return fmt.Errorf("inventory: set %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		run.Fail("ADJUST_FAILED")
		return nil, err
	}

	uc.audit.Append(ctx, appaudit.Record{
		Action:     domaudit.ActionInventoryAdjust,
		TargetType: domaudit.TargetVariant,
		TargetID:   key.String(),
		Before:     level{Quantity: res.Previous},
		After:      level{Quantity: res.Quantity},
	})
	run.Annotate(observability.F("previous", res.Previous), observability.F("quantity", res.Quantity))
	return res, nil
}
