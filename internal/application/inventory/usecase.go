package inventory

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const useCaseCheckStock = "inventory.check_stock"

type CheckStockInput struct {
	ProductID string
	Variant   string
	// Quantity defaults to 1.
	Quantity int
}

type CheckStockResult struct {
	ProductID string
	Variant   string
	Available int
	InStock   bool
}

// CheckStockUseCase answers availability without reserving. The answer is advisory: only a
// reservation decides.
type CheckStockUseCase struct {
	ledger dominv.Ledger
	in     application.Instruments
}

func NewCheckStockUseCase(ledger dominv.Ledger, tel observability.Observability) *CheckStockUseCase {
	return &CheckStockUseCase{
		ledger: ledger,
		in:     application.NewInstruments(tel, inventoryService),
	}
}

func (uc *CheckStockUseCase) Execute(ctx context.Context, cmd CheckStockInput) (_ *CheckStockResult, err error) {
	ctx, run := uc.in.Begin(ctx, useCaseCheckStock, "CheckStock",
		attribute.String("product.id", cmd.ProductID),
		attribute.String("product.variant", cmd.Variant),
	)
	defer func() { run.End(err) }()

	key, err := dominv.NewVariantKey(cmd.ProductID, cmd.Variant)
	if err != nil {
		run.Fail("VARIANT_KEY_INVALID")
		return nil, application.ValidationErr(err)
	}
	want := cmd.Quantity
	if want == 0 {
		want = 1
	}
	if want < 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, application.ValidationErr(dominv.ErrInvalidQuantity)
	}

	available, err := uc.ledger.Available(ctx, key)
	if err != nil {
		run.Fail("LEDGER_READ_FAILED")
		return nil, fmt.Errorf("inventory: available %s: %w", key, err)
	}

	res := &CheckStockResult{
		ProductID: key.ProductID,
		Variant:   key.Variant,
		Available: available,
		InStock:   available >= want,
	}
	if !res.InStock {
		run.Status("UNAVAILABLE")
	}
	run.Annotate(observability.F("available", available))
	return res, nil
}
