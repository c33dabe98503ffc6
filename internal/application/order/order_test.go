package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-storefront/internal/application/order"
	apppay "github.com/Zhima-Mochi/minishop-storefront/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/reservation"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/id"
	infralock "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/lock"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/memory"
	infrapay "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/payment"
)

type harness struct {
	ledger     *memory.Ledger
	catalog    *memory.Catalog
	orders     *memory.OrderRepository
	audit      *memory.AuditStore
	verifier   *infrapay.HMACVerifier
	place      *apporder.PlaceOrderUseCase
	transition *apporder.TransitionOrderUseCase
	queries    *apporder.Queries
}

func newHarness(t *testing.T, opts reservation.Options) *harness {
	t.Helper()
	return newHarnessWith(t, opts, hooks{})
}

// hooks let a test wrap the ports the use cases run against.
type hooks struct {
	catalog func(catalog.Catalog) catalog.Catalog
	ledger  func(dominv.Ledger) dominv.Ledger
}

func newHarnessWith(t *testing.T, opts reservation.Options, hk hooks) *harness {
	t.Helper()
	h := &harness{
		ledger:  memory.NewLedger(),
		catalog: memory.NewCatalog(),
		orders:  memory.NewOrderRepository(),
		audit:   memory.NewAuditStore(),
	}
	var err error
	h.verifier, err = infrapay.NewHMACVerifier("test-secret")
	require.NoError(t, err)

	ids := id.NewUUIDGenerator()
	writer := appaudit.NewWriter(h.audit, ids, nil)
	locks := reservation.NewManager(infralock.NewMemoryLocker(), opts, nil)
	var ledger dominv.Ledger = h.ledger
	if hk.ledger != nil {
		ledger = hk.ledger(h.ledger)
	}
	stock := appinv.NewService(ledger, locks, writer, time.Second, nil)
	gate := apppay.NewGate(h.verifier, h.orders, nil)
	pricing := domorder.Pricing{TaxRate: decimal.RequireFromString("0.10"), FlatShipping: 500}

	var cat catalog.Catalog = h.catalog
	if hk.catalog != nil {
		cat = hk.catalog(h.catalog)
	}
	h.place = apporder.NewPlaceOrderUseCase(h.orders, cat, stock, gate, pricing, ids, writer, nil, nil)
	h.transition = apporder.NewTransitionOrderUseCase(h.orders, stock, writer, nil, nil)
	h.queries = apporder.NewQueries(h.orders)
	return h
}

func (h *harness) stock(t *testing.T, productID, variant string, qty int, price int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.ledger.Seed(ctx, dominv.VariantKey{ProductID: productID, Variant: variant}, qty))
	require.NoError(t, h.catalog.Put(ctx, catalog.Price{ProductID: productID, Variant: variant, Name: productID, UnitPrice: price}))
}

func (h *harness) available(t *testing.T, productID, variant string) int {
	t.Helper()
	n, err := h.ledger.Available(context.Background(), dominv.VariantKey{ProductID: productID, Variant: variant})
	require.NoError(t, err)
	return n
}

func (h *harness) confirmation(paymentID string) dompay.Confirmation {
	gw := "gw_" + paymentID
	return dompay.Confirmation{PaymentID: paymentID, GatewayOrderID: gw, Signature: h.verifier.Sign(gw, paymentID)}
}

func (h *harness) input(userID, paymentID string, lines ...apporder.CartLine) apporder.PlaceOrderInput {
	return apporder.PlaceOrderInput{
		UserID:       userID,
		Items:        lines,
		Shipping:     domorder.Address{Name: "A", Line1: "1 Main", City: "X", Country: "IN"},
		Confirmation: h.confirmation(paymentID),
	}
}

func as(userID string, role access.Role, scopes ...access.Scope) context.Context {
	return access.WithPrincipal(context.Background(), access.Principal{UserID: userID, Role: role, Scopes: access.NewScopeSet(scopes...)})
}

func TestPlaceOrder_ReservesAndFreezesTotals(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	h.stock(t, "tee", "M", 5, 1000)

	res, err := h.place.Execute(as("u1", access.RoleCustomer), h.input("u1", "pay_1",
		apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 1},
		apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 1},
	))
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	o := res.Order
	assert.Equal(t, domorder.StatusProcessing, o.Status)
	require.Len(t, o.Items, 1, "duplicate cart lines are merged")
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, domorder.Totals{Subtotal: 2000, Tax: 200, Shipping: 500, Total: 2700}, o.Totals)
	assert.Equal(t, 3, h.available(t, "tee", "M"))

	entries, err := h.audit.List(context.Background(), domaudit.Filter{})
	require.NoError(t, err)
	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
		assert.Equal(t, "u1", e.Actor)
	}
	assert.Equal(t, []string{domaudit.ActionInventoryReserve, domaudit.ActionOrderCreate}, actions)
}

func TestPlaceOrder_LastUnitRace(t *testing.T) {
	h := newHarness(t, reservation.Options{Retries: 1})
	h.stock(t, "tee", "M", 1, 1000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			_, errs[i] = h.place.Execute(as(user, access.RoleCustomer), h.input(user, fmt.Sprintf("pay_%d", i),
				apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 1}))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, dominv.ErrOutOfStock) || errors.Is(err, lock.ErrLockBusy), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Zero(t, h.available(t, "tee", "M"))
}

func TestPlaceOrder_IdempotentConfirmation(t *testing.T) {
	h := newHarness(t, reservation.Options{Retries: 100, RetryDelay: time.Millisecond})
	h.stock(t, "tee", "M", 10, 1000)
	ctx := as("u1", access.RoleCustomer)
	in := h.input("u1", "pay_1", apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 1})

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.place.Execute(ctx, in)
			if assert.NoError(t, err) {
				ids[i] = res.Order.ID
			}
		}(i)
	}
	wg.Wait()

	res, err := h.place.Execute(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	for _, got := range ids {
		assert.Equal(t, res.Order.ID, got)
	}

	mine, err := h.queries.ListMine(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, 9, h.available(t, "tee", "M"))
}

// pricingGate holds every Price call until `parties` callers have arrived, so concurrent
// placements all get past the consumed-confirmation check before any of them reserves.
type pricingGate struct {
	catalog.Catalog
	mu      sync.Mutex
	parties int
	arrived int
	release chan struct{}
}

func newPricingGate(next catalog.Catalog, parties int) *pricingGate {
	return &pricingGate{Catalog: next, parties: parties, release: make(chan struct{})}
}

func (g *pricingGate) Price(ctx context.Context, productID, variant string) (catalog.Price, error) {
	g.mu.Lock()
	g.arrived++
	if g.arrived == g.parties {
		close(g.release)
	}
	g.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return catalog.Price{}, ctx.Err()
	}
	return g.Catalog.Price(ctx, productID, variant)
}

func TestPlaceOrder_RedeliveryRacingForLastUnitReplays(t *testing.T) {
	for name, opts := range map[string]reservation.Options{
		"retrying lock":       {Retries: 50, RetryDelay: time.Millisecond},
		"single lock attempt": {Retries: 0},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarnessWith(t, opts, hooks{catalog: func(next catalog.Catalog) catalog.Catalog {
				return newPricingGate(next, 2)
			}})
			h.stock(t, "tee", "M", 1, 1000)

			in := h.input("u1", "pay_1", apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 1})
			results := make([]*apporder.PlaceOrderResult, 2)
			errs := make([]error, 2)
			var wg sync.WaitGroup
			for i := range results {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[i], errs[i] = h.place.Execute(as("u1", access.RoleCustomer), in)
				}()
			}
			wg.Wait()

			require.NoError(t, errs[0])
			require.NoError(t, errs[1])
			assert.Equal(t, results[0].Order.ID, results[1].Order.ID)
			assert.True(t, results[0].Replayed != results[1].Replayed, "exactly one delivery is the replay")
			assert.Zero(t, h.available(t, "tee", "M"))

			mine, err := h.orders.ListByUser(context.Background(), "u1")
			require.NoError(t, err)
			assert.Len(t, mine, 1)
		})
	}
}

func TestPlaceOrder_ConsumedByAnotherUser(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	h.stock(t, "tee", "M", 10, 1000)
	line := apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 1}

	_, err := h.place.Execute(as("u1", access.RoleCustomer), h.input("u1", "pay_1", line))
	require.NoError(t, err)

	_, err = h.place.Execute(as("u2", access.RoleCustomer), h.input("u2", "pay_1", line))
	assert.ErrorIs(t, err, domorder.ErrConflict)
	assert.Equal(t, 9, h.available(t, "tee", "M"))
}

func TestPlaceOrder_CompensatesPartialReservation(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	h.stock(t, "tee", "M", 3, 1000)
	h.stock(t, "cap", "OS", 0, 500)

	_, err := h.place.Execute(as("u1", access.RoleCustomer), h.input("u1", "pay_1",
		apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 2},
		apporder.CartLine{ProductID: "cap", Variant: "OS", Quantity: 1},
	))
	assert.ErrorIs(t, err, dominv.ErrOutOfStock)
	assert.Equal(t, 3, h.available(t, "tee", "M"))
	assert.Equal(t, 0, h.available(t, "cap", "OS"))

	_, err = h.orders.FindByPaymentID(context.Background(), "pay_1")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestPlaceOrder_InvalidPaymentTouchesNoStock(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	h.stock(t, "tee", "M", 3, 1000)

	in := h.input("u1", "pay_1", apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: 1})
	in.Confirmation.Signature = "deadbeef"

	_, err := h.place.Execute(as("u1", access.RoleCustomer), in)
	assert.ErrorIs(t, err, dompay.ErrPaymentInvalid)
	assert.Equal(t, 3, h.available(t, "tee", "M"))

	in.Confirmation.Signature = ""
	_, err = h.place.Execute(as("u1", access.RoleCustomer), in)
	assert.ErrorIs(t, err, dompay.ErrPaymentInvalid)
}

func TestPlaceOrder_Validation(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	h.stock(t, "tee", "M", 3, 1000)
	ctx := as("u1", access.RoleCustomer)

	tests := []struct {
		name  string
		lines []apporder.CartLine
	}{
		{name: "no lines"},
		{name: "zero quantity", lines: []apporder.CartLine{{ProductID: "tee", Variant: "M", Quantity: 0}}},
		{name: "missing variant", lines: []apporder.CartLine{{ProductID: "tee", Quantity: 1}}},
		{name: "unknown variant", lines: []apporder.CartLine{{ProductID: "tee", Variant: "XXL", Quantity: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.place.Execute(ctx, h.input("u1", "pay_"+tt.name, tt.lines...))
			assert.ErrorIs(t, err, application.ErrValidation)
		})
	}
	assert.Equal(t, 3, h.available(t, "tee", "M"))
}

func placed(t *testing.T, h *harness, qty int) *domorder.Order {
	t.Helper()
	h.stock(t, "tee", "M", 5, 1000)
	res, err := h.place.Execute(as("u1", access.RoleCustomer), h.input("u1", "pay_1",
		apporder.CartLine{ProductID: "tee", Variant: "M", Quantity: qty}))
	require.NoError(t, err)
	return res.Order
}

func TestTransitionOrder_ScopesAndSequence(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	o := placed(t, h, 1)

	_, err := h.transition.Execute(as("staff", access.RoleStaff, access.ScopeOrdersPack),
		apporder.TransitionOrderInput{OrderID: o.ID, Action: "confirm"})
	assert.ErrorIs(t, err, access.ErrForbidden)

	_, err = h.transition.Execute(context.Background(), apporder.TransitionOrderInput{OrderID: o.ID, Action: "confirm"})
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	staff := as("staff", access.RoleStaff, access.ScopeOrdersConfirm, access.ScopeOrdersPack, access.ScopeOrdersShip)
	res, err := h.transition.Execute(staff, apporder.TransitionOrderInput{OrderID: o.ID, Action: "confirm"})
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusProcessing, res.From)
	assert.Equal(t, domorder.StatusConfirmed, res.Order.Status)

	_, err = h.transition.Execute(staff, apporder.TransitionOrderInput{OrderID: o.ID, Action: "ship"})
	assert.ErrorIs(t, err, domorder.ErrInvalidTransition)

	res, err = h.transition.Execute(staff, apporder.TransitionOrderInput{OrderID: o.ID, Status: "packing"})
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusPacking, res.Order.Status)
	assert.Equal(t, domorder.LinePacked, res.Order.Items[0].Status)

	_, err = h.transition.Execute(staff, apporder.TransitionOrderInput{OrderID: o.ID, Status: "confirmed"})
	assert.ErrorIs(t, err, domorder.ErrInvalidTransition)

	entries, err := h.audit.List(context.Background(), domaudit.Filter{TargetType: domaudit.TargetOrder, TargetID: o.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domaudit.ActionOrderTransition, entries[2].Action)
	assert.JSONEq(t, `{"status":"confirmed"}`, string(entries[2].Before))
	assert.JSONEq(t, `{"status":"packing"}`, string(entries[2].After))
}

func TestTransitionOrder_CancelReleasesOnce(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	o := placed(t, h, 2)
	assert.Equal(t, 3, h.available(t, "tee", "M"))

	admin := as("root", access.RoleAdmin)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.transition.Execute(admin, apporder.TransitionOrderInput{OrderID: o.ID, Action: "cancel"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domorder.ErrInvalidTransition)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 5, h.available(t, "tee", "M"))
}

// brokenRelease fails every increment while leaving reservations working.
type brokenRelease struct{ dominv.Ledger }

func (brokenRelease) Release(context.Context, dominv.VariantKey, int) error {
	return errors.New("ledger unavailable")
}

func TestTransitionOrder_CancelRecordsOwedStock(t *testing.T) {
	h := newHarnessWith(t, reservation.Options{}, hooks{ledger: func(next dominv.Ledger) dominv.Ledger {
		return brokenRelease{next}
	}})
	o := placed(t, h, 2)

	_, err := h.transition.Execute(as("root", access.RoleAdmin), apporder.TransitionOrderInput{OrderID: o.ID, Action: "cancel"})
	require.Error(t, err)
	var relErr *appinv.ReleaseError
	require.ErrorAs(t, err, &relErr)
	require.Len(t, relErr.Failed, 1)
	assert.Equal(t, 2, relErr.Failed[0].Quantity)

	stored, err := h.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, stored.Status)

	owed, err := h.audit.List(context.Background(), domaudit.Filter{TargetType: domaudit.TargetOrder, TargetID: o.ID})
	require.NoError(t, err)
	var actions []string
	for _, e := range owed {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, domaudit.ActionOrderReleaseOwed)
	for _, e := range owed {
		if e.Action == domaudit.ActionOrderReleaseOwed {
			assert.JSONEq(t, `{"lines":[{"product_id":"tee","variant":"M","quantity":2}]}`, string(e.After))
		}
	}

	failed, err := h.audit.List(context.Background(), domaudit.Filter{TargetType: domaudit.TargetVariant, TargetID: "tee:M"})
	require.NoError(t, err)
	var releaseFailures int
	for _, e := range failed {
		if e.Action == domaudit.ActionInventoryReleaseFailed {
			releaseFailures++
		}
	}
	assert.Equal(t, 1, releaseFailures)
}

func TestQueries_Get(t *testing.T) {
	h := newHarness(t, reservation.Options{})
	o := placed(t, h, 1)

	got, err := h.queries.Get(as("u1", access.RoleCustomer), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = h.queries.Get(as("u2", access.RoleCustomer), o.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	_, err = h.queries.Get(as("staff", access.RoleStaff, access.ScopeOrdersView), o.ID)
	assert.NoError(t, err)

	_, err = h.queries.Get(as("u1", access.RoleCustomer), "missing")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}
