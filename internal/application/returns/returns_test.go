package returns_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	appaudit "github.com/Zhima-Mochi/minishop-storefront/internal/application/audit"
	appinv "github.com/Zhima-Mochi/minishop-storefront/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/reservation"
	appreturns "github.com/Zhima-Mochi/minishop-storefront/internal/application/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	domaudit "github.com/Zhima-Mochi/minishop-storefront/internal/domain/audit"
	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domreturns "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/id"
	infralock "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/lock"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/memory"
)

var teeM = dominv.VariantKey{ProductID: "tee", Variant: "M"}

type harness struct {
	ledger     *memory.Ledger
	orders     *memory.OrderRepository
	returns    *memory.ReturnRepository
	audit      *memory.AuditStore
	create     *appreturns.CreateReturnUseCase
	transition *appreturns.TransitionReturnUseCase
	queries    *appreturns.Queries
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:  memory.NewLedger(),
		orders:  memory.NewOrderRepository(),
		returns: memory.NewReturnRepository(),
		audit:   memory.NewAuditStore(),
	}
	ids := id.NewUUIDGenerator()
	writer := appaudit.NewWriter(h.audit, ids, nil)
	locks := reservation.NewManager(infralock.NewMemoryLocker(), reservation.Options{Retries: 100, RetryDelay: time.Millisecond}, nil)
	stock := appinv.NewService(h.ledger, locks, writer, time.Second, nil)

	h.create = appreturns.NewCreateReturnUseCase(h.returns, h.orders, locks, ids, writer, nil, nil)
	h.transition = appreturns.NewTransitionReturnUseCase(h.returns, h.orders, locks, stock, writer, nil, nil)
	h.queries = appreturns.NewQueries(h.returns)
	return h
}

func (h *harness) delivered(t *testing.T, status domorder.Status) *domorder.Order {
	t.Helper()
	o, err := domorder.New("o1", "u1", "pay_1", []domorder.LineItem{
		{ID: "l1", ProductID: teeM.ProductID, Variant: teeM.Variant, Quantity: 3, UnitPrice: 1000},
	}, domorder.Address{}, domorder.Pricing{})
	require.NoError(t, err)
	o.Status = status
	require.NoError(t, h.orders.Insert(context.Background(), o))
	return o
}

func (h *harness) available(t *testing.T) int {
	t.Helper()
	n, err := h.ledger.Available(context.Background(), teeM)
	require.NoError(t, err)
	return n
}

func as(userID string, role access.Role, scopes ...access.Scope) context.Context {
	return access.WithPrincipal(context.Background(), access.Principal{UserID: userID, Role: role, Scopes: access.NewScopeSet(scopes...)})
}

func item(qty int) appreturns.ItemInput {
	return appreturns.ItemInput{LineItemID: "l1", Quantity: qty, Reason: "too small", Condition: "unopened"}
}

func TestCreateReturn(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)

	r, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(2)}})
	require.NoError(t, err)
	assert.Equal(t, domreturns.StatusRequested, r.Status)
	assert.EqualValues(t, 2000, r.RefundAmount)
	assert.Equal(t, "tee", r.Items[0].ProductID)

	_, err = h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(2)}})
	assert.ErrorIs(t, err, domreturns.ErrExceedsReturnable)

	_, err = h.create.Execute(as("u2", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(1)}})
	assert.ErrorIs(t, err, access.ErrForbidden)

	bad := item(1)
	bad.Condition = "shiny"
	_, err = h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{bad}})
	assert.ErrorIs(t, err, application.ErrValidation)
}

func TestCreateReturn_OrderMustBeDelivered(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusShipped)

	_, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(1)}})
	assert.ErrorIs(t, err, domreturns.ErrOrderNotReturnable)
}

func TestCreateReturn_ConcurrentRequestsNeverExceedLine(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(1)}})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, created)
}

func TestTransitionReturn_FailQCWithoutReasonStaysRequested(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)
	r, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(1)}})
	require.NoError(t, err)

	qc := as("qc", access.RoleStaff, access.ScopeReturnsQC)
	_, err = h.transition.Execute(qc, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "qc_failed"})
	assert.ErrorIs(t, err, application.ErrValidation)
	assert.ErrorIs(t, err, domreturns.ErrReasonRequired)

	stored, err := h.returns.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domreturns.StatusRequested, stored.Status)
}

func TestTransitionReturn_PermissionCheckedBeforeValidation(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)
	r, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(1)}})
	require.NoError(t, err)

	for name, ctx := range map[string]context.Context{
		"customer":          as("u1", access.RoleCustomer),
		"refund-only staff": as("acct", access.RoleStaff, access.ScopeReturnsRefund, access.ScopeReturnsView),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.transition.Execute(ctx, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "qc_failed"})
			assert.ErrorIs(t, err, access.ErrForbidden)
			assert.NotErrorIs(t, err, application.ErrValidation)
		})
	}

	stored, err := h.returns.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domreturns.StatusRequested, stored.Status)
}

func TestTransitionReturn_FullFlowRestocksOnce(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)
	r, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(2)}})
	require.NoError(t, err)

	warehouse := as("wh", access.RoleStaff, access.ScopeReturnsPickup, access.ScopeReturnsReceive, access.ScopeReturnsQC)
	accountant := as("acct", access.RoleStaff, access.ScopeReturnsRefund)

	_, err = h.transition.Execute(accountant, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "pickup_scheduled"})
	assert.ErrorIs(t, err, access.ErrForbidden)

	steps := []appreturns.TransitionReturnInput{
		{ReturnID: r.ID, Status: "pickup_scheduled"},
		{ReturnID: r.ID, Status: "qc_pending"},
		{ReturnID: r.ID, Status: "qc_passed", Notes: "sealed, tags on"},
	}
	for _, step := range steps {
		_, err := h.transition.Execute(warehouse, step)
		require.NoError(t, err, step.Status)
	}

	_, err = h.transition.Execute(warehouse, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "refunded"})
	assert.ErrorIs(t, err, access.ErrForbidden)
	assert.Zero(t, h.available(t))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.transition.Execute(accountant, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "refunded"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, h.available(t), "restock exactly the returned quantity, once")
	stored, _ := h.returns.Get(context.Background(), r.ID)
	assert.Equal(t, domreturns.StatusRefunded, stored.Status)
	assert.Equal(t, "sealed, tags on", stored.QCNotes)

	restocks, err := h.audit.List(context.Background(), domaudit.Filter{TargetType: domaudit.TargetVariant})
	require.NoError(t, err)
	require.Len(t, restocks, 1)
	assert.Equal(t, domaudit.ActionReturnRestock, restocks[0].Action)
	assert.Equal(t, "acct", restocks[0].Actor)
}

func (h *harness) rejected(t *testing.T, qty int) *domreturns.Request {
	t.Helper()
	r, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(qty)}})
	require.NoError(t, err)

	admin := as("root", access.RoleAdmin)
	for _, step := range []appreturns.TransitionReturnInput{
		{ReturnID: r.ID, Status: "pickup_scheduled"},
		{ReturnID: r.ID, Status: "qc_pending"},
		{ReturnID: r.ID, Status: "qc_failed", RejectionReason: "worn"},
	} {
		_, err := h.transition.Execute(admin, step)
		require.NoError(t, err, step.Status)
	}
	return r
}

func TestTransitionReturn_ReopenIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)
	r := h.rejected(t, 3)

	qc := as("qc", access.RoleStaff, access.ScopeReturnsQC, access.ScopeReturnsView)
	_, err := h.transition.Execute(qc, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "qc_pending"})
	assert.ErrorIs(t, err, access.ErrForbidden)

	admin := as("root", access.RoleAdmin)
	_, err = h.transition.Execute(admin, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "refunded"})
	assert.ErrorIs(t, err, domreturns.ErrInvalidTransition)

	res, err := h.transition.Execute(admin, appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "qc_pending"})
	require.NoError(t, err)
	assert.Equal(t, domreturns.StatusQCFailed, res.From)
	assert.Equal(t, domreturns.StatusQCPending, res.Request.Status)
}

func TestTransitionReturn_ReopenCannotOverclaimLine(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)
	r := h.rejected(t, 3)

	// A rejected request no longer holds the line, so a new one may take it.
	_, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(1)}})
	require.NoError(t, err)

	_, err = h.transition.Execute(as("root", access.RoleAdmin), appreturns.TransitionReturnInput{ReturnID: r.ID, Status: "qc_pending"})
	assert.ErrorIs(t, err, domreturns.ErrExceedsReturnable)

	stored, _ := h.returns.Get(context.Background(), r.ID)
	assert.Equal(t, domreturns.StatusQCFailed, stored.Status)
}

func TestQueries_Get(t *testing.T) {
	h := newHarness(t)
	h.delivered(t, domorder.StatusDelivered)
	r, err := h.create.Execute(as("u1", access.RoleCustomer), appreturns.CreateReturnInput{OrderID: "o1", Items: []appreturns.ItemInput{item(1)}})
	require.NoError(t, err)

	_, err = h.queries.Get(as("u1", access.RoleCustomer), r.ID)
	assert.NoError(t, err)
	_, err = h.queries.Get(as("staff", access.RoleStaff, access.ScopeReturnsRefund), r.ID)
	assert.NoError(t, err)
	_, err = h.queries.Get(as("u2", access.RoleCustomer), r.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestReturnable(t *testing.T) {
	o := &domorder.Order{Items: []domorder.LineItem{{ID: "l1", Quantity: 3}, {ID: "l2", Quantity: 1}}}
	held := &domreturns.Request{Status: domreturns.StatusQCPending, Items: []domreturns.Item{{LineItemID: "l1", Quantity: 2}}}
	rejected := &domreturns.Request{Status: domreturns.StatusQCFailed, Items: []domreturns.Item{{LineItemID: "l1", Quantity: 1}}}

	left := appreturns.Returnable(o, []*domreturns.Request{held, rejected})
	assert.Equal(t, map[string]int{"l1": 1, "l2": 1}, left)
}
