package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dominv "github.com/Zhima-Mochi/minishop-storefront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domreturns "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
)

func TestLedger_NoOversell(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	key := dominv.VariantKey{ProductID: "p1", Variant: "M"}
	require.NoError(t, l.Seed(ctx, key, 10))

	var ok, out int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := l.Reserve(ctx, key, 1); {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case assert.ErrorIs(t, err, dominv.ErrOutOfStock):
				atomic.AddInt64(&out, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok)
	assert.EqualValues(t, 40, out)
	left, err := l.Available(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestLedger_ReleaseAndInvalid(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	key := dominv.VariantKey{ProductID: "p1", Variant: "L"}

	assert.ErrorIs(t, l.Reserve(ctx, key, 1), dominv.ErrOutOfStock)
	assert.ErrorIs(t, l.Reserve(ctx, key, 0), dominv.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Release(ctx, key, -1), dominv.ErrInvalidQuantity)

	require.NoError(t, l.Release(ctx, key, 3))
	require.NoError(t, l.Reserve(ctx, key, 2))
	left, _ := l.Available(ctx, key)
	assert.Equal(t, 1, left)
}

func newOrder(t *testing.T, id, paymentID string) *domorder.Order {
	t.Helper()
	o, err := domorder.New(id, "u1", paymentID,
		[]domorder.LineItem{{ID: "l1", ProductID: "p1", Variant: "M", Quantity: 1, UnitPrice: 100}},
		domorder.Address{}, domorder.Pricing{})
	require.NoError(t, err)
	return o
}

func TestOrderRepository_PaymentIDUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()

	require.NoError(t, repo.Insert(ctx, newOrder(t, "o1", "pay_1")))
	assert.ErrorIs(t, repo.Insert(ctx, newOrder(t, "o2", "pay_1")), domorder.ErrConflict)

	got, err := repo.FindByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)

	_, err = repo.FindByPaymentID(ctx, "pay_2")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestOrderRepository_UpdateStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o1", "pay_1")))

	a, _ := repo.Get(ctx, "o1")
	b, _ := repo.Get(ctx, "o1")

	fromA, err := a.Apply(domorder.EventCancel)
	require.NoError(t, err)
	fromB, err := b.Apply(domorder.EventConfirm)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, a, fromA))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, b, fromB), domorder.ErrConflict)

	stored, _ := repo.Get(ctx, "o1")
	assert.Equal(t, domorder.StatusCancelled, stored.Status)
	assert.Equal(t, domorder.LineCancelled, stored.Items[0].Status)
}

func TestOrderRepository_ClonesOnRead(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o1", "pay_1")))

	got, _ := repo.Get(ctx, "o1")
	got.Items[0].Quantity = 99

	again, _ := repo.Get(ctx, "o1")
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestReturnRepository_UpdateStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewReturnRepository()
	req, err := domreturns.New("r1", "o1", "u1", []domreturns.Item{{LineItemID: "l1", Quantity: 1, UnitPrice: 100}})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, req))

	next := req.Clone()
	from, err := next.Apply(domreturns.EventSchedulePickup, domreturns.TransitionInput{})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, next, from))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, next, from), domreturns.ErrConflict)

	list, err := repo.ListByOrder(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domreturns.StatusPickupScheduled, list[0].Status)
}
