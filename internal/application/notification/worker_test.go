package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	domreturns "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
)

type recordingNotifier struct{ got []Message }

func (n *recordingNotifier) Notify(_ context.Context, m Message) error {
	n.got = append(n.got, m)
	return nil
}

type directBus struct{ subs map[string][]domoutbox.Handler }

func (b *directBus) Subscribe(name string, h domoutbox.Handler) {
	if b.subs == nil {
		b.subs = make(map[string][]domoutbox.Handler)
	}
	b.subs[name] = append(b.subs[name], h)
}

func (b *directBus) Publish(ctx context.Context, e domoutbox.Event) error {
	for _, h := range b.subs[e.EventName()] {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func TestWorker_NotifiesOwner(t *testing.T) {
	bus := &directBus{}
	n := &recordingNotifier{}
	New(bus, n, nil).Start()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domorder.StatusChangedEvent{OrderID: "o1", UserID: "u1", From: domorder.StatusPacking, To: domorder.StatusShipped}))
	require.NoError(t, bus.Publish(ctx, domreturns.RequestedEvent{ReturnID: "r1", OrderID: "o1", UserID: "u1", RefundAmount: 900}))

	require.Len(t, n.got, 2)
	assert.Equal(t, "u1", n.got[0].UserID)
	assert.Equal(t, "Order shipped", n.got[0].Subject)
	assert.Equal(t, "o1", n.got[0].Ref)
	assert.Equal(t, "r1", n.got[1].Ref)
	assert.Equal(t, "return.requested", n.got[1].Topic)
}
