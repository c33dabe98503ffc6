package outbox

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
)

type pinged struct{}

func (pinged) EventName() string { return "test.pinged" }

func TestBus_FanoutSurvivesPanicAndDrainsOnStop(t *testing.T) {
	bus := NewBus(nil, Options{QueueSize: 4, Concurrency: 2})

	var calls int64
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		panic("handler bug")
	})

	ctx := context.Background()
	bus.Start(ctx)
	for i := 0; i < 3; i++ {
		assert.NoError(t, bus.Publish(ctx, pinged{}))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	assert.EqualValues(t, 3, atomic.LoadInt64(&calls))
	assert.ErrorIs(t, bus.Publish(ctx, pinged{}), ErrStopped)
}

func TestBus_PublishRespectsContext(t *testing.T) {
	bus := NewBus(nil, Options{QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())

	assert.NoError(t, bus.Publish(ctx, pinged{}))
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, pinged{}), context.Canceled)
}
