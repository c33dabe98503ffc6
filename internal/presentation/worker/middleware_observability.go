package workerpresentation

import (
	"context"

	"github.com/google/uuid"

	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

// WithEventContext injects a logger for one background event delivery.
// Fields: event_id (generated if attrs lacks one), trace_id/span_id when ctx carries a valid
// span, plus the caller's attrs. Keep attrs low-cardinality.
func WithEventContext(ctx context.Context, base observability.Logger, attrs map[string]string) context.Context {
	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	fields = append(fields, observability.TraceFields(ctx)...)

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	ctx, _ = logctx.Enrich(ctx, base, fields...)
	return ctx
}

type observedSubscriber struct {
	next   domoutbox.Subscriber
	base   observability.Logger
	worker string
}

// ObservedSubscriber wraps every handler registered through it so the handler runs with an
// event-scoped logger tagged with the worker name.
func ObservedSubscriber(next domoutbox.Subscriber, tel observability.Observability, worker string) domoutbox.Subscriber {
	if tel == nil {
		tel = observability.Nop()
	}
	return &observedSubscriber{next: next, base: tel.Logger(), worker: worker}
}

func (s *observedSubscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		ctx = WithEventContext(ctx, s.base, map[string]string{
			"worker": s.worker,
			"event":  eventName,
		})
		return h(ctx, e)
	})
}
