package notification

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	domreturns "github.com/Zhima-Mochi/minishop-storefront/internal/domain/returns"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const workerService = "notification-worker"

// Message is a customer-facing notice derived from a domain event.
type Message struct {
	UserID  string
	Topic   string
	Subject string
	Body    string
	// Ref is the order or return id the message is about.
	Ref string
}

// Notifier delivers messages. Delivery channels (email, push) live behind it.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Worker turns order and return events from the outbox into customer notifications.
type Worker struct {
	subscriber domoutbox.Subscriber
	notifier   Notifier
	in         application.Instruments
}

func New(subscriber domoutbox.Subscriber, notifier Notifier, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		notifier:   notifier,
		in:         application.NewInstruments(tel, workerService),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.notifier == nil {
		return
	}
	w.subscriber.Subscribe(domorder.PlacedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domorder.StatusChangedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domreturns.RequestedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domreturns.StatusChangedEvent{}.EventName(), w.handle)
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) (err error) {
	useCase := "notification." + e.EventName()
	ctx, run := w.in.Begin(ctx, useCase, "Notify", attribute.String("event", e.EventName()))
	defer func() { run.End(err) }()

	msg, ok := messageFor(e)
	if !ok {
		run.Status("IGNORED")
		return nil
	}
	run.Annotate(observability.F("user_id", msg.UserID), observability.F("ref", msg.Ref))

	if err := w.notifier.Notify(ctx, msg); err != nil {
		run.Fail("NOTIFY_FAILED")
		return fmt.Errorf("notification: %s: %w", e.EventName(), err)
	}
	return nil
}

func messageFor(e domoutbox.Event) (Message, bool) {
	switch evt := e.(type) {
	case domorder.PlacedEvent:
		return Message{
			UserID:  evt.UserID,
			Topic:   evt.EventName(),
			Subject: "Order received",
			Body:    fmt.Sprintf("Order %s with %d item(s) is being processed. Total %d.", evt.OrderID, evt.ItemCount, evt.Total),
			Ref:     evt.OrderID,
		}, true
	case domorder.StatusChangedEvent:
		return Message{
			UserID:  evt.UserID,
			Topic:   evt.EventName(),
			Subject: "Order " + string(evt.To),
			Body:    fmt.Sprintf("Order %s moved from %s to %s.", evt.OrderID, evt.From, evt.To),
			Ref:     evt.OrderID,
		}, true
	case domreturns.RequestedEvent:
		return Message{
			UserID:  evt.UserID,
			Topic:   evt.EventName(),
			Subject: "Return requested",
			Body:    fmt.Sprintf("Return %s for order %s was received. Refund due on approval: %d.", evt.ReturnID, evt.OrderID, evt.RefundAmount),
			Ref:     evt.ReturnID,
		}, true
	case domreturns.StatusChangedEvent:
		return Message{
			UserID:  evt.UserID,
			Topic:   evt.EventName(),
			Subject: "Return " + string(evt.To),
			Body:    fmt.Sprintf("Return %s moved from %s to %s.", evt.ReturnID, evt.From, evt.To),
			Ref:     evt.ReturnID,
		}, true
	default:
		return Message{}, false
	}
}
