// Package outbox defines the in-process event contract between use cases that emit domain
// events (order placed, status changed, return requested) and the workers that react to them.
package outbox

import "context"

// Event is anything with a stable name; subscribers key on that name.
type Event interface {
	EventName() string
}

type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Bus delivers published events to subscribers asynchronously and at most once.
// Nothing is persisted: events still queued when the process dies are lost.
type Bus interface {
	Publisher
	Subscriber
}
