package order

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("order: invalid state transition")

// Event names an order lifecycle transition.
type Event string

const (
	EventConfirm Event = "confirm"
	EventPack    Event = "pack"
	EventShip    Event = "ship"
	EventDeliver Event = "deliver"
	EventCancel  Event = "cancel"
)

type edge struct {
	from  Status
	event Event
}

// transitions is the complete adjacency table. Packing is a discrete completed state;
// shipping is always a separate transition.
var transitions = map[edge]Status{
	{StatusProcessing, EventConfirm}: StatusConfirmed,
	{StatusConfirmed, EventPack}:     StatusPacking,
	{StatusPacking, EventShip}:       StatusShipped,
	{StatusShipped, EventDeliver}:    StatusDelivered,
	{StatusProcessing, EventCancel}:  StatusCancelled,
	{StatusConfirmed, EventCancel}:   StatusCancelled,
}

var lineStatusFor = map[Status]LineStatus{
	StatusPacking:   LinePacked,
	StatusShipped:   LineShipped,
	StatusDelivered: LineDelivered,
	StatusCancelled: LineCancelled,
}

func ParseEvent(s string) (Event, error) {
	switch e := Event(s); e {
	case EventConfirm, EventPack, EventShip, EventDeliver, EventCancel:
		return e, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, s)
	}
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusProcessing, StatusConfirmed, StatusPacking, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
}

// Next validates (from, event) against the table.
func Next(from Status, event Event) (Status, error) {
	to, ok := transitions[edge{from, event}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// EventBetween resolves the event that moves from one status to another.
func EventBetween(from, to Status) (Event, error) {
	for e, target := range transitions {
		if e.from == from && target == to {
			return e.event, nil
		}
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Apply moves the order along event and returns the previous status.
func (o *Order) Apply(event Event) (Status, error) {
	from := o.Status
	to, err := Next(from, event)
	if err != nil {
		return from, err
	}
	o.Status = to
	if ls, ok := lineStatusFor[to]; ok {
		for i := range o.Items {
			o.Items[i].Status = ls
		}
	}
	o.touch()
	return from, nil
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
