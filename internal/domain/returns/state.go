package returns

import (
	"fmt"
	"strings"
	"time"
)

type Event string

const (
	EventSchedulePickup Event = "schedule_pickup"
	EventReceive        Event = "receive"
	EventPassQC         Event = "pass_qc"
	EventFailQC         Event = "fail_qc"
	EventRefund         Event = "refund"
	// EventReopen is the admin override out of QC_Failed; it is a distinct edge, not a loop.
	EventReopen Event = "reopen"
)

type edge struct {
	from  Status
	event Event
}

var transitions = map[edge]Status{
	{StatusRequested, EventSchedulePickup}: StatusPickupScheduled,
	{StatusPickupScheduled, EventReceive}:  StatusQCPending,
	{StatusQCPending, EventPassQC}:         StatusQCPassed,
	{StatusQCPending, EventFailQC}:         StatusQCFailed,
	{StatusQCPassed, EventRefund}:          StatusRefunded,
	{StatusQCFailed, EventReopen}:          StatusQCPending,
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(s)); st {
	case StatusRequested, StatusPickupScheduled, StatusQCPending, StatusQCPassed, StatusQCFailed, StatusRefunded:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
}

func Next(from Status, event Event) (Status, error) {
	to, ok := transitions[edge{from, event}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// EventsInto lists every event whose edge ends in to.
func EventsInto(to Status) []Event {
	var out []Event
	for e, target := range transitions {
		if target == to {
			out = append(out, e.event)
		}
	}
	return out
}

// EventBetween resolves the unique event leading from one status to another.
func EventBetween(from, to Status) (Event, error) {
	for e, target := range transitions {
		if e.from == from && target == to {
			return e.event, nil
		}
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Apply validates required fields, then the edge, then mutates r. On error r is unchanged.
func (r *Request) Apply(event Event, in TransitionInput) (Status, error) {
	from := r.Status
	to, err := Next(from, event)
	if err != nil {
		return from, err
	}
	if err := in.ValidateFor(to); err != nil {
		return from, err
	}

	switch to {
	case StatusQCPassed:
		r.QCNotes = strings.TrimSpace(in.Notes)
		r.RejectionReason = ""
	case StatusQCFailed:
		r.RejectionReason = strings.TrimSpace(in.RejectionReason)
		if n := strings.TrimSpace(in.Notes); n != "" {
			r.QCNotes = n
		}
	default:
		if n := strings.TrimSpace(in.Notes); n != "" {
			r.QCNotes = n
		}
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return from, nil
}
