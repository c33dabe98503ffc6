package returns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_AdjacencyTable(t *testing.T) {
	statuses := []Status{StatusRequested, StatusPickupScheduled, StatusQCPending, StatusQCPassed, StatusQCFailed, StatusRefunded}
	events := []Event{EventSchedulePickup, EventReceive, EventPassQC, EventFailQC, EventRefund, EventReopen}
	allowed := map[Status]map[Event]Status{
		StatusRequested:       {EventSchedulePickup: StatusPickupScheduled},
		StatusPickupScheduled: {EventReceive: StatusQCPending},
		StatusQCPending:       {EventPassQC: StatusQCPassed, EventFailQC: StatusQCFailed},
		StatusQCPassed:        {EventRefund: StatusRefunded},
		StatusQCFailed:        {EventReopen: StatusQCPending},
	}

	for _, from := range statuses {
		for _, ev := range events {
			to, err := Next(from, ev)
			if want, ok := allowed[from][ev]; ok {
				require.NoError(t, err)
				assert.Equal(t, want, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s --%s-->", from, ev)
			}
		}
	}
}

func TestNew_RefundAmount(t *testing.T) {
	r, err := New("r1", "o1", "u1", []Item{
		{LineItemID: "l1", Quantity: 2, UnitPrice: 1500},
		{LineItemID: "l2", Quantity: 1, UnitPrice: 700},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3700), r.RefundAmount)
	assert.Equal(t, StatusRequested, r.Status)

	_, err = New("r1", "o1", "u1", nil)
	assert.ErrorIs(t, err, ErrNoItems)
	_, err = New("r1", "o1", "u1", []Item{{Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestApply_RequiredFields(t *testing.T) {
	r := &Request{ID: "r1", Status: StatusQCPending}

	_, err := r.Apply(EventFailQC, TransitionInput{RejectionReason: "  "})
	assert.ErrorIs(t, err, ErrReasonRequired)
	assert.Equal(t, StatusQCPending, r.Status)

	_, err = r.Apply(EventPassQC, TransitionInput{})
	assert.ErrorIs(t, err, ErrNotesRequired)
	assert.Equal(t, StatusQCPending, r.Status)

	from, err := r.Apply(EventPassQC, TransitionInput{Notes: "tags intact"})
	require.NoError(t, err)
	assert.Equal(t, StatusQCPending, from)
	assert.Equal(t, StatusQCPassed, r.Status)
	assert.Equal(t, "tags intact", r.QCNotes)
}

func TestApply_ReopenIsDistinctEdge(t *testing.T) {
	r := &Request{ID: "r1", Status: StatusQCPending}
	_, err := r.Apply(EventFailQC, TransitionInput{RejectionReason: "stained"})
	require.NoError(t, err)
	assert.Equal(t, "stained", r.RejectionReason)

	_, err = r.Apply(EventRefund, TransitionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = r.Apply(EventReopen, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusQCPending, r.Status)
}

func TestEventBetween(t *testing.T) {
	ev, err := EventBetween(StatusQCFailed, StatusQCPending)
	require.NoError(t, err)
	assert.Equal(t, EventReopen, ev)

	ev, err = EventBetween(StatusPickupScheduled, StatusQCPending)
	require.NoError(t, err)
	assert.Equal(t, EventReceive, ev)

	_, err = EventBetween(StatusRequested, StatusQCFailed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEventsInto(t *testing.T) {
	assert.ElementsMatch(t, []Event{EventReceive, EventReopen}, EventsInto(StatusQCPending))
	assert.Equal(t, []Event{EventFailQC}, EventsInto(StatusQCFailed))
	assert.Empty(t, EventsInto(StatusRequested))
}
