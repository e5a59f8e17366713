package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func event(entityType EntityType, entityID, kind string, participants ...string) Event {
	return Event{
		EntityType:   entityType,
		EntityID:     entityID,
		ChangeKind:   kind,
		Timestamp:    time.Now().UTC(),
		Participants: participants,
	}
}

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe("user-1", "")
	defer sub.Cancel()

	hub.Publish(event(EntityOrder, "order-1", "created", "user-1", "mitra-1"))
	hub.Publish(event(EntityLedger, "txn-1", "income", "user-1"))
	hub.Publish(event(EntityOrder, "order-2", "created", "someone-else"))

	received := drain(sub)
	assert.Len(t, received, 2)
	assert.Equal(t, "order-1", received[0].EntityID)
	assert.Equal(t, "txn-1", received[1].EntityID)
}

func TestSubscribeFiltersByEntityType(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe("user-1", EntityLedger)
	defer sub.Cancel()

	hub.Publish(event(EntityOrder, "order-1", "created", "user-1"))
	hub.Publish(event(EntityLedger, "txn-1", "topup_requested", "user-1"))

	received := drain(sub)
	assert.Len(t, received, 1)
	assert.Equal(t, EntityLedger, received[0].EntityType)
}

func TestEventsArriveInPublishOrder(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe("user-1", EntityOrder)
	defer sub.Cancel()

	hub.Publish(event(EntityOrder, "order-1", "created", "user-1"))
	hub.Publish(event(EntityOrder, "order-1", "accepted", "user-1"))
	hub.Publish(event(EntityOrder, "order-1", "completed", "user-1"))

	received := drain(sub)
	assert.Len(t, received, 3)
	assert.Equal(t, "created", received[0].ChangeKind)
	assert.Equal(t, "accepted", received[1].ChangeKind)
	assert.Equal(t, "completed", received[2].ChangeKind)
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe("user-1", "")
	sub.Cancel()

	// Publishing after cancel must not panic; the channel is closed
	hub.Publish(event(EntityOrder, "order-1", "created", "user-1"))

	_, open := <-sub.C
	assert.False(t, open, "canceled subscription channel must be closed")

	// Cancel is idempotent
	sub.Cancel()
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe("user-1", "")
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		// Nobody reads sub.C; exceed the buffer
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(event(EntityOrder, "order-1", "created", "user-1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The slow subscriber kept the most recent buffered events and
	// simply lost the rest
	assert.Len(t, drain(sub), subscriberBuffer)
}

func drain(sub *Subscription) []Event {
	var events []Event
	for {
		select {
		case ev := <-sub.C:
			events = append(events, ev)
		default:
			return events
		}
	}
}
