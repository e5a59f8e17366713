package notify

import (
	"sync"
	"time"
)

// EntityType names the kind of entity an event is about
type EntityType string

const (
	EntityOrder  EntityType = "order"
	EntityLedger EntityType = "ledger"
)

// Event signals that an entity a participant cares about has changed.
// It is a cue to refetch authoritative state, not a payload of record,
// so dropped or duplicated deliveries are harmless.
type Event struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	ChangeKind string     `json:"changeKind"`
	Timestamp  time.Time  `json:"timestamp"`
	// Participants is the set of user ids whose subscriptions match
	// this event. Not serialized to subscribers.
	Participants []string `json:"participants,omitempty"`
}

// Bridge forwards locally committed events to other instances.
type Bridge interface {
	Forward(ev Event)
}

// subscriberBuffer is the channel capacity per subscription. A subscriber
// that falls further behind than this loses events; delivery is
// best-effort and consumers reconcile by refetching.
const subscriberBuffer = 16

type subscriber struct {
	participantID string
	entityType    EntityType // empty matches all entity types
	ch            chan Event
}

// Hub fans committed change events out to registered subscribers.
// Publish never blocks the caller.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscriber
	bridge Bridge
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[uint64]*subscriber),
	}
}

// SetBridge attaches a cross-instance bridge. Must be called before the
// hub is in use.
func (h *Hub) SetBridge(b Bridge) {
	h.bridge = b
}

// Subscription is a registration of interest in a participant's events.
type Subscription struct {
	C   <-chan Event
	hub *Hub
	id  uint64
}

// Cancel removes the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if sub, ok := s.hub.subs[s.id]; ok {
		delete(s.hub.subs, s.id)
		close(sub.ch)
	}
}

// Subscribe registers interest in all changes affecting participantID.
// An empty entityType matches both order and ledger events.
func (h *Hub) Subscribe(participantID string, entityType EntityType) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID

	sub := &subscriber{
		participantID: participantID,
		entityType:    entityType,
		ch:            make(chan Event, subscriberBuffer),
	}
	h.subs[id] = sub

	return &Subscription{C: sub.ch, hub: h, id: id}
}

// Publish delivers ev to all matching local subscribers and forwards it
// across the bridge, if any. It never blocks: a subscriber with a full
// buffer misses the event.
func (h *Hub) Publish(ev Event) {
	h.Deliver(ev)

	if h.bridge != nil {
		h.bridge.Forward(ev)
	}
}

// Deliver sends ev to local subscribers only. The bridge uses this to
// relay remote events without echoing them back.
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.entityType != "" && sub.entityType != ev.EntityType {
			continue
		}
		if !matchesParticipant(ev.Participants, sub.participantID) {
			continue
		}

		select {
		case sub.ch <- ev:
		default:
			// Subscriber is behind; drop
		}
	}
}

func matchesParticipant(participants []string, id string) bool {
	for _, p := range participants {
		if p == id {
			return true
		}
	}
	return false
}
