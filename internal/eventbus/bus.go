package eventbus

import (
	"context"
	"sync"

	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventOutput carries output lines for a tab.
	EventOutput EventType = "output"
	// EventSystemOutput carries system output lines.
	EventSystemOutput EventType = "system"
	// EventTab carries tab lifecycle updates.
	EventTab EventType = "tab"
	// EventWindow carries detached window lifecycle updates.
	EventWindow EventType = "window"
)

// Event is one UI-facing notification from the core service. Type
// selects which payload field is populated.
type Event struct {
	Type   EventType
	Output schema.OutputEvent
	System schema.SystemOutputEvent
	Tab    schema.TabEvent
	Window schema.WindowEvent
}

// subscriberDepth is the per-subscriber channel capacity. A terminal
// that stops draining loses events rather than stalling the service.
const subscriberDepth = 256

// Bus fans events out to per-user subscribers. A user may hold several
// subscriptions at once, one per attached terminal or detached window.
type Bus struct {
	mu     sync.Mutex
	nextID int
	users  map[schema.UserID]map[int]chan Event
	log    pslog.Logger
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		users: make(map[schema.UserID]map[int]chan Event),
		log:   logger,
	}
}

// Subscribe registers a subscriber for the user. The returned cancel
// removes the subscription and closes the channel; it is safe to call
// once the reader has stopped consuming.
func (b *Bus) Subscribe(userID schema.UserID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, subscriberDepth)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	subs := b.users[userID]
	if subs == nil {
		subs = make(map[int]chan Event)
		b.users[userID] = subs
	}
	subs[id] = ch
	count := len(subs)
	b.mu.Unlock()

	if b.log != nil {
		b.log.With("user", userID).Debug("eventbus subscribe", "subs", count)
	}
	cancel := func() {
		b.mu.Lock()
		if subs := b.users[userID]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.users, userID)
			}
		}
		b.mu.Unlock()
		close(ch)
		if b.log != nil {
			b.log.With("user", userID).Debug("eventbus unsubscribe")
		}
	}
	return ch, cancel
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(event.UserID, Event{Type: EventOutput, Output: event})
}

// OnSystemOutput publishes a system output event.
func (b *Bus) OnSystemOutput(event schema.SystemOutputEvent) {
	b.publish(event.UserID, Event{Type: EventSystemOutput, System: event})
}

// OnTabEvent publishes a tab event.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	b.publish(event.UserID, Event{Type: EventTab, Tab: event})
}

// OnWindowEvent publishes a window event.
func (b *Bus) OnWindowEvent(event schema.WindowEvent) {
	b.publish(event.UserID, Event{Type: EventWindow, Window: event})
}

// publish delivers the event to every subscriber of the user. Sends
// never block; a full subscriber channel drops the event for that
// subscriber only.
func (b *Bus) publish(userID schema.UserID, event Event) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	for _, ch := range b.users[userID] {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("user", userID).Trace("eventbus dropped", "count", dropped)
	}
}
