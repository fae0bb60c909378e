package events

import (
	"sync"
	"time"

	"renovationAi/internal/renovation"
)

// Event describes a state transition of one session.
type Event struct {
	SessionID string           `json:"session_id"`
	State     renovation.State `json:"state"`
	Busy      bool             `json:"busy"`
	Message   string           `json:"message,omitempty"`
	At        time.Time        `json:"at"`
}

// Subscription receives events for one session, or for all sessions when SessionID is empty.
type Subscription struct {
	C         chan Event
	SessionID string
}

// Broker manages SSE subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
}

// NewBroker constructs a broker instance.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber. An empty sessionID receives every event.
func (b *Broker) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{C: make(chan Event, 8), SessionID: sessionID}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Calling it twice is safe.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub.C)
}

// Publish fans the event out to matching subscribers.
func (b *Broker) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	evt.Busy = evt.State.Busy()

	b.mu.RLock()
	for sub := range b.subscribers {
		if sub.SessionID != "" && sub.SessionID != evt.SessionID {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			// drop if subscriber is slow
		}
	}
	b.mu.RUnlock()
}
