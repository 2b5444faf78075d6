package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of orchestration event.
type EventType string

const (
	EventAgentLaunched   EventType = "agent:launched"
	EventAgentCompleted  EventType = "agent:completed"
	EventScopeViolations EventType = "scope:violations"
	EventHandoffCreated  EventType = "handoff:created"
)

// Event is a single occurrence pushed to subscribers.
type Event struct {
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Data       map[string]any `json:"data,omitempty"`
	Sequence   uint64         `json:"sequence"`
}

type subscriber struct {
	mu     sync.Mutex
	buffer []Event
	notify chan struct{}
}

// EventBus fans events out to subscribers with per-subscriber buffering and
// non-blocking notification. Emit never holds a lock across a subscriber's
// notify channel send.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	sequence    atomic.Uint64
	maxBuffer   int
}

// NewEventBus creates an EventBus. maxBuffer caps each subscriber's queue.
func NewEventBus(maxBuffer int) *EventBus {
	if maxBuffer <= 0 {
		maxBuffer = 1000
	}
	return &EventBus{subscribers: make(map[string]*subscriber), maxBuffer: maxBuffer}
}

// Subscribe creates a new subscriber and returns its ID.
func (eb *EventBus) Subscribe() string {
	id := uuid.NewString()
	sub := &subscriber{notify: make(chan struct{}, 1)}
	eb.mu.Lock()
	eb.subscribers[id] = sub
	eb.mu.Unlock()
	return id
}

// Unsubscribe removes a subscriber.
func (eb *EventBus) Unsubscribe(id string) {
	eb.mu.Lock()
	delete(eb.subscribers, id)
	eb.mu.Unlock()
}

// Emit publishes event to every subscriber's buffer, synchronously and
// without holding eb.mu across the notify send.
func (eb *EventBus) Emit(event Event) {
	event.Sequence = eb.sequence.Add(1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	subs := make([]*subscriber, 0, len(eb.subscribers))
	for _, s := range eb.subscribers {
		subs = append(subs, s)
	}
	eb.mu.RUnlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.buffer = append(sub.buffer, event)
		if len(sub.buffer) > eb.maxBuffer {
			sub.buffer = sub.buffer[len(sub.buffer)-eb.maxBuffer:]
		}
		sub.mu.Unlock()

		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// Poll drains id's buffer, blocking up to timeout if it is currently empty.
func (eb *EventBus) Poll(id string, timeout time.Duration) []Event {
	eb.mu.RLock()
	sub, ok := eb.subscribers[id]
	eb.mu.RUnlock()
	if !ok {
		return nil
	}

	sub.mu.Lock()
	if len(sub.buffer) > 0 {
		events := sub.buffer
		sub.buffer = nil
		sub.mu.Unlock()
		return events
	}
	sub.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sub.notify:
	case <-timer.C:
	}

	sub.mu.Lock()
	events := sub.buffer
	sub.buffer = nil
	sub.mu.Unlock()
	return events
}
