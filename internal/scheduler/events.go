package scheduler

import "sync"

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Event type constants published for a root submission.
const (
	EventSubmitted  = "submitted"
	EventDispatched = "dispatched"
	EventDecomposed = "decomposed"
	EventCombining  = "combining"
	EventCompleted  = "completed"
	EventFailed     = "failed"
)

// Event is a progress notification for a root submission.
type Event struct {
	Type    string `json:"type"`
	TaskID  string `json:"task_id"`
	Message string `json:"message,omitempty"`
}

// EventBroker fans progress events of each root submission out to
// subscribers. It is safe for concurrent use.
//
// Closed topics are kept as markers so that late subscribers receive a
// closed channel instead of blocking forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives events for the given root and an
// unsubscribe function. If the root has already finished, the returned
// channel is closed.
func (b *EventBroker) Subscribe(rootID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[rootID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan Event)}
		b.topics[rootID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to all subscribers of the given root, dropping it
// for subscribers whose buffers are full.
func (b *EventBroker) Publish(rootID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[rootID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close signals that no more events will be published for the given root.
func (b *EventBroker) Close(rootID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[rootID]
	if !ok {
		b.topics[rootID] = &eventTopic{subs: make(map[int]chan Event), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
