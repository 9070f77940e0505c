package stream

import (
	"sync"
)

// EventType discriminates broker events.
type EventType string

const (
	// EventMessage is an agent utterance produced during a run.
	EventMessage EventType = "message"
	// EventSummary carries the final conversation summary.
	EventSummary EventType = "summary"
	// EventError reports a run failure.
	EventError EventType = "error"
	// EventDone terminates every subscription, exactly once, last.
	EventDone EventType = "done"
)

// Event is a single item on a session's stream.
type Event struct {
	Type    EventType `json:"type"`
	Sender  string    `json:"sender,omitempty"`
	Content string    `json:"content,omitempty"`
}

const subscriberBuffer = 64

// Broker fans out per-session events to any number of subscribers.
// Publishing never blocks: a subscriber that falls behind has events
// dropped rather than stalling the run.
//
// Each session's stream carries a generation, announced via Reset when a
// run claims the session. Publish and Close from an earlier generation
// are ignored, so a superseded run that is still unwinding cannot leak
// events into, or done-terminate, its successor's stream. Generation 0
// bypasses the check for administrative use.
//
// The zero value is not usable; construct with NewBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
	done map[string]bool
	gens map[string]uint64
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Event]struct{}),
		done: make(map[string]bool),
		gens: make(map[string]uint64),
	}
}

// Subscribe registers a listener for the session's events. The returned
// cancel function detaches the listener and closes its channel; it is
// safe to call more than once. If the session's stream already finished,
// the channel delivers a single done event and closes.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.done[sessionID] {
		b.mu.Unlock()
		ch <- Event{Type: EventDone}
		close(ch)
		return ch, func() {}
	}
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[sessionID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
					if len(set) == 0 {
						delete(b.subs, sessionID)
					}
				}
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish sends an event to all current subscribers of the session.
// Events published after Close, or carrying a superseded generation,
// are dropped.
func (b *Broker) Publish(sessionID string, gen uint64, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done[sessionID] || b.stale(sessionID, gen) {
		return
	}
	for ch := range b.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends the session's stream: every subscriber receives a done
// event and its channel is closed. Later subscribers get an
// already-finished stream. A Close carrying a superseded generation is
// a no-op, as is closing twice.
func (b *Broker) Close(sessionID string, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done[sessionID] || b.stale(sessionID, gen) {
		return
	}
	b.done[sessionID] = true
	for ch := range b.subs[sessionID] {
		select {
		case ch <- Event{Type: EventDone}:
		default:
			// Drain one slot so done always fits.
			select {
			case <-ch:
			default:
			}
			ch <- Event{Type: EventDone}
		}
		close(ch)
	}
	delete(b.subs, sessionID)
}

// Reset announces a new run at the given generation, reopening the
// session's stream and invalidating publishes from earlier generations.
func (b *Broker) Reset(sessionID string, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(sessionID, gen) {
		return
	}
	if gen > b.gens[sessionID] {
		b.gens[sessionID] = gen
	}
	delete(b.done, sessionID)
}

func (b *Broker) stale(sessionID string, gen uint64) bool {
	return gen != 0 && gen < b.gens[sessionID]
}
