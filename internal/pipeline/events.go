package pipeline

import (
	"sync"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// EventType identifies a pipeline event.
type EventType string

const (
	// EventSignal fires when a signal is emitted.
	EventSignal EventType = "SIGNAL"
	// EventResolution fires when a prediction reaches a terminal state.
	EventResolution EventType = "RESOLUTION"
	// EventVersionPromoted fires when a version enters production.
	EventVersionPromoted EventType = "VERSION_PROMOTED"
	// EventCycleApplied fires when a learning cycle changes the config.
	EventCycleApplied EventType = "CYCLE_APPLIED"
)

// Event is a pipeline notification for external observers. Exactly one of
// the payload fields is set, matching Type.
type Event struct {
	Type       EventType
	Signal     *domain.Signal
	Prediction *domain.Prediction
	Version    *domain.ModelVersion
	Config     *domain.TunedConfig
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses events; it never blocks the pipeline.
const subscriberBuffer = 64

// broadcaster fans events out to subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// subscribe returns an event channel and a cancel function. The channel is
// closed on cancel.
func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// publish delivers the event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
