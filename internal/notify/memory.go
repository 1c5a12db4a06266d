package notify

import (
	"context"
	"sync"
	"time"
)

// MemoryNotifier is an in-process notifier for tests and single-binary
// dev runs. Publish fans an event out to every subscriber of the channel.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

// NewMemoryNotifier creates an in-memory notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[string]map[int]chan Event)}
}

// Subscribe subscribes to one change channel.
func (n *MemoryNotifier) Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[channel] == nil {
		n.subs[channel] = make(map[int]chan Event)
	}
	id := n.next
	n.next++
	events := make(chan Event, 8)
	n.subs[channel][id] = events

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			// Delete and close under the same lock Publish sends
			// under, so no send can race the close.
			n.mu.Lock()
			delete(n.subs[channel], id)
			close(events)
			n.mu.Unlock()
		})
	}
	return events, unsubscribe, nil
}

// Publish delivers an event to every subscriber of channel. Sends are
// non-blocking; a full subscriber simply re-fetches on its next event.
func (n *MemoryNotifier) Publish(channel string) {
	table, filter := parseChannel(channel)
	ev := Event{Channel: channel, Table: table, Filter: filter, At: time.Now()}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[channel] {
		select {
		case ch <- ev:
		default:
		}
	}
}
