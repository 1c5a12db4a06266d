package notify

import (
	"context"
	"strings"
	"time"
)

// Event is one change notification. It names the collection (and optional
// filter) that changed; it deliberately carries no payload. Consumers
// re-derive state from the source of truth rather than trusting deltas.
type Event struct {
	Channel string    `json:"channel"`
	Table   string    `json:"table"`
	Filter  string    `json:"filter,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier is a change-notification stream keyed by channel name.
type Notifier interface {
	// Subscribe returns a channel of events plus an unsubscribe function.
	// Unsubscribing closes the event channel.
	Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error)
}

// ChannelFor builds a channel name from a table and an optional filter,
// e.g. ChannelFor("bookings", "prof-17") -> "bookings:prof-17".
func ChannelFor(table, filter string) string {
	if filter == "" {
		return table
	}
	return table + ":" + filter
}

// parseChannel splits a channel name back into table and filter.
func parseChannel(channel string) (table, filter string) {
	if i := strings.IndexByte(channel, ':'); i >= 0 {
		return channel[:i], channel[i+1:]
	}
	return channel, ""
}
