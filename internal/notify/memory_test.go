package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelForRoundTrips(t *testing.T) {
	ch := ChannelFor("bookings", "prof-p1")
	assert.Equal(t, "bookings:prof-p1", ch)

	table, filter := parseChannel(ch)
	assert.Equal(t, "bookings", table)
	assert.Equal(t, "prof-p1", filter)

	table, filter = parseChannel("bookings")
	assert.Equal(t, "bookings", table)
	assert.Empty(t, filter)
}

func TestMemoryNotifierDeliversToSubscribers(t *testing.T) {
	n := NewMemoryNotifier()
	ctx := context.Background()

	events, unsub, err := n.Subscribe(ctx, "bookings:prof-p1")
	require.NoError(t, err)
	defer unsub()

	n.Publish("bookings:prof-p1")

	select {
	case ev := <-events:
		assert.Equal(t, "bookings", ev.Table)
		assert.Equal(t, "prof-p1", ev.Filter)
		assert.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestMemoryNotifierScopesByChannel(t *testing.T) {
	n := NewMemoryNotifier()
	ctx := context.Background()

	events, unsub, err := n.Subscribe(ctx, "bookings:prof-p1")
	require.NoError(t, err)
	defer unsub()

	n.Publish("bookings:prof-p2")
	n.Publish("slot_configs:prof-p1")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for %s", ev.Channel)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryNotifierFansOut(t *testing.T) {
	n := NewMemoryNotifier()
	ctx := context.Background()

	first, unsub1, err := n.Subscribe(ctx, "bookings:prof-p1")
	require.NoError(t, err)
	defer unsub1()
	second, unsub2, err := n.Subscribe(ctx, "bookings:prof-p1")
	require.NoError(t, err)
	defer unsub2()

	n.Publish("bookings:prof-p1")

	for _, events := range []<-chan Event{first, second} {
		select {
		case <-events:
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the event")
		}
	}
}

func TestMemoryNotifierUnsubscribeClosesChannel(t *testing.T) {
	n := NewMemoryNotifier()

	events, unsub, err := n.Subscribe(context.Background(), "bookings:prof-p1")
	require.NoError(t, err)

	unsub()
	unsub() // safe to call twice

	_, open := <-events
	assert.False(t, open)

	// Publishing after unsubscribe must not panic on the closed channel.
	assert.NotPanics(t, func() { n.Publish("bookings:prof-p1") })
}

func TestMemoryNotifierDropsWhenSubscriberIsFull(t *testing.T) {
	n := NewMemoryNotifier()

	events, unsub, err := n.Subscribe(context.Background(), "bookings:prof-p1")
	require.NoError(t, err)
	defer unsub()

	// Overrun the buffer; extra events are dropped, never blocked on.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			n.Publish("bookings:prof-p1")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The buffered events are still readable.
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}
