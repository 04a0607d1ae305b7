package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFiltersByTopic(t *testing.T) {
	bus := NewBus()
	trades := bus.Subscribe(TopicTrades, "")
	book := bus.Subscribe(TopicOrderBook, "")
	defer trades.Close()
	defer book.Close()

	bus.Publish([]Event{
		{Topic: TopicTrades, Payload: map[string]any{"trade_id": "t1"}},
		{Topic: TopicOrderBook, Payload: map[string]any{"delivery_start": int64(1)}},
		{Topic: TopicTrades, Payload: map[string]any{"trade_id": "t2"}},
	})

	ev := <-trades.C()
	assert.Equal(t, "t1", ev.Payload["trade_id"])
	ev = <-trades.C()
	assert.Equal(t, "t2", ev.Payload["trade_id"])
	assert.Len(t, trades.C(), 0)

	ev = <-book.C()
	assert.Equal(t, int64(1), ev.Payload["delivery_start"])
}

func TestExecReportsScopedToUser(t *testing.T) {
	bus := NewBus()
	alice := bus.Subscribe(TopicExecReports, "alice")
	bob := bus.Subscribe(TopicExecReports, "bob")
	defer alice.Close()
	defer bob.Close()

	bus.Publish([]Event{
		{Topic: TopicExecReports, User: "alice", Payload: map[string]any{"order_id": "o1"}},
		{Topic: TopicExecReports, User: "bob", Payload: map[string]any{"order_id": "o2"}},
	})

	ev := <-alice.C()
	assert.Equal(t, "o1", ev.Payload["order_id"])
	assert.Len(t, alice.C(), 0)

	ev = <-bob.C()
	assert.Equal(t, "o2", ev.Payload["order_id"])
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe(TopicTrades, "")

	batch := make([]Event, subscriberBuffer+1)
	for i := range batch {
		batch[i] = Event{Topic: TopicTrades, Payload: map[string]any{"i": int64(i)}}
	}
	bus.Publish(batch)

	// The slow subscriber overflowed: its channel is closed after the
	// buffered events drain, and it no longer counts as attached.
	assert.Equal(t, 0, bus.Subscribers())
	got := 0
	for range slow.C() {
		got++
	}
	assert.Equal(t, subscriberBuffer, got)

	// New subscribers are unaffected.
	fresh := bus.Subscribe(TopicTrades, "")
	defer fresh.Close()
	bus.Publish([]Event{{Topic: TopicTrades, Payload: map[string]any{"i": int64(-1)}}})
	ev := <-fresh.C()
	assert.Equal(t, int64(-1), ev.Payload["i"])
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicTrades, "")
	sub.Close()
	require.NotPanics(t, sub.Close)
	assert.Equal(t, 0, bus.Subscribers())

	// Publishing after close does not panic or deliver.
	bus.Publish([]Event{{Topic: TopicTrades}})
	_, open := <-sub.C()
	assert.False(t, open)
}
