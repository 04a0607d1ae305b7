// Package events fans engine events out to stream subscribers. The
// engine buffers events while it holds its lock and publishes the batch
// after releasing it, so subscribers observe trades, book changes and
// execution reports in engine order.
package events

import "sync"

// Topic names one of the public streams.
type Topic string

const (
	TopicTrades      Topic = "trades"
	TopicOrderBook   Topic = "order_book"
	TopicExecReports Topic = "execution_reports"
)

// Event is a single stream message. Payload holds only wire-encodable
// values (int64, string, lists, nested maps). User scopes execution
// reports to their recipient and is empty on the public topics.
type Event struct {
	Topic   Topic
	User    string
	Payload map[string]any
}

const subscriberBuffer = 256

// Subscription is one consumer's bounded feed. When the consumer falls
// behind and the buffer fills, the bus closes the channel and drops the
// subscription rather than block the publisher.
type Subscription struct {
	bus   *Bus
	topic Topic
	user  string
	ch    chan Event

	closeOnce sync.Once
}

// C is the event feed. It is closed when the subscription is dropped.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.closeOnce.Do(func() { close(s.ch) })
}

// Bus is the fan-out hub. Safe for concurrent use.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe attaches a consumer to a topic. For TopicExecReports, user
// selects which reports are delivered; the other topics ignore it.
func (b *Bus) Subscribe(topic Topic, user string) *Subscription {
	s := &Subscription{
		bus:   b,
		topic: topic,
		user:  user,
		ch:    make(chan Event, subscriberBuffer),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Publish delivers a batch in order to every matching subscriber without
// blocking. A subscriber whose buffer is full is dropped mid-batch.
func (b *Bus) Publish(batch []Event) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(batch)
	}
}

func (s *Subscription) deliver(batch []Event) {
	for _, ev := range batch {
		if ev.Topic != s.topic {
			continue
		}
		if s.topic == TopicExecReports && ev.User != s.user {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			s.Close()
			return
		}
	}
}

// Subscribers returns the current subscriber count, for metrics.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
