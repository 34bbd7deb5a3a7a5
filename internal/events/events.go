package events

import (
	"sync"

	"media-gallery/internal/metrics"
)

// Topic names. "connected" is written directly by the SSE handler on
// connect; it is listed here so every event name lives in one place.
const (
	Connected          = "connected"
	ThumbnailGenerated = "thumbnail-generated"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 16

// Event is one published message.
type Event struct {
	Topic string
	Data  interface{}
}

// Subscription is one subscriber's view of a topic. Receive from C; call
// Bus.Unsubscribe when done, which closes C.
type Subscription struct {
	C     <-chan Event
	ch    chan Event
	topic string
	id    uint64
}

// Bus fans events out to per-topic subscribers.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]map[uint64]*Subscription
	nextID  uint64
	bufSize int
}

// NewBus constructs a bus with the default per-subscriber buffer.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string]map[uint64]*Subscription),
		bufSize: DefaultBufferSize,
	}
}

// Subscribe registers a new subscriber for a topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufSize)
	b.nextID++
	sub := &Subscription{
		C:     ch,
		ch:    ch,
		topic: topic,
		id:    b.nextID,
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][sub.id] = sub
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	topicSubs, ok := b.subs[sub.topic]
	if !ok {
		return
	}
	if _, ok := topicSubs[sub.id]; !ok {
		return
	}
	delete(topicSubs, sub.id)
	if len(topicSubs) == 0 {
		delete(b.subs, sub.topic)
	}
	close(sub.ch)
}

// Publish delivers an event to every subscriber of the topic. Full
// subscriber buffers drop their oldest queued event rather than blocking.
func (b *Bus) Publish(topic string, data interface{}) {
	ev := Event{Topic: topic, Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		// Buffer full. Evict the oldest and retry; if the consumer drained
		// the buffer in between, the event still goes through.
		select {
		case <-sub.ch:
			metrics.SSEEventsDropped.Inc()
		default:
		}
		select {
		case sub.ch <- ev:
		default:
			metrics.SSEEventsDropped.Inc()
		}
	}
}

// SubscriberCount reports how many subscribers a topic currently has.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
