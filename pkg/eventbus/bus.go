package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// defaultQueueSize bounds each subscriber's per-connection backlog. A
// subscriber that cannot keep up is disconnected rather than allowed to
// stall publishers.
const defaultQueueSize = 256

type subscriber struct {
	id     string
	filter Filter
	queue  chan Envelope
}

// Bus is a single-threaded cooperative dispatcher: Publish enqueues onto an
// internal channel drained by one goroutine, which fans out to every
// matching subscriber's bounded queue. A subscriber whose queue is full is
// disconnected and logged; it never blocks the publisher or other
// subscribers.
type Bus struct {
	sink Sink

	mu          sync.RWMutex
	subscribers map[string]*subscriber

	publishCh chan Envelope
	done      chan struct{}
}

// New creates a Bus backed by sink for durable persistence. Call Run once to
// start the dispatch loop.
func New(sink Sink) *Bus {
	if sink == nil {
		sink = NopSink{}
	}
	return &Bus{
		sink:        sink,
		subscribers: make(map[string]*subscriber),
		publishCh:   make(chan Envelope, defaultQueueSize),
		done:        make(chan struct{}),
	}
}

// Run drives the dispatch loop until ctx is canceled.
func (b *Bus) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.publishCh:
			b.dispatch(env)
		}
	}
}

// Publish persists the envelope to the sink then enqueues it for fan-out.
// The sink write happens before the publisher is acked, so replay from the
// sink is authoritative even if a live subscriber never sees the event.
func (b *Bus) Publish(env Envelope) error {
	if err := b.sink.Persist(env); err != nil {
		return err
	}
	b.publishCh <- env
	return nil
}

// Subscribe registers a new subscriber matching filter and returns its
// receive channel plus an Unsubscribe func. The channel is closed on
// Unsubscribe or on backpressure disconnect.
func (b *Bus) Subscribe(filter Filter) (<-chan Envelope, func()) {
	sub := &subscriber{
		id:     uuid.NewString(),
		filter: filter,
		queue:  make(chan Envelope, defaultQueueSize),
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	unsubscribe := func() { b.removeSubscriber(sub.id) }
	return sub.queue, unsubscribe
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) dispatch(env Envelope) {
	b.mu.RLock()
	matched := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.filter.matches(env) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		select {
		case sub.queue <- env:
		default:
			slog.Warn("event subscriber overflowed, disconnecting",
				"subscriber_id", sub.id, "event_type", env.EventType)
			b.removeSubscriber(sub.id)
		}
	}
}

func (b *Bus) removeSubscriber(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.queue)
	}
}
