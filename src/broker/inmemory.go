package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// subscriberBuffer is the channel capacity of each subscriber.
const subscriberBuffer = 100

// InMemoryBroker fans every published message out to all subscribers of
// its topic. A subscriber whose buffer is full drops the message: events
// are best-effort and publishing never blocks a request.
type InMemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	offsets     map[string]int64
	closed      bool
}

type subscriber struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

// NewInMemoryBroker creates a new InMemoryBroker instance.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subscribers: make(map[string][]*subscriber),
		offsets:     make(map[string]int64),
	}
}

// Publish delivers the message to every current subscriber of topic.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Offset:    b.offsets[topic],
		Timestamp: time.Now().UnixMilli(),
	}
	b.offsets[topic]++

	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber for topic.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	sub := &subscriber{
		ch:   make(chan Message, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(topic, sub)
		case <-sub.done:
		}
	}()

	return sub.ch, nil
}

func (b *InMemoryBroker) unsubscribe(topic string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, s := range subs {
		if s == sub {
			b.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	sub.close()
}

// Close closes every subscriber channel. Further Publish and Subscribe
// calls fail.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	b.subscribers = make(map[string][]*subscriber)
	return nil
}
