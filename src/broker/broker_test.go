package broker

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := "test-topic"
	key := "test-key"
	value := []byte("test message")

	// Subscribe before publishing
	msgChan, err := broker.Subscribe(ctx, topic, "test-group")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Publish message
	if err := broker.Publish(ctx, topic, key, value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Receive message
	select {
	case msg := <-msgChan:
		if msg.Topic != topic {
			t.Errorf("Expected topic %s, got %s", topic, msg.Topic)
		}
		if msg.Key != key {
			t.Errorf("Expected key %s, got %s", key, msg.Key)
		}
		if string(msg.Value) != string(value) {
			t.Errorf("Expected value %s, got %s", string(value), string(msg.Value))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestInMemoryBroker_MultipleSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := "test-topic"

	// Create two subscribers
	sub1, err := broker.Subscribe(ctx, topic, "group1")
	if err != nil {
		t.Fatalf("Subscribe 1 failed: %v", err)
	}

	sub2, err := broker.Subscribe(ctx, topic, "group2")
	if err != nil {
		t.Fatalf("Subscribe 2 failed: %v", err)
	}

	// Publish message
	value := []byte("broadcast message")
	if err := broker.Publish(ctx, topic, "key", value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Both subscribers should receive the message
	for i, sub := range []<-chan Message{sub1, sub2} {
		select {
		case msg := <-sub:
			if string(msg.Value) != string(value) {
				t.Errorf("Subscriber %d: expected value %s, got %s", i+1, string(value), string(msg.Value))
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("Subscriber %d: timeout waiting for message", i+1)
		}
	}
}

func TestInMemoryBroker_ClosedBroker(t *testing.T) {
	broker := NewInMemoryBroker()
	broker.Close()

	ctx := context.Background()

	// Publishing to closed broker should fail
	err := broker.Publish(ctx, "test", "key", []byte("value"))
	if err == nil {
		t.Error("Expected error when publishing to closed broker")
	}

	// Subscribing to closed broker should fail
	_, err = broker.Subscribe(ctx, "test", "group")
	if err == nil {
		t.Error("Expected error when subscribing to closed broker")
	}
}

func TestInMemoryBroker_TopicIsolation(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()

	chA, err := broker.Subscribe(ctx, "topic-a", "group")
	if err != nil {
		t.Fatalf("Subscribe to topic-a failed: %v", err)
	}
	chB, err := broker.Subscribe(ctx, "topic-b", "group")
	if err != nil {
		t.Fatalf("Subscribe to topic-b failed: %v", err)
	}

	if err := broker.Publish(ctx, "topic-a", "k", []byte("for a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-chA:
		if string(msg.Value) != "for a" {
			t.Errorf("Expected 'for a', got %q", msg.Value)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for message on topic-a")
	}

	select {
	case msg := <-chB:
		t.Errorf("topic-b received unexpected message: %q", msg.Value)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryBroker_OffsetsIncrease(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	ch, err := broker.Subscribe(ctx, "t", "g")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := broker.Publish(ctx, "t", "k", []byte{byte(i)}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	for want := int64(0); want < 3; want++ {
		msg := <-ch
		if msg.Offset != want {
			t.Errorf("Expected offset %d, got %d", want, msg.Offset)
		}
	}
}

func TestInMemoryBroker_ContextCancelClosesChannel(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := broker.Subscribe(ctx, "t", "g")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Expected channel to be closed, got a message")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for channel to close")
	}

	// Publishing after the subscriber left must not panic or block.
	if err := broker.Publish(context.Background(), "t", "k", []byte("late")); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
}

func TestInMemoryBroker_FullSubscriberDoesNotBlock(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	if _, err := broker.Subscribe(ctx, "t", "g"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			broker.Publish(ctx, "t", "k", []byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestInMemoryBroker_CloseClosesSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()

	ch, err := broker.Subscribe(context.Background(), "t", "g")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := broker.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := broker.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	if _, ok := <-ch; ok {
		t.Error("Expected subscriber channel to be closed")
	}
}

func TestInMemoryBroker_ConcurrentPublish(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	ch, err := broker.Subscribe(ctx, "t", "g")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	const publishers = 10
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := broker.Publish(ctx, "t", "k", []byte("m")); err != nil {
				t.Errorf("Publish failed: %v", err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < publishers; i++ {
		select {
		case <-ch:
		case <-time.After(1 * time.Second):
			t.Fatalf("Timeout after %d messages", i)
		}
	}
}

func TestOpen(t *testing.T) {
	b, err := Open(nil, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*InMemoryBroker); !ok {
		t.Errorf("Expected *InMemoryBroker without addresses, got %T", b)
	}
}

func TestNewRedpandaBroker_NoBrokers(t *testing.T) {
	if _, err := NewRedpandaBroker(nil, nil); err == nil {
		t.Error("Expected error without broker addresses")
	}
}

var (
	_ Broker = (*InMemoryBroker)(nil)
	_ Broker = (*RedpandaBroker)(nil)
)
