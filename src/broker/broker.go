// Package broker defines the interface for message brokers and provides implementations.
package broker

import (
	"context"

	"github.com/leMaik/chunky-pr-as-update-site/src/logger"
)

// Broker abstracts message publishing and consumption.
// The update site publishes archive events through it; the in-memory
// implementation serves tests and single-process runs, Redpanda/Kafka the rest.
type Broker interface {
	// Publish sends a message to a topic with an optional key for partitioning.
	// For in-memory broker, key is only carried along.
	// For Redpanda/Kafka, key is used for partition assignment.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel for consuming messages from a topic.
	// groupID is used for consumer group coordination in Kafka.
	// For in-memory broker, groupID is ignored.
	// The channel is closed when ctx is done or the broker is closed.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a consumed message from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
	// Record headers; nil from the in-memory broker.
	Headers map[string]string
}

// Open returns a RedpandaBroker when addresses are configured and an
// InMemoryBroker otherwise.
func Open(addrs []string, log logger.Logger) (Broker, error) {
	if len(addrs) == 0 {
		return NewInMemoryBroker(), nil
	}
	b, err := NewRedpandaBroker(addrs, log)
	if err != nil {
		return nil, err
	}
	return b, nil
}
