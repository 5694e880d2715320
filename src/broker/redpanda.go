package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/leMaik/chunky-pr-as-update-site/src/logger"
)

// Headers set on every record the update site produces.
const (
	HeaderContentType = "content-type"
	HeaderProducer    = "producer"

	contentTypeJSON = "application/json"
	producerName    = "chunky-pr"
)

// Archive events are only interesting for a while after the download.
const eventRetention = 7 * 24 * time.Hour

// RedpandaBroker publishes and consumes archive events on a
// Kafka-compatible cluster using franz-go.
//
// Records are keyed by run id. The producer hashes keys the same way the
// Java client does, so every event of one run lands on one partition and
// keeps its order there.
type RedpandaBroker struct {
	client    *kgo.Client
	brokers   []string
	log       logger.Logger
	mu        sync.RWMutex
	consumers map[string]*kgo.Client // topic:group
	closed    bool
}

// NewRedpandaBroker connects a producer to the given seed brokers, e.g.
// ["localhost:19092"].
func NewRedpandaBroker(brokers []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(producerName),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
		kgo.ProducerBatchCompression(kgo.ZstdCompression(), kgo.SnappyCompression()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &RedpandaBroker{
		client:    client,
		brokers:   brokers,
		log:       log,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// EnsureTopic creates topic with the broker's default partition count and
// replication factor and a retention suited to archive events. An existing
// topic is left alone.
func (b *RedpandaBroker) EnsureTopic(ctx context.Context, topic string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	resp, err := createTopicRequest(topic).RequestWith(ctx, b.client)
	if err != nil {
		return fmt.Errorf("creating topic %s: %w", topic, err)
	}
	if err := createTopicError(resp, topic); err != nil {
		return err
	}
	b.log.Debug("[RedpandaBroker] Topic %s ready", topic)
	return nil
}

func createTopicRequest(topic string) *kmsg.CreateTopicsRequest {
	t := kmsg.NewCreateTopicsRequestTopic()
	t.Topic = topic
	t.NumPartitions = -1
	t.ReplicationFactor = -1

	retention := kmsg.NewCreateTopicsRequestTopicConfig()
	retention.Name = "retention.ms"
	retention.Value = kmsg.StringPtr(strconv.FormatInt(eventRetention.Milliseconds(), 10))
	t.Configs = append(t.Configs, retention)

	req := kmsg.NewPtrCreateTopicsRequest()
	req.Topics = append(req.Topics, t)
	return req
}

func createTopicError(resp *kmsg.CreateTopicsResponse, topic string) error {
	for _, t := range resp.Topics {
		if t.Topic != topic {
			continue
		}
		err := kerr.ErrorForCode(t.ErrorCode)
		if err == nil || errors.Is(err, kerr.TopicAlreadyExists) {
			return nil
		}
		return fmt.Errorf("creating topic %s: %w", topic, err)
	}
	return fmt.Errorf("creating topic %s: missing from response", topic)
}

// Publish produces value to topic, keyed by key, and waits for the
// acknowledgement.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	if err := b.client.ProduceSync(ctx, newRecord(topic, key, value)).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func newRecord(topic, key string, value []byte) *kgo.Record {
	r := &kgo.Record{
		Topic: topic,
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderContentType, Value: []byte(contentTypeJSON)},
			{Key: HeaderProducer, Value: []byte(producerName)},
		},
	}
	// nil keys are spread by the sticky partitioner
	if key != "" {
		r.Key = []byte(key)
	}
	return r
}

// Subscribe joins groupID on topic and streams its records from the
// earliest offset the group has not committed.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	consumerKey := topic + ":" + groupID
	if _, exists := b.consumers[consumerKey]; exists {
		return nil, fmt.Errorf("consumer already exists for topic %s and group %s", topic, groupID)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.brokers...),
		kgo.ClientID(producerName),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	b.consumers[consumerKey] = consumer

	msgChan := make(chan Message, subscriberBuffer)
	go b.consumeLoop(ctx, consumer, msgChan)
	return msgChan, nil
}

func (b *RedpandaBroker) consumeLoop(ctx context.Context, consumer *kgo.Client, msgChan chan<- Message) {
	defer close(msgChan)

	for {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			b.log.Error("[RedpandaBroker] Fetch error on %s/%d: %v", topic, partition, err)
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			select {
			case msgChan <- messageFromRecord(iter.Next()):
			case <-ctx.Done():
				return
			}
		}
	}
}

func messageFromRecord(r *kgo.Record) Message {
	msg := Message{
		Topic:     r.Topic,
		Key:       string(r.Key),
		Value:     r.Value,
		Offset:    r.Offset,
		Partition: r.Partition,
		Timestamp: r.Timestamp.UnixMilli(),
	}
	if len(r.Headers) > 0 {
		msg.Headers = make(map[string]string, len(r.Headers))
		for _, h := range r.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}

// Close shuts down the producer and every consumer.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, consumer := range b.consumers {
		consumer.Close()
	}
	b.consumers = make(map[string]*kgo.Client)

	b.client.Close()
	return nil
}
