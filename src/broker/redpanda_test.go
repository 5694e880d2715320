package broker

import (
	"strings"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

func TestNewRecord(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantKey []byte
	}{
		{"run id key", "123456", []byte("123456")},
		{"no key", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecord("chunky.archives.fetched", tt.key, []byte(`{}`))
			if r.Topic != "chunky.archives.fetched" {
				t.Errorf("Topic = %s", r.Topic)
			}
			if string(r.Key) != string(tt.wantKey) || (r.Key == nil) != (tt.wantKey == nil) {
				t.Errorf("Key = %q, want %q", r.Key, tt.wantKey)
			}

			headers := messageFromRecord(r).Headers
			if headers[HeaderContentType] != "application/json" {
				t.Errorf("content-type = %q", headers[HeaderContentType])
			}
			if headers[HeaderProducer] != "chunky-pr" {
				t.Errorf("producer = %q", headers[HeaderProducer])
			}
		})
	}
}

func TestMessageFromRecord(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	msg := messageFromRecord(&kgo.Record{
		Topic:     "events",
		Key:       []byte("42"),
		Value:     []byte("v"),
		Offset:    7,
		Partition: 2,
		Timestamp: ts,
	})

	if msg.Topic != "events" || msg.Key != "42" || string(msg.Value) != "v" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Offset != 7 || msg.Partition != 2 || msg.Timestamp != ts.UnixMilli() {
		t.Errorf("position = %d/%d@%d", msg.Partition, msg.Offset, msg.Timestamp)
	}
	if msg.Headers != nil {
		t.Errorf("Headers = %v, want nil without record headers", msg.Headers)
	}
}

func TestCreateTopicRequest(t *testing.T) {
	req := createTopicRequest("chunky.archives.fetched")
	if len(req.Topics) != 1 {
		t.Fatalf("got %d topics, want 1", len(req.Topics))
	}

	topic := req.Topics[0]
	if topic.Topic != "chunky.archives.fetched" {
		t.Errorf("Topic = %s", topic.Topic)
	}
	if topic.NumPartitions != -1 || topic.ReplicationFactor != -1 {
		t.Errorf("partitions = %d, replication = %d, want broker defaults", topic.NumPartitions, topic.ReplicationFactor)
	}
	if len(topic.Configs) != 1 || topic.Configs[0].Name != "retention.ms" ||
		topic.Configs[0].Value == nil || *topic.Configs[0].Value != "604800000" {
		t.Errorf("Configs = %+v, want 7 day retention", topic.Configs)
	}
}

func TestCreateTopicError(t *testing.T) {
	tests := []struct {
		name    string
		topics  []kmsg.CreateTopicsResponseTopic
		wantErr string
	}{
		{"created", []kmsg.CreateTopicsResponseTopic{{Topic: "events"}}, ""},
		{"already exists", []kmsg.CreateTopicsResponseTopic{{Topic: "events", ErrorCode: kerr.TopicAlreadyExists.Code}}, ""},
		{"not authorized", []kmsg.CreateTopicsResponseTopic{{Topic: "events", ErrorCode: kerr.TopicAuthorizationFailed.Code}}, "TOPIC_AUTHORIZATION_FAILED"},
		{"other topic only", []kmsg.CreateTopicsResponseTopic{{Topic: "other"}}, "missing from response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := createTopicError(&kmsg.CreateTopicsResponse{Topics: tt.topics}, "events")
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("createTopicError() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("createTopicError() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
