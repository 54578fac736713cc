package audit

import (
	"context"
	"encoding/json"
	"fmt"

	dErrors "givingchain/pkg/domain-errors"

	"givingchain/internal/platform/kafka/producer"
)

// DefaultTopic is where lifecycle audit events land.
const DefaultTopic = "givingchain.audit"

// KafkaStore publishes events to a Kafka topic. It is write-only; reads are
// served by whatever consumes the topic, so the List methods fail with
// unavailable rather than pretending to be a query surface.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaStore{producer: p, topic: topic}
}

type kafkaEvent struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	ActorDID  string `json:"actorDid,omitempty"`
	ActorName string `json:"actorName,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaEvent{
		Timestamp: event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Action:    event.Action,
		ActorDID:  event.ActorDID,
		ActorName: event.ActorName,
		Subject:   event.Subject,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	// key by subject so one donation's events stay ordered within a partition
	return s.producer.Publish(ctx, s.topic, []byte(event.Subject), payload)
}

func (s *KafkaStore) ListBySubject(context.Context, string) ([]Event, error) {
	return nil, dErrors.New(dErrors.CodeUnavailable, "kafka audit store is write-only")
}

func (s *KafkaStore) ListRecent(context.Context, int) ([]Event, error) {
	return nil, dErrors.New(dErrors.CodeUnavailable, "kafka audit store is write-only")
}
