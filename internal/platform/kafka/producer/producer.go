// Package producer wraps the franz-go client for publishing audit records.
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes keyed records to Kafka topics.
type Producer struct {
	client *kgo.Client
}

// New connects to the given brokers. The producer is safe for concurrent use.
func New(brokers []string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Producer{client: client}, nil
}

// EnsureTopic creates the topic if the cluster does not have it yet.
func (p *Producer) EnsureTopic(ctx context.Context, topic string, partitions int32) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, res.Err)
		}
	}
	return nil
}

// Publish sends one record and waits for the broker acknowledgment.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending records and releases the connection.
func (p *Producer) Close() {
	p.client.Close()
}
