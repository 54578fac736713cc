// Package consumer wraps franz-go consumption behind a small handler loop.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record, decoupled from the client library so
// handlers stay testable.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. Returning an error stops the consumer.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls the given topics and dispatches records to a handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.AutoCommitInterval(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is canceled or the handler fails.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error", "topic", topic, "partition", partition, "error", err)
		})

		var handleErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = c.handler.Handle(ctx, &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
			})
		})
		if handleErr != nil {
			return handleErr
		}
	}
}
