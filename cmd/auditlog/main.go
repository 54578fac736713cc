// Command auditlog tails the audit event stream and prints each event as a
// structured log line, for operators watching donation activity live.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"givingchain/internal/platform/config"
	"givingchain/internal/platform/kafka/consumer"
	"givingchain/internal/platform/logger"
)

type printer struct {
	logger *slog.Logger
}

func (p *printer) Handle(ctx context.Context, msg *consumer.Message) error {
	var event struct {
		Timestamp string `json:"timestamp"`
		Action    string `json:"action"`
		ActorDID  string `json:"actorDid"`
		ActorName string `json:"actorName"`
		Subject   string `json:"subject"`
		Detail    string `json:"detail"`
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		p.logger.Warn("skipping undecodable audit record", "key", string(msg.Key), "error", err)
		return nil
	}
	p.logger.Info("audit",
		"action", event.Action,
		"actor", event.ActorName,
		"actor_did", event.ActorDID,
		"subject", event.Subject,
		"detail", event.Detail,
		"at", event.Timestamp,
		"request_id", event.RequestID,
	)
	return nil
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if len(cfg.Kafka.Brokers) == 0 {
		log.Error("KAFKA_BROKERS must be set")
		os.Exit(1)
	}

	c, err := consumer.New(cfg.Kafka.Brokers, "givingchain-auditlog",
		[]string{cfg.Kafka.AuditTopic}, &printer{logger: log}, log)
	if err != nil {
		log.Error("consumer setup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("tailing audit events", "topic", cfg.Kafka.AuditTopic)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}
