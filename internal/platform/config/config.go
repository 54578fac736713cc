// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Server captures everything the process needs to come up.
type Server struct {
	Addr          string
	Region        string
	Namespace     string
	JWTSigningKey string
	TokenIssuer   string
	TokenAudience string

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig controls the optional Redis backends for documents and
// sessions. An empty URL means everything stays in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig controls the optional audit event stream. No brokers means
// audit events stay in the in-memory store only.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("GIVINGCHAIN_ADDR", ":8080"),
		Region:        envOr("GIVINGCHAIN_REGION", "teaneck"),
		Namespace:     envOr("GIVINGCHAIN_NAMESPACE", "givingchain"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		TokenIssuer:   envOr("JWT_ISSUER", "givingchain"),
		TokenAudience: envOr("JWT_AUDIENCE", "givingchain-clients"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "givingchain.audit"),
		},
	}

	if cfg.JWTSigningKey == "" {
		// development default, override in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
