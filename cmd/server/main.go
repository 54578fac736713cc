package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"givingchain/internal/audit"
	"givingchain/internal/auth"
	"givingchain/internal/blob"
	"givingchain/internal/collection"
	"givingchain/internal/documents"
	gqltransport "givingchain/internal/graphql"
	"givingchain/internal/identity"
	"givingchain/internal/lifecycle"
	lifecyclemetrics "givingchain/internal/lifecycle/metrics"
	"givingchain/internal/platform/config"
	"givingchain/internal/platform/httpserver"
	"givingchain/internal/platform/kafka/producer"
	"givingchain/internal/platform/logger"
	"givingchain/internal/platform/middleware"
	platformredis "givingchain/internal/platform/redis"
	"givingchain/internal/registry"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}

	var store documents.Store
	var sessions auth.SessionStore
	if redisClient != nil {
		store = documents.NewRedisStore(redisClient.Client)
		sessions = auth.NewRedisSessionStore(redisClient.Client)
		defer redisClient.Close()
		log.Info("using redis backends", "url", cfg.Redis.URL)
	} else {
		store = documents.NewInMemoryStore()
		sessions = auth.NewInMemorySessionStore()
		log.Warn("no REDIS_URL set, documents and sessions are in memory only")
	}

	auditStore := audit.Store(audit.NewInMemoryStore())
	if len(cfg.Kafka.Brokers) > 0 {
		prod, err := producer.New(cfg.Kafka.Brokers)
		if err != nil {
			log.Error("kafka setup failed", "error", err)
			os.Exit(1)
		}
		defer prod.Close()
		if err := prod.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 1); err != nil {
			log.Error("audit topic setup failed", "error", err)
			os.Exit(1)
		}
		auditStore = audit.NewTeeStore(auditStore, audit.NewKafkaStore(prod, cfg.Kafka.AuditTopic))
		log.Info("audit events streaming to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	auditor := audit.NewPublisher(auditStore, audit.WithAsyncBuffer(256))
	defer auditor.Close()

	region := []byte(cfg.Region)

	ids := identity.NewService(store, []byte(cfg.Namespace), log)
	drivers, err := registry.NewDrivers(ctx, store, region, []byte(cfg.Namespace+"/drivers"))
	if err != nil {
		log.Error("drivers registry setup failed", "error", err)
		os.Exit(1)
	}
	recipients, err := registry.NewRecipients(ctx, store, region)
	if err != nil {
		log.Error("recipients registry setup failed", "error", err)
		os.Exit(1)
	}
	coll, err := collection.New(ctx, store, region, []byte(cfg.Namespace+"/collection"))
	if err != nil {
		log.Error("collection setup failed", "error", err)
		os.Exit(1)
	}

	lifecycleSvc := lifecycle.NewService(lifecycle.Config{
		Store:      store,
		Collection: coll,
		Drivers:    drivers,
		Recipients: recipients,
		Identity:   ids,
		Auditor:    auditor,
		Metrics:    lifecyclemetrics.New(),
		Logger:     log,
	})

	tokens := auth.NewTokenService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenAudience)
	authSvc := auth.NewService(ids, sessions, tokens, auditor, log)

	schema, err := gqltransport.NewSchema(gqltransport.Services{
		Auth:       authSvc,
		Lifecycle:  lifecycleSvc,
		Recipients: recipients,
	})
	if err != nil {
		log.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Authenticate(authSvc, log))

	router.Method(http.MethodPost, "/graphql", gqltransport.NewHandler(schema, log))
	blob.NewHandler(blob.NewInMemoryStore(), log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting givingchain server", "addr", cfg.Addr, "collection", coll.DID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
