package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"behaviortrace/internal/dataset"
	"behaviortrace/internal/event"
	"behaviortrace/internal/features"
	"behaviortrace/internal/learning"
	"behaviortrace/internal/ops"
	"behaviortrace/internal/platform/config"
	"behaviortrace/internal/platform/httpserver"
	"behaviortrace/internal/platform/kafka"
	"behaviortrace/internal/platform/logger"
	"behaviortrace/internal/platform/redis"
	"behaviortrace/internal/scorer"
	"behaviortrace/internal/tracker"
)

// main wires high-level dependencies, runs the event consumer, and
// exposes the operational HTTP surface. Business logic lives in the
// internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable event store: Postgres when configured, in-memory otherwise.
	var store event.Store = event.NewInMemoryStore()
	var pool *pgxpool.Pool
	if cfg.PostgresURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = event.NewPostgresStore(pool)
	} else {
		log.Warn("no postgres URL configured, using in-memory event store")
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	var cache event.RecentCache = event.NewInMemoryRecentCache()
	if redisClient != nil {
		defer redisClient.Close()
		cache = event.NewRedisRecentCache(redisClient.Client)
	}

	builder, err := dataset.NewBuilder(store, dataset.WithLogger(log))
	if err != nil {
		log.Error("dataset builder init failed", "error", err)
		os.Exit(1)
	}
	extractor, err := features.NewExtractor(store)
	if err != nil {
		log.Error("feature extractor init failed", "error", err)
		os.Exit(1)
	}
	registry := scorer.NewRegistry(scorer.WithLogger(log))
	learningService, err := learning.New(learning.NewInMemoryModelStore(), store,
		builder, extractor, registry, learning.WithLogger(log))
	if err != nil {
		log.Error("learning service init failed", "error", err)
		os.Exit(1)
	}

	if err := kafka.EnsureTopic(ctx, cfg.Kafka, 6); err != nil {
		log.Error("kafka topic ensure failed", "error", err)
		os.Exit(1)
	}
	producer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Error("kafka producer init failed", "error", err)
		os.Exit(1)
	}
	trackerOpts := []tracker.Option{tracker.WithLogger(log), tracker.WithRecentCache(cache)}
	if producer != nil {
		trackerOpts = append(trackerOpts, tracker.WithPublisher(event.NewQueuePublisher(producer)))
	}
	trackerService, err := tracker.New(store, trackerOpts...)
	if err != nil {
		log.Error("tracker init failed", "error", err)
		os.Exit(1)
	}
	consumer, err := kafka.NewConsumer(cfg.Kafka,
		learning.NewEventConsumer(store, learningService, log), log)
	if err != nil {
		log.Error("kafka consumer init failed", "error", err)
		os.Exit(1)
	}

	handler := ops.New(cache, learningService, trackerService, log)
	if pool != nil {
		handler.AddHealthCheck("postgres", pool.Ping)
	}
	if redisClient != nil {
		handler.AddHealthCheck("redis", redisClient.Health)
	}
	srv := httpserver.New(cfg.OpsAddr, ops.NewRouter(handler))

	log.Info("starting behaviortrace worker",
		"ops_addr", cfg.OpsAddr,
		"kafka_topic", cfg.Kafka.Topic,
		"postgres", cfg.PostgresURL != "",
		"redis", redisClient != nil,
	)

	errs := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	if consumer != nil {
		go func() {
			errs <- consumer.Run(ctx)
		}()
	} else {
		log.Warn("no kafka brokers configured, consumer disabled")
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			log.Error("worker failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if consumer != nil {
		consumer.Close()
	}
	if producer != nil {
		if err := producer.Close(shutdownCtx); err != nil {
			log.Error("kafka producer flush failed", "error", err)
		}
	}
}
