// Package kafka wraps the franz-go client for the behavioral event
// pipeline: a JSON producer for the tracker's queue hand-off and a
// consumer-group poll loop for downstream workers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"behaviortrace/internal/platform/config"
)

// Producer publishes JSON-encoded records to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewProducer connects a producer for the configured topic. Returns nil
// if no brokers are configured (queue hand-off disabled).
func NewProducer(cfg config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Publish sends one JSON-encoded value keyed for per-key ordering. The
// produce itself is asynchronous; delivery failures are logged, not
// returned, matching the pipeline's fire-and-forget contract.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal kafka payload: %w", err)
	}

	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: payload}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("kafka produce failed",
				"topic", r.Topic,
				"key", string(r.Key),
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *Producer) Close(ctx context.Context) error {
	defer p.client.Close()
	return p.client.Flush(ctx)
}

// EnsureTopic creates the topic if it does not exist. Safe to call on
// every startup.
func EnsureTopic(ctx context.Context, cfg config.KafkaConfig, partitions int32) error {
	if len(cfg.Brokers) == 0 {
		return nil
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...))
	if err != nil {
		return fmt.Errorf("connect for topic admin: %w", err)
	}
	defer client.Close()

	admin := kadm.NewClient(client)
	topics, err := admin.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if topics.Has(cfg.Topic) {
		return nil
	}

	if _, err := admin.CreateTopic(ctx, partitions, 1, nil, cfg.Topic); err != nil {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	return nil
}
