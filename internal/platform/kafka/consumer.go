package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"behaviortrace/internal/platform/config"
)

// Message is the transport-neutral view of one consumed record handed
// to handlers.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one consumed message. Returning an error stops the
// consumer; transient problems should be handled (logged, skipped)
// inside the handler.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer runs a consumer-group poll loop over the configured topic.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// NewConsumer joins the configured consumer group. Returns nil if no
// brokers are configured.
func NewConsumer(cfg config.KafkaConfig, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is canceled. Offsets are committed after
// each successfully handled batch.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			msg := &Message{
				Topic:     r.Topic,
				Partition: r.Partition,
				Offset:    r.Offset,
				Key:       r.Key,
				Value:     r.Value,
			}
			handleErr = c.handler.Handle(ctx, msg)
		})
		if handleErr != nil {
			return fmt.Errorf("handle consumed record: %w", handleErr)
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("kafka offset commit failed", "error", err)
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
