package learning

import (
	"context"
	"encoding/json"
	"log/slog"

	"behaviortrace/internal/event"
	"behaviortrace/internal/platform/kafka"
)

// trainCheckInterval is how many consumed events pass between lazy
// retrain-gate evaluations.
const trainCheckInterval = 100

// EventConsumer persists events arriving off the queue and periodically
// nudges the retrain gate. Consumption is fail-silent: malformed or
// unpersistable records are logged and skipped, never redelivered
// forever.
type EventConsumer struct {
	store    event.Store
	service  *Service
	logger   *slog.Logger
	consumed int
}

var _ kafka.Handler = (*EventConsumer)(nil)

func NewEventConsumer(store event.Store, service *Service, logger *slog.Logger) *EventConsumer {
	return &EventConsumer{store: store, service: service, logger: logger}
}

func (c *EventConsumer) Handle(ctx context.Context, msg *kafka.Message) error {
	var e event.Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		c.logger.Warn("skipping malformed event record",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if e.ID == "" || e.Type == "" {
		c.logger.Warn("skipping event without identity",
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		return nil
	}

	if err := c.store.Append(ctx, e); err != nil {
		c.logger.Error("failed to persist consumed event",
			"event_id", e.ID,
			"event_type", e.Type,
			"error", err,
		)
		return nil
	}

	c.consumed++
	if c.consumed%trainCheckInterval == 0 {
		c.service.TrainAll(ctx, false)
	}
	return nil
}
