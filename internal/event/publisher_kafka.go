package event

import (
	"context"

	"behaviortrace/internal/platform/kafka"
)

// QueuePublisher hands events to the Kafka processing queue, keyed by
// user so each user's events stay ordered within a partition.
type QueuePublisher struct {
	producer *kafka.Producer
}

func NewQueuePublisher(producer *kafka.Producer) *QueuePublisher {
	return &QueuePublisher{producer: producer}
}

func (q *QueuePublisher) Publish(ctx context.Context, e Event) error {
	return q.producer.Publish(ctx, e.UserID.String(), e)
}
