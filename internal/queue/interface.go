package queue

import (
	"context"
	"time"
)

// Delivery is one consumed job. Workers settle it exactly once with Ack or Nack.
type Delivery interface {
	Ack() error
	Nack(requeue bool) error
	Job() *Job
}

// JobQueue carries chat history writes and session cleanup jobs between the
// API and the worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job *Job) error

	// Consume streams deliveries until ctx ends or the broker closes the
	// stream, in which case ErrQueueClosed is sent on the error channel.
	// prefetchCount bounds the unacknowledged deliveries in flight.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error
	HealthCheck(ctx context.Context) error
}

// DLQPurger drops dead-lettered jobs that have sat longer than retention.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
