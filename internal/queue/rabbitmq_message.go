package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is a decoded chat job still held unacknowledged by the broker.
type Message struct {
	job      *Job
	delivery amqp.Delivery
}

func newMessage(job *Job, d amqp.Delivery) *Message {
	return &Message{job: job, delivery: d}
}

func (m *Message) Ack() error { return m.delivery.Ack(false) }

// Nack without requeue routes the job to the dead-letter queue.
func (m *Message) Nack(requeue bool) error { return m.delivery.Nack(false, requeue) }

func (m *Message) Job() *Job { return m.job }
