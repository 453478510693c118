// Package email hands email jobs to a durable RabbitMQ queue. The worker
// that drains the queue and talks SMTP lives outside this service.
package email

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Job is one email to be sent by the downstream worker.
type Job struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// QueuePublisher publishes jobs to a durable queue over AMQP.
type QueuePublisher struct {
	conn  *amqp.Connection
	chn   *amqp.Channel
	queue string
}

// NewQueuePublisher dials the broker, opens a channel, and declares the
// durable queue.
func NewQueuePublisher(url, queue string) (*QueuePublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := chn.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &QueuePublisher{conn: conn, chn: chn, queue: queue}, nil
}

// Enqueue publishes the job as persistent JSON.
func (p *QueuePublisher) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.chn.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close releases the channel and connection.
func (p *QueuePublisher) Close() error {
	if err := p.chn.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// NopQueue discards jobs; used when no broker is configured and in tests.
type NopQueue struct{}

// Enqueue discards the job.
func (NopQueue) Enqueue(context.Context, Job) error { return nil }
