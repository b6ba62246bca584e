// Package broker is the Broker Adapter (component B): priority-aware AMQP
// publish/consume with delayed redelivery and a dead-letter exchange, per
// spec.md §4.4. Built on github.com/rabbitmq/amqp091-go, the client the
// pack's transcode/DLQ examples use for this exact topology shape.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

const (
	deadLetterExchange = "dlx"
	deadLetterQueue    = "jobs.dead_letter"
)

var priorityQueues = []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow}

// Message is the wire body published to a priority queue: the job's
// identity plus enough of its definition for a worker to execute it without
// a Store round-trip before claiming it.
type Message struct {
	JobID      string         `json:"job_id"`
	JobType    model.JobType  `json:"job_type"`
	Priority   model.Priority `json:"priority"`
	Payload    model.Payload  `json:"payload"`
	RetryCount int            `json:"retry_count"`
}

// Broker owns one AMQP connection and the channels opened on top of it.
// A connection is shared; channels are not — each publisher and each
// consumer goroutine gets its own, since amqp091.Channel is not safe for
// concurrent use.
type Broker struct {
	conn *amqp.Connection
	pub  *amqp.Channel
}

// Dial connects to the broker URL and declares the full topology: three
// durable priority queues with a broker-level max priority of 10, a DLX
// bound to jobs.dead_letter, and one retry-TTL queue per priority band that
// routes expired messages back to its origin queue (the delayed-republish
// mechanism of spec.md §4.4/§9).
func Dial(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open publish channel: %w", err)
	}

	b := &Broker{conn: conn, pub: pub}
	if err := b.declareTopology(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) declareTopology() error {
	if err := b.pub.ExchangeDeclare(deadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare dlx: %w", err)
	}
	if _, err := b.pub.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare dead-letter queue: %w", err)
	}
	if err := b.pub.QueueBind(deadLetterQueue, "", deadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("broker: bind dead-letter queue: %w", err)
	}

	for _, p := range priorityQueues {
		queue := p.Queue()
		args := amqp.Table{
			"x-max-priority":            int32(10),
			"x-dead-letter-exchange":    deadLetterExchange,
		}
		if _, err := b.pub.QueueDeclare(queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("broker: declare queue %s: %w", queue, err)
		}

		retryQueue := queue + ".retry"
		retryArgs := amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		}
		if _, err := b.pub.QueueDeclare(retryQueue, true, false, false, false, retryArgs); err != nil {
			return fmt.Errorf("broker: declare retry queue %s: %w", retryQueue, err)
		}
	}
	return nil
}

// Close tears down the channel and connection.
func (b *Broker) Close() error {
	if b.pub != nil {
		b.pub.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Publish delivers msg to its priority band's queue immediately, persistent
// and content-type application/json, with the broker priority spec.md §4.4
// maps from the priority band (10/5/1).
func (b *Broker) Publish(ctx context.Context, msg Message) error {
	return b.publishTo(ctx, "", msg.Priority.Queue(), msg, 0)
}

// PublishDelayed realizes spec.md §4.4's delayed-republish contract: the
// message becomes deliverable no earlier than now+delay by setting a
// per-message TTL and routing it to the priority band's retry queue, which
// dead-letters expired messages back onto the live queue.
func (b *Broker) PublishDelayed(ctx context.Context, msg Message, delay time.Duration) error {
	if delay <= 0 {
		return b.Publish(ctx, msg)
	}
	return b.publishTo(ctx, "", msg.Priority.Queue()+".retry", msg, delay)
}

func (b *Broker) publishTo(ctx context.Context, exchange, routingKey string, msg Message, ttl time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal message: %w", err)
	}

	publishing := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now().UTC(),
		Priority:     msg.Priority.BrokerPriority(),
	}
	if ttl > 0 {
		publishing.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
	}

	if err := b.pub.PublishWithContext(ctx, exchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("broker: publish to %s: %w", routingKey, err)
	}
	return nil
}

// Handler processes one delivered message. It is only called for bodies
// that parsed as a Message; unparseable (Poison, per spec.md §7) bodies are
// nacked without reaching it. A non-nil error is the caller's execution
// outcome and makes the delivery nacked without requeue.
type Handler func(ctx context.Context, msg Message) error

// Consume opens a dedicated channel, sets prefetch, and dispatches deliveries
// from queue to handler with manual ack: ack on handler success,
// nack-without-requeue on a parse error (poison bodies, per spec.md §4.5
// step 1 and §7's Poison kind), nack-with-requeue=false on any other
// handler error (the Retry Controller, not the broker, owns redelivery).
func (b *Broker) Consume(ctx context.Context, queue string, prefetch int, handler Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("broker: open consume channel for %s: %w", queue, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("broker: set qos for %s: %w", queue, err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("broker: register consumer for %s: %w", queue, err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				dispatch(ctx, delivery, handler)
			}
		}
	}()
	return nil
}

func dispatch(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	var msg Message
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		delivery.Nack(false, false)
		return
	}
	delivery.Ack(false)
}
