package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/JojoWeyn/transcriber/pkg/utils"
	amqp "github.com/rabbitmq/amqp091-go"
)

const pollInterval = 200 * time.Millisecond

// channel is the subset of *amqp.Channel the queue uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Close() error
}

// Queue keeps entries in a durable RabbitMQ queue. Pop uses basic.get with auto-ack,
// so a popped entry is gone from the broker just like an RPOP'd Redis entry.
type Queue struct {
	mu         sync.Mutex
	channel    channel
	exchange   string
	routingKey string
	queue      string
}

func NewQueue(conn *amqp.Connection, exchange, routingKey, queue string) (*Queue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"direct",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	return newQueue(ch, exchange, routingKey, queue), nil
}

func newQueue(ch channel, exchange, routingKey, queue string) *Queue {
	return &Queue{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		queue:      queue,
	}
}

func (q *Queue) Push(ctx context.Context, entry entity.QueueEntry) error {
	body, err := utils.ToRawMessage(entry)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.channel.PublishWithContext(ctx,
		q.exchange,
		q.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    entry.TranscriptionID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Pop returns nil, nil when the queue is empty.
func (q *Queue) Pop(_ context.Context) (*entity.QueueEntry, error) {
	q.mu.Lock()
	msg, ok, err := q.channel.Get(q.queue, true)
	q.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("basic.get %s: %w", q.queue, err)
	}
	if !ok {
		return nil, nil
	}

	var entry entity.QueueEntry
	if err := json.Unmarshal(msg.Body, &entry); err != nil {
		return nil, fmt.Errorf("decode queue entry: %w", err)
	}
	return &entry, nil
}

// PopWait polls until an entry arrives, timeout passes or ctx is done.
func (q *Queue) PopWait(ctx context.Context, timeout time.Duration) (*entity.QueueEntry, error) {
	deadline := time.Now().Add(timeout)
	for {
		entry, err := q.Pop(ctx)
		if err != nil || entry != nil {
			return entry, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, nil
		}
	}
}

func (q *Queue) Close() error {
	return q.channel.Close()
}
