package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"news-portal/internal/domain"
	"news-portal/internal/infra/metrics"
)

const defaultPollInterval = time.Second

// RabbitNotifyQueue реализует очередь уведомлений поверх AMQP.
// Канал восстанавливается лениво при следующей операции, поэтому
// недоступность брокера проявляется как QueueUnavailable, а не падение.
type RabbitNotifyQueue struct {
	url          string
	queue        string
	pollInterval time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitNotifyQueue создаёт очередь по AMQP URL.
func NewRabbitNotifyQueue(url, queue string) (*RabbitNotifyQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	return &RabbitNotifyQueue{url: url, queue: queue, pollInterval: defaultPollInterval}, nil
}

var _ domain.NotifyQueue = (*RabbitNotifyQueue)(nil)

func (q *RabbitNotifyQueue) channel() (*amqp.Channel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	if q.conn == nil || q.conn.IsClosed() {
		conn, err := amqp.Dial(q.url)
		if err != nil {
			return nil, fmt.Errorf("dial amqp: %w", err)
		}
		q.conn = conn
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	q.ch = ch
	return ch, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitNotifyQueue) Enqueue(ctx context.Context, job domain.NotificationJob) (domain.EnqueueStatus, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return domain.QueueUnavailable, fmt.Errorf("marshal job: %w", err)
	}
	ch, err := q.channel()
	if err != nil {
		return domain.QueueUnavailable, err
	}
	start := time.Now()
	err = ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return domain.QueueUnavailable, fmt.Errorf("publish job: %w", err)
	}
	return domain.Enqueued, nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RabbitNotifyQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.NotificationJob{}, err
		}
		ch, err := q.channel()
		if err != nil {
			select {
			case <-ctx.Done():
				return domain.NotificationJob{}, ctx.Err()
			case <-time.After(q.pollInterval):
			}
			continue
		}
		start := time.Now()
		msg, ok, err := ch.Get(q.queue, true)
		metrics.ObserveNetworkRequest("rabbitmq", "get", q.queue, start, err)
		if err != nil {
			return domain.NotificationJob{}, fmt.Errorf("fetch message: %w", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return domain.NotificationJob{}, ctx.Err()
			case <-time.After(q.pollInterval):
			}
			continue
		}
		var job domain.NotificationJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			return domain.NotificationJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

// Close закрывает соединение с брокером.
func (q *RabbitNotifyQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		_ = q.ch.Close()
		q.ch = nil
	}
	if q.conn != nil {
		err := q.conn.Close()
		q.conn = nil
		return err
	}
	return nil
}
