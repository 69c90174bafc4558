package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"trailer-api/internal/domain"
)

// RabbitWriteQueue реализует очередь задач фоновой записи через AMQP.
type RabbitWriteQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.WriteQueue = (*RabbitWriteQueue)(nil)

// NewRabbitWriteQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitWriteQueue(amqpURL, queue string) (*RabbitWriteQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("не указан адрес AMQP")
	}
	if queue == "" {
		return nil, errors.New("не указано имя очереди")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к брокеру: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}
	return &RabbitWriteQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitWriteQueue) Enqueue(ctx context.Context, job domain.WriteJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задачи: %w", err)
	}
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("публикация задачи: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди. Подтверждение доставки
// откладывается до вызова ack-функции: успех — ack, отказ — requeue.
func (q *RabbitWriteQueue) Receive(ctx context.Context) (domain.WriteJob, domain.WriteAckFunc, error) {
	deliveries, err := q.consumer()
	if err != nil {
		return domain.WriteJob{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.WriteJob{}, nil, ctx.Err()
	case msg, ok := <-deliveries:
		if !ok {
			return domain.WriteJob{}, nil, errors.New("канал доставки закрыт")
		}
		var job domain.WriteJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			// Нечитаемое сообщение нет смысла возвращать в очередь.
			_ = msg.Nack(false, false)
			return domain.WriteJob{}, nil, fmt.Errorf("разбор задачи: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return msg.Ack(false)
			}
			return msg.Nack(false, true)
		}
		return job, ack, nil
	}
}

func (q *RabbitWriteQueue) consumer() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	if err := q.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("настройка prefetch: %w", err)
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("подписка на очередь: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение с брокером.
func (q *RabbitWriteQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
