package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trailer-api/internal/domain"
)

// RedisWriteQueue реализует очередь задач фоновой записи на базе Redis lists.
// Запасной транспорт для окружений без RabbitMQ.
type RedisWriteQueue struct {
	client *redis.Client
	key    string
}

var _ domain.WriteQueue = (*RedisWriteQueue)(nil)

// NewRedisWriteQueue создаёт очередь по указанному ключу.
func NewRedisWriteQueue(client *redis.Client, key string) *RedisWriteQueue {
	return &RedisWriteQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisWriteQueue) Enqueue(ctx context.Context, job domain.WriteJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задачи: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("публикация задачи: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди. Redis не хранит
// неподтверждённые сообщения, поэтому ack при отказе возвращает
// задачу в очередь повторной публикацией.
func (q *RedisWriteQueue) Receive(ctx context.Context) (domain.WriteJob, domain.WriteAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.WriteJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.WriteJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.WriteJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.WriteJob{}, nil, errors.New("redis queue: неожиданный ответ")
		}
		payload := []byte(res[1])
		var job domain.WriteJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return domain.WriteJob{}, nil, fmt.Errorf("разбор задачи: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.LPush(context.Background(), q.key, payload).Err()
		}
		return job, ack, nil
	}
}
