package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trailer-api/internal/adapters/repo"
	"trailer-api/internal/domain"
	"trailer-api/internal/infra/config"
	"trailer-api/internal/infra/db"
	applog "trailer-api/internal/infra/log"
	"trailer-api/internal/infra/metrics"
	"trailer-api/internal/infra/queue"
	"trailer-api/internal/usecase/library"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9091")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("writer: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var writeQueue domain.WriteQueue
	switch {
	case cfg.RabbitURL != "":
		rabbit, err := queue.NewRabbitWriteQueue(cfg.RabbitURL, cfg.Queues.Writes)
		if err != nil {
			logger.Fatal().Err(err).Msg("writer: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		writeQueue = rabbit
	case cfg.RedisAddr != "":
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		writeQueue = queue.NewRedisWriteQueue(redisClient, cfg.Queues.Writes)
	default:
		logger.Fatal().Msg("writer: не настроен транспорт очереди (RABBITMQ_URL или REDIS_ADDR)")
	}

	worker := &jobWorker{
		log:     logger,
		queue:   writeQueue,
		library: library.NewService(writeQueue, repoAdapter, repoAdapter),
	}

	logger.Info().Msg("writer: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("writer: остановлен")
}

type jobWorker struct {
	log     zerolog.Logger
	queue   domain.WriteQueue
	library *library.Service
}

func (w *jobWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("writer: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Str("user", job.ClerkUserID).
			Int64("movie", job.MovieID).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("writer: получена задача без идентификатора, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("writer: не удалось подтвердить задачу без идентификатора")
			}
			continue
		}

		applyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = w.library.Apply(applyCtx, job)
		cancel()

		switch {
		case err == nil:
			metrics.IncWriteJobProcessed(string(job.Kind), nil)
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("writer: не удалось подтвердить задачу")
			}
		case errors.Is(err, domain.ErrInvalidArgument):
			// Некорректную задачу повторять бессмысленно.
			metrics.IncWriteJobProcessed(string(job.Kind), err)
			jobLog.Error().Err(err).Msg("writer: некорректная задача, подтверждаем без применения")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("writer: не удалось подтвердить некорректную задачу")
			}
		default:
			metrics.IncWriteJobProcessed(string(job.Kind), err)
			jobLog.Warn().Err(err).Msg("writer: задача завершилась ошибкой, вернём в очередь")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("writer: не удалось вернуть задачу в очередь")
			}
			time.Sleep(time.Second)
		}
	}
}
