package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RecommendRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recommend_requests_total",
		Help: "Общее количество запросов рекомендаций",
	})
	RecommendRequestsByUser = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_requests_by_user_total",
		Help: "Количество запросов рекомендаций по пользователям",
	}, []string{"user_id"})
	RecommendEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recommend_empty_total",
		Help: "Запросы рекомендаций без кандидатов",
	})
	RecommendBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommend_build_seconds",
		Help:    "Время построения выдачи рекомендаций",
		Buckets: prometheus.DefBuckets,
	})
	RecommendCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_cache_total",
		Help: "Попадания и промахи кэша рекомендаций",
	}, []string{"result"})

	WriteJobsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "write_jobs_published_total",
		Help: "Опубликованные задачи фоновой записи",
	}, []string{"kind"})
	WriteJobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "write_jobs_processed_total",
		Help: "Обработанные задачи фоновой записи",
	}, []string{"kind", "status"})

	StorageQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storage_query_duration_seconds",
		Help:    "Длительность запросов к хранилищу",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RecommendRequestsTotal,
		RecommendRequestsByUser,
		RecommendEmptyTotal,
		RecommendBuildSeconds,
		RecommendCacheTotal,
		WriteJobsPublished,
		WriteJobsProcessed,
		StorageQueryDuration,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// IncRecommendForUser увеличивает счётчики запросов рекомендаций.
func IncRecommendForUser(clerkUserID string) {
	RecommendRequestsTotal.Inc()
	if clerkUserID == "" {
		clerkUserID = "unknown"
	}
	RecommendRequestsByUser.WithLabelValues(clerkUserID).Inc()
}

// ObserveRecommendBuild записывает длительность построения выдачи.
func ObserveRecommendBuild(start time.Time) {
	RecommendBuildSeconds.Observe(time.Since(start).Seconds())
}

// IncRecommendCache отмечает попадание или промах кэша рекомендаций.
func IncRecommendCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	RecommendCacheTotal.WithLabelValues(result).Inc()
}

// IncWriteJobPublished увеличивает счётчик опубликованных задач.
func IncWriteJobPublished(kind string) {
	WriteJobsPublished.WithLabelValues(kind).Inc()
}

// IncWriteJobProcessed увеличивает счётчик обработанных задач.
func IncWriteJobProcessed(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WriteJobsProcessed.WithLabelValues(kind, status).Inc()
}

// ObserveStorageQuery записывает длительность и статус запроса к хранилищу.
func ObserveStorageQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageQueryDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
