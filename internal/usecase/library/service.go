package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trailer-api/internal/domain"
	"trailer-api/internal/infra/metrics"
)

// Service управляет оценками и вотчлистом пользователя. Записи не применяются
// к БД синхронно: API кладёт задачу в очередь и отвечает сразу, фоновый
// воркер применяет её через Apply.
type Service struct {
	queue     domain.WriteQueue
	ratings   domain.RatingRepo
	watchlist domain.WatchlistRepo
}

// NewService создаёт сервис библиотеки пользователя.
func NewService(queue domain.WriteQueue, ratings domain.RatingRepo, watchlist domain.WatchlistRepo) *Service {
	return &Service{queue: queue, ratings: ratings, watchlist: watchlist}
}

// SubmitRating ставит в очередь добавление или обновление оценки.
func (s *Service) SubmitRating(ctx context.Context, clerkUserID string, movieID int64, rating float64) (domain.WriteJob, error) {
	if err := validateTarget(clerkUserID, movieID); err != nil {
		return domain.WriteJob{}, err
	}
	if err := domain.ValidateRating(rating); err != nil {
		return domain.WriteJob{}, err
	}
	job := domain.WriteJob{
		ID:          uuid.NewString(),
		Kind:        domain.WriteJobRatingUpsert,
		ClerkUserID: clerkUserID,
		MovieID:     movieID,
		Rating:      rating,
		RequestedAt: time.Now().UTC(),
	}
	return s.enqueue(ctx, job)
}

// SubmitWatchlistAdd ставит в очередь добавление фильма в вотчлист.
func (s *Service) SubmitWatchlistAdd(ctx context.Context, clerkUserID string, movieID int64) (domain.WriteJob, error) {
	if err := validateTarget(clerkUserID, movieID); err != nil {
		return domain.WriteJob{}, err
	}
	job := domain.WriteJob{
		ID:          uuid.NewString(),
		Kind:        domain.WriteJobWatchlistAdd,
		ClerkUserID: clerkUserID,
		MovieID:     movieID,
		RequestedAt: time.Now().UTC(),
	}
	return s.enqueue(ctx, job)
}

// SubmitWatchlistRemove ставит в очередь удаление фильма из вотчлиста.
func (s *Service) SubmitWatchlistRemove(ctx context.Context, clerkUserID string, movieID int64) (domain.WriteJob, error) {
	if err := validateTarget(clerkUserID, movieID); err != nil {
		return domain.WriteJob{}, err
	}
	job := domain.WriteJob{
		ID:          uuid.NewString(),
		Kind:        domain.WriteJobWatchlistRemove,
		ClerkUserID: clerkUserID,
		MovieID:     movieID,
		RequestedAt: time.Now().UTC(),
	}
	return s.enqueue(ctx, job)
}

// Apply применяет задачу фоновой записи к хранилищу. Вызывается воркером.
func (s *Service) Apply(ctx context.Context, job domain.WriteJob) error {
	switch job.Kind {
	case domain.WriteJobRatingUpsert:
		if err := domain.ValidateRating(job.Rating); err != nil {
			return err
		}
		return s.ratings.UpsertRating(ctx, job.ClerkUserID, job.MovieID, job.Rating)
	case domain.WriteJobWatchlistAdd:
		return s.watchlist.AddToWatchlist(ctx, job.ClerkUserID, job.MovieID)
	case domain.WriteJobWatchlistRemove:
		_, err := s.watchlist.RemoveFromWatchlist(ctx, job.ClerkUserID, job.MovieID)
		return err
	default:
		return fmt.Errorf("неизвестный тип задачи %q: %w", job.Kind, domain.ErrInvalidArgument)
	}
}

// UserRatings возвращает оценки пользователя вместе с метаданными фильмов.
func (s *Service) UserRatings(ctx context.Context, clerkUserID string) ([]domain.RatedMovie, error) {
	if clerkUserID == "" {
		return nil, fmt.Errorf("пустой идентификатор пользователя: %w", domain.ErrInvalidArgument)
	}
	return s.ratings.ListUserRatings(ctx, clerkUserID)
}

// UserWatchlist возвращает вотчлист пользователя вместе с метаданными фильмов.
func (s *Service) UserWatchlist(ctx context.Context, clerkUserID string) ([]domain.WatchlistEntry, error) {
	if clerkUserID == "" {
		return nil, fmt.Errorf("пустой идентификатор пользователя: %w", domain.ErrInvalidArgument)
	}
	return s.watchlist.ListWatchlist(ctx, clerkUserID)
}

func (s *Service) enqueue(ctx context.Context, job domain.WriteJob) (domain.WriteJob, error) {
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return domain.WriteJob{}, fmt.Errorf("постановка задачи в очередь: %w", err)
	}
	metrics.IncWriteJobPublished(string(job.Kind))
	return job, nil
}

func validateTarget(clerkUserID string, movieID int64) error {
	if clerkUserID == "" {
		return fmt.Errorf("пустой идентификатор пользователя: %w", domain.ErrInvalidArgument)
	}
	if movieID <= 0 {
		return fmt.Errorf("некорректный идентификатор фильма %d: %w", movieID, domain.ErrInvalidArgument)
	}
	return nil
}
