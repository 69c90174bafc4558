package catalog

import (
	"context"
	"fmt"
	"time"

	"trailer-api/internal/domain"
)

// Service отдаёт витринные списки фильмов.
type Service struct {
	movies       domain.MovieRepo
	language     string
	popularLimit int
	recentWindow time.Duration
}

// NewService создаёт сервис каталога. language задаёт язык основной витрины,
// recentWindowDays — глубину списка недавних релизов.
func NewService(movies domain.MovieRepo, language string, popularLimit, recentWindowDays int) *Service {
	return &Service{
		movies:       movies,
		language:     language,
		popularLimit: popularLimit,
		recentWindow: time.Duration(recentWindowDays) * 24 * time.Hour,
	}
}

// Popular возвращает вышедшие фильмы основной витрины по убыванию популярности.
func (s *Service) Popular(ctx context.Context) ([]domain.Movie, error) {
	movies, err := s.movies.ListPopularByLanguage(ctx, s.language, s.popularLimit)
	if err != nil {
		return nil, fmt.Errorf("популярные фильмы: %w", err)
	}
	return movies, nil
}

// RecentPopular возвращает популярные фильмы, вышедшие за последнее окно.
func (s *Service) RecentPopular(ctx context.Context) ([]domain.Movie, error) {
	since := time.Now().UTC().Add(-s.recentWindow)
	movies, err := s.movies.ListRecentPopular(ctx, since, s.popularLimit)
	if err != nil {
		return nil, fmt.Errorf("недавние фильмы: %w", err)
	}
	return movies, nil
}

// Upcoming возвращает ещё не вышедшие фильмы по возрастанию даты релиза.
func (s *Service) Upcoming(ctx context.Context) ([]domain.Movie, error) {
	movies, err := s.movies.ListUpcoming(ctx, s.popularLimit)
	if err != nil {
		return nil, fmt.Errorf("предстоящие фильмы: %w", err)
	}
	return movies, nil
}

// MovieByID возвращает один фильм по идентификатору.
func (s *Service) MovieByID(ctx context.Context, id int64) (domain.Movie, error) {
	if id <= 0 {
		return domain.Movie{}, fmt.Errorf("некорректный идентификатор фильма %d: %w", id, domain.ErrInvalidArgument)
	}
	return s.movies.MovieByID(ctx, id)
}
