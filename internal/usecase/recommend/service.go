package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trailer-api/internal/domain"
	"trailer-api/internal/infra/metrics"
)

// DefaultLimit — размер выдачи, если вызывающая сторона не задала свой.
const DefaultLimit = 20

// Service строит персональную выдачу рекомендаций: объединяет предсказания
// модели с метаданными каталога и историей просмотров, считает итоговую
// оценку и возвращает упорядоченный список.
type Service struct {
	predictions domain.PredictionRepo
	movies      domain.MovieRepo
	watchState  domain.WatchStateRepo
}

// NewService создаёт сервис рекомендаций.
func NewService(predictions domain.PredictionRepo, movies domain.MovieRepo, watchState domain.WatchStateRepo) *Service {
	return &Service{predictions: predictions, movies: movies, watchState: watchState}
}

// Recommend возвращает до limit рекомендаций пользователя, отсортированных
// по убыванию итоговой оценки; равные оценки упорядочены по возрастанию
// идентификатора фильма. watched == nil отключает фильтр по просмотру.
func (s *Service) Recommend(ctx context.Context, clerkUserID string, watched *bool, limit int) ([]domain.RankedRecommendation, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit должен быть положительным, получен %d: %w", limit, domain.ErrInvalidArgument)
	}
	if clerkUserID == "" {
		return nil, fmt.Errorf("пустой идентификатор пользователя: %w", domain.ErrInvalidArgument)
	}

	metrics.IncRecommendForUser(clerkUserID)
	defer metrics.ObserveRecommendBuild(time.Now())

	predictions, err := s.predictions.PredictionsForUser(ctx, clerkUserID)
	if err != nil {
		return nil, fmt.Errorf("получение предсказаний: %w", err)
	}
	if len(predictions) == 0 {
		metrics.RecommendEmptyTotal.Inc()
		return nil, nil
	}

	movieIDs := make([]int64, 0, len(predictions))
	for _, p := range predictions {
		movieIDs = append(movieIDs, p.MovieID)
	}

	// Метаданные и флаги просмотра не зависят друг от друга,
	// поэтому забираются параллельно.
	var (
		wg         sync.WaitGroup
		moviesByID map[int64]domain.Movie
		moviesErr  error
		flags      map[int64]bool
		flagsErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		moviesByID, moviesErr = s.movies.MoviesByIDs(ctx, movieIDs)
	}()
	go func() {
		defer wg.Done()
		flags, flagsErr = s.watchState.WatchedFlags(ctx, clerkUserID, movieIDs)
	}()
	wg.Wait()
	if moviesErr != nil {
		return nil, fmt.Errorf("получение фильмов: %w", moviesErr)
	}
	if flagsErr != nil {
		return nil, fmt.Errorf("получение статуса просмотра: %w", flagsErr)
	}

	candidates := make([]scoredCandidate, 0, len(predictions))
	for _, p := range predictions {
		movie, ok := moviesByID[p.MovieID]
		if !ok {
			// Фильм мог быть удалён из каталога после расчёта предсказаний.
			continue
		}
		isWatched := flags[p.MovieID]
		if watched != nil && isWatched != *watched {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			movie:     movie,
			predicted: p.Score,
			final:     domain.FinalScore(p.Score, movie.Popularity, movie.VoteAverage),
			watched:   isWatched,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].final != candidates[j].final {
			return candidates[i].final > candidates[j].final
		}
		return candidates[i].movie.ID < candidates[j].movie.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if len(candidates) == 0 {
		metrics.RecommendEmptyTotal.Inc()
	}

	return assemble(candidates), nil
}
