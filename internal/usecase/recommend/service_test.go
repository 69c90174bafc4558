package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"trailer-api/internal/domain"
)

type stubStore struct {
	predictions []domain.PredictedScore
	movies      map[int64]domain.Movie
	watched     map[int64]bool

	predictionCalls int
	movieCalls      int
	watchCalls      int

	predictionErr error
	movieErr      error
	watchErr      error
}

func (s *stubStore) PredictionsForUser(context.Context, string) ([]domain.PredictedScore, error) {
	s.predictionCalls++
	return s.predictions, s.predictionErr
}

func (s *stubStore) MoviesByIDs(_ context.Context, ids []int64) (map[int64]domain.Movie, error) {
	s.movieCalls++
	if s.movieErr != nil {
		return nil, s.movieErr
	}
	found := make(map[int64]domain.Movie, len(ids))
	for _, id := range ids {
		if m, ok := s.movies[id]; ok {
			found[id] = m
		}
	}
	return found, nil
}

func (s *stubStore) MovieByID(context.Context, int64) (domain.Movie, error) {
	return domain.Movie{}, domain.ErrNotFound
}

func (s *stubStore) ListPopularByLanguage(context.Context, string, int) ([]domain.Movie, error) {
	return nil, nil
}

func (s *stubStore) ListRecentPopular(context.Context, time.Time, int) ([]domain.Movie, error) {
	return nil, nil
}

func (s *stubStore) ListUpcoming(context.Context, int) ([]domain.Movie, error) { return nil, nil }

func (s *stubStore) WatchedFlags(_ context.Context, _ string, ids []int64) (map[int64]bool, error) {
	s.watchCalls++
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	flags := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if w, ok := s.watched[id]; ok {
			flags[id] = w
		}
	}
	return flags, nil
}

func newTwoMovieStore() *stubStore {
	return &stubStore{
		predictions: []domain.PredictedScore{
			{ClerkUserID: "u1", MovieID: 10, Score: 0.8},
			{ClerkUserID: "u1", MovieID: 20, Score: 0.2},
		},
		movies: map[int64]domain.Movie{
			10: {ID: 10, Title: "Первый", Popularity: 50, VoteAverage: 7.0},
			20: {ID: 20, Title: "Второй", Popularity: 10, VoteAverage: 5.0},
		},
		watched: map[int64]bool{},
	}
}

func boolPtr(v bool) *bool { return &v }

func TestRecommendOrdersByFinalScore(t *testing.T) {
	store := newTwoMovieStore()
	service := NewService(store, store, store)

	records, err := service.Recommend(context.Background(), "u1", nil, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ожидали 2 записи, получили %d", len(records))
	}
	if records[0].ID != 10 || records[1].ID != 20 {
		t.Fatalf("ожидали порядок [10, 20], получили [%d, %d]", records[0].ID, records[1].ID)
	}
	if math.Abs(records[0].FinalScore-280.0) > 1e-9 {
		t.Fatalf("ожидали итоговую оценку 280.0, получили %v", records[0].FinalScore)
	}
	if math.Abs(records[1].FinalScore-5.0) > 1e-9 {
		t.Fatalf("ожидали итоговую оценку 5.0, получили %v", records[1].FinalScore)
	}
	if math.Abs(records[0].PredictedStarRating-4.0) > 1e-9 {
		t.Fatalf("ожидали звёздный рейтинг 4.0, получили %v", records[0].PredictedStarRating)
	}
	if records[0].Title != "Первый" {
		t.Fatalf("метаданные фильма должны сохраняться в записи")
	}
}

func TestRecommendWatchedFilter(t *testing.T) {
	store := newTwoMovieStore()
	store.watched[10] = true
	service := NewService(store, store, store)

	watchedOnly, err := service.Recommend(context.Background(), "u1", boolPtr(true), 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(watchedOnly) != 1 || watchedOnly[0].ID != 10 || !watchedOnly[0].Watched {
		t.Fatalf("ожидали только просмотренный фильм 10, получили %+v", watchedOnly)
	}

	unwatchedOnly, err := service.Recommend(context.Background(), "u1", boolPtr(false), 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(unwatchedOnly) != 1 || unwatchedOnly[0].ID != 20 || unwatchedOnly[0].Watched {
		t.Fatalf("ожидали только непросмотренный фильм 20, получили %+v", unwatchedOnly)
	}

	all, err := service.Recommend(context.Background(), "u1", nil, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("без фильтра ожидали обе записи, получили %d", len(all))
	}
}

func TestRecommendTruncatesToLimit(t *testing.T) {
	store := &stubStore{movies: map[int64]domain.Movie{}, watched: map[int64]bool{}}
	for i := int64(1); i <= 7; i++ {
		store.predictions = append(store.predictions, domain.PredictedScore{ClerkUserID: "u1", MovieID: i, Score: float64(i) / 10})
		store.movies[i] = domain.Movie{ID: i, Popularity: 10, VoteAverage: 6}
	}
	service := NewService(store, store, store)

	records, err := service.Recommend(context.Background(), "u1", nil, 3)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ожидали ровно 3 записи, получили %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].FinalScore < records[i].FinalScore {
			t.Fatalf("нарушен порядок убывания итоговой оценки")
		}
	}
	if records[0].ID != 7 {
		t.Fatalf("ожидали фильм 7 с максимальной оценкой первым, получили %d", records[0].ID)
	}
}

func TestRecommendBreaksTiesByMovieID(t *testing.T) {
	store := &stubStore{
		predictions: []domain.PredictedScore{
			{ClerkUserID: "u1", MovieID: 30, Score: 0.5},
			{ClerkUserID: "u1", MovieID: 10, Score: 0.5},
			{ClerkUserID: "u1", MovieID: 20, Score: 0.5},
		},
		movies: map[int64]domain.Movie{
			10: {ID: 10, Popularity: 10, VoteAverage: 6},
			20: {ID: 20, Popularity: 10, VoteAverage: 6},
			30: {ID: 30, Popularity: 10, VoteAverage: 6},
		},
		watched: map[int64]bool{},
	}
	service := NewService(store, store, store)

	records, err := service.Recommend(context.Background(), "u1", nil, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ожидали 3 записи, получили %d", len(records))
	}
	for i, want := range []int64{10, 20, 30} {
		if records[i].ID != want {
			t.Fatalf("при равных оценках ожидали порядок по возрастанию ID, позиция %d: %d", i, records[i].ID)
		}
	}
}

func TestRecommendZeroSignalsSortLast(t *testing.T) {
	store := &stubStore{
		predictions: []domain.PredictedScore{
			{ClerkUserID: "u1", MovieID: 1, Score: 0.9},
			{ClerkUserID: "u1", MovieID: 2, Score: 0.9},
		},
		movies: map[int64]domain.Movie{
			1: {ID: 1, Popularity: 0, VoteAverage: 8},
			2: {ID: 2, Popularity: 5, VoteAverage: 8},
		},
		watched: map[int64]bool{},
	}
	service := NewService(store, store, store)

	records, err := service.Recommend(context.Background(), "u1", nil, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("нулевая популярность не должна выбрасывать кандидата")
	}
	if records[1].ID != 1 || records[1].FinalScore != 0 {
		t.Fatalf("кандидат с нулевой оценкой должен быть последним, получили %+v", records[1])
	}
}

func TestRecommendEmptyPredictions(t *testing.T) {
	store := &stubStore{movies: map[int64]domain.Movie{}, watched: map[int64]bool{}}
	service := NewService(store, store, store)

	records, err := service.Recommend(context.Background(), "u1", nil, 10)
	if err != nil {
		t.Fatalf("пустые предсказания не ошибка: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("ожидали пустую выдачу, получили %d записей", len(records))
	}
}

func TestRecommendDropsMissingMetadata(t *testing.T) {
	store := newTwoMovieStore()
	store.predictions = append(store.predictions, domain.PredictedScore{ClerkUserID: "u1", MovieID: 99, Score: 0.99})
	service := NewService(store, store, store)

	records, err := service.Recommend(context.Background(), "u1", nil, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, rec := range records {
		if rec.ID == 99 {
			t.Fatalf("кандидат без записи в каталоге должен быть отброшен")
		}
	}
	if len(records) != 2 {
		t.Fatalf("остальные кандидаты должны сохраниться, получили %d", len(records))
	}
}

func TestRecommendInvalidLimit(t *testing.T) {
	store := newTwoMovieStore()
	service := NewService(store, store, store)

	for _, limit := range []int{0, -5} {
		_, err := service.Recommend(context.Background(), "u1", nil, limit)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("limit=%d: ожидали ErrInvalidArgument, получили %v", limit, err)
		}
	}
	if store.predictionCalls != 0 || store.movieCalls != 0 || store.watchCalls != 0 {
		t.Fatalf("при некорректном limit обращений к хранилищу быть не должно")
	}
}

func TestRecommendStorageFailure(t *testing.T) {
	store := newTwoMovieStore()
	store.predictionErr = fmt.Errorf("connect: %w", domain.ErrStorageUnavailable)
	service := NewService(store, store, store)

	_, err := service.Recommend(context.Background(), "u1", nil, 10)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("ожидали ErrStorageUnavailable, получили %v", err)
	}

	store = newTwoMovieStore()
	store.watchErr = fmt.Errorf("connect: %w", domain.ErrStorageUnavailable)
	service = NewService(store, store, store)

	_, err = service.Recommend(context.Background(), "u1", nil, 10)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("отказ акцессора статуса просмотра должен проваливать запрос, получили %v", err)
	}
}
