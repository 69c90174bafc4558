package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"trailer-api/internal/domain"
)

type stubUserStore struct {
	prefs        domain.UserPreferences
	prefsErr     error
	moviesByLang map[string][]domain.Movie
	watched      map[int64]bool
	upserted     []domain.User
	upsertErr    error
}

func (s *stubUserStore) UpsertUser(_ context.Context, user domain.User) (domain.User, error) {
	if s.upsertErr != nil {
		return domain.User{}, s.upsertErr
	}
	s.upserted = append(s.upserted, user)
	return user, nil
}

func (s *stubUserStore) GetUserSummary(context.Context, string) (domain.UserSummary, error) {
	return domain.UserSummary{}, domain.ErrNotFound
}

func (s *stubUserStore) GetUserPreferences(context.Context, string) (domain.UserPreferences, error) {
	if s.prefsErr != nil {
		return domain.UserPreferences{}, s.prefsErr
	}
	return s.prefs, nil
}

func (s *stubUserStore) MoviesByIDs(context.Context, []int64) (map[int64]domain.Movie, error) {
	return nil, nil
}

func (s *stubUserStore) MovieByID(context.Context, int64) (domain.Movie, error) {
	return domain.Movie{}, domain.ErrNotFound
}

func (s *stubUserStore) ListPopularByLanguage(_ context.Context, language string, _ int) ([]domain.Movie, error) {
	return s.moviesByLang[language], nil
}

func (s *stubUserStore) ListRecentPopular(context.Context, time.Time, int) ([]domain.Movie, error) {
	return nil, nil
}

func (s *stubUserStore) ListUpcoming(context.Context, int) ([]domain.Movie, error) { return nil, nil }

func (s *stubUserStore) WatchedFlags(_ context.Context, _ string, ids []int64) (map[int64]bool, error) {
	flags := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if w, ok := s.watched[id]; ok {
			flags[id] = w
		}
	}
	return flags, nil
}

func boolPtr(v bool) *bool { return &v }

func TestPreferenceMoviesGroupsByLanguage(t *testing.T) {
	store := &stubUserStore{
		prefs: domain.UserPreferences{ClerkUserID: "u1", Languages: []string{"ta", "hi"}},
		moviesByLang: map[string][]domain.Movie{
			"ta": {{ID: 1, Popularity: 10, VoteAverage: 7}},
			"hi": {{ID: 2, Popularity: 20, VoteAverage: 6}},
		},
		watched: map[int64]bool{},
	}
	service := NewService(store, store, store, 20)

	groups, err := service.PreferenceMovies(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("ожидали 2 подборки, получили %d", len(groups))
	}
	if groups[0].Title != "Popular in ta" {
		t.Fatalf("неожиданный заголовок подборки: %q", groups[0].Title)
	}
	if groups[0].Movies[0].PopularityScore != 70 {
		t.Fatalf("ожидали popularity_score 70, получили %v", groups[0].Movies[0].PopularityScore)
	}
}

func TestPreferenceMoviesWatchedFilter(t *testing.T) {
	store := &stubUserStore{
		prefs: domain.UserPreferences{ClerkUserID: "u1", Languages: []string{"ta"}},
		moviesByLang: map[string][]domain.Movie{
			"ta": {
				{ID: 1, Popularity: 10, VoteAverage: 7},
				{ID: 2, Popularity: 20, VoteAverage: 6},
			},
		},
		watched: map[int64]bool{1: true},
	}
	service := NewService(store, store, store, 20)

	groups, err := service.PreferenceMovies(context.Background(), "u1", boolPtr(true))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Movies) != 1 || groups[0].Movies[0].ID != 1 {
		t.Fatalf("ожидали только просмотренный фильм 1, получили %+v", groups)
	}
}

func TestPreferenceMoviesNoPreferences(t *testing.T) {
	store := &stubUserStore{prefsErr: domain.ErrNotFound}
	service := NewService(store, store, store, 20)

	_, err := service.PreferenceMovies(context.Background(), "u1", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestLoginRequiresClerkID(t *testing.T) {
	store := &stubUserStore{}
	service := NewService(store, store, store, 20)

	_, err := service.Login(context.Background(), domain.User{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("ожидали ErrInvalidArgument, получили %v", err)
	}

	saved, err := service.Login(context.Background(), domain.User{ClerkUserID: "u1", Username: "john"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if saved.Username != "john" || len(store.upserted) != 1 {
		t.Fatalf("пользователь должен сохраняться через репозиторий")
	}
}

func TestLoginDuplicateUsername(t *testing.T) {
	store := &stubUserStore{upsertErr: domain.ErrUsernameTaken}
	service := NewService(store, store, store, 20)

	_, err := service.Login(context.Background(), domain.User{ClerkUserID: "u2", Username: "john"})
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("ожидали ErrUsernameTaken, получили %v", err)
	}
}
