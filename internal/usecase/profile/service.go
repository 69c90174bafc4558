package profile

import (
	"context"
	"fmt"

	"trailer-api/internal/domain"
)

// Service отвечает за профиль пользователя: вход, описание вкусов
// и подборки по предпочтениям.
type Service struct {
	users      domain.UserRepo
	movies     domain.MovieRepo
	watchState domain.WatchStateRepo
	groupLimit int
}

// NewService создаёт сервис профиля. groupLimit ограничивает размер
// одной подборки по предпочтениям.
func NewService(users domain.UserRepo, movies domain.MovieRepo, watchState domain.WatchStateRepo, groupLimit int) *Service {
	return &Service{users: users, movies: movies, watchState: watchState, groupLimit: groupLimit}
}

// Login регистрирует пользователя или обновляет его профиль.
func (s *Service) Login(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ClerkUserID == "" {
		return domain.User{}, fmt.Errorf("пустой идентификатор пользователя: %w", domain.ErrInvalidArgument)
	}
	saved, err := s.users.UpsertUser(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("сохранение пользователя: %w", err)
	}
	return saved, nil
}

// Summary возвращает текстовое описание вкусов пользователя.
func (s *Service) Summary(ctx context.Context, clerkUserID string) (domain.UserSummary, error) {
	if clerkUserID == "" {
		return domain.UserSummary{}, fmt.Errorf("пустой идентификатор пользователя: %w", domain.ErrInvalidArgument)
	}
	return s.users.GetUserSummary(ctx, clerkUserID)
}

// PreferenceMovies строит подборки фильмов по языковым предпочтениям
// пользователя. watched == nil отключает фильтр по просмотру.
// Возвращает ErrNotFound, если предпочтения не заданы.
func (s *Service) PreferenceMovies(ctx context.Context, clerkUserID string, watched *bool) ([]domain.PreferenceGroup, error) {
	if clerkUserID == "" {
		return nil, fmt.Errorf("пустой идентификатор пользователя: %w", domain.ErrInvalidArgument)
	}
	prefs, err := s.users.GetUserPreferences(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}
	if len(prefs.Languages) == 0 {
		return nil, domain.ErrNotFound
	}

	groups := make([]domain.PreferenceGroup, 0, len(prefs.Languages))
	for _, lang := range prefs.Languages {
		movies, err := s.movies.ListPopularByLanguage(ctx, lang, s.groupLimit)
		if err != nil {
			return nil, fmt.Errorf("подборка по языку %s: %w", lang, err)
		}
		if len(movies) == 0 {
			continue
		}

		ids := make([]int64, 0, len(movies))
		for _, m := range movies {
			ids = append(ids, m.ID)
		}
		flags, err := s.watchState.WatchedFlags(ctx, clerkUserID, ids)
		if err != nil {
			return nil, fmt.Errorf("статус просмотра для подборки: %w", err)
		}

		picked := make([]domain.PreferredMovie, 0, len(movies))
		for _, m := range movies {
			isWatched := flags[m.ID]
			if watched != nil && isWatched != *watched {
				continue
			}
			picked = append(picked, domain.PreferredMovie{
				Movie:           m,
				PopularityScore: domain.PopularityScore(m),
				Watched:         isWatched,
			})
		}
		if len(picked) == 0 {
			continue
		}
		groups = append(groups, domain.PreferenceGroup{
			Title:  fmt.Sprintf("Popular in %s", lang),
			Movies: picked,
		})
	}
	return groups, nil
}
