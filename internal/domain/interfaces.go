package domain

import (
	"context"
	"time"
)

// MovieRepo читает метаданные фильмов.
type MovieRepo interface {
	// MoviesByIDs возвращает найденные фильмы по набору идентификаторов.
	// Идентификаторы без записи в каталоге молча опускаются.
	MoviesByIDs(ctx context.Context, ids []int64) (map[int64]Movie, error)
	MovieByID(ctx context.Context, id int64) (Movie, error)
	ListPopularByLanguage(ctx context.Context, language string, limit int) ([]Movie, error)
	ListRecentPopular(ctx context.Context, since time.Time, limit int) ([]Movie, error)
	ListUpcoming(ctx context.Context, limit int) ([]Movie, error)
}

// PredictionRepo читает предрассчитанные оценки релевантности.
type PredictionRepo interface {
	// PredictionsForUser возвращает все предсказания пользователя.
	// Пустой срез — не ошибка.
	PredictionsForUser(ctx context.Context, clerkUserID string) ([]PredictedScore, error)
}

// WatchStateRepo возвращает признак просмотра по истории оценок и вотчлиста.
type WatchStateRepo interface {
	// WatchedFlags возвращает флаги просмотра для набора фильмов.
	// Фильм без записи в истории считается непросмотренным.
	WatchedFlags(ctx context.Context, clerkUserID string, movieIDs []int64) (map[int64]bool, error)
}

// RatingRepo управляет пользовательскими оценками.
type RatingRepo interface {
	UpsertRating(ctx context.Context, clerkUserID string, movieID int64, rating float64) error
	ListUserRatings(ctx context.Context, clerkUserID string) ([]RatedMovie, error)
}

// WatchlistRepo управляет списком «посмотреть позже».
type WatchlistRepo interface {
	AddToWatchlist(ctx context.Context, clerkUserID string, movieID int64) error
	RemoveFromWatchlist(ctx context.Context, clerkUserID string, movieID int64) (bool, error)
	ListWatchlist(ctx context.Context, clerkUserID string) ([]WatchlistEntry, error)
}

// UserRepo управляет пользователями и их профильными данными.
type UserRepo interface {
	UpsertUser(ctx context.Context, user User) (User, error)
	GetUserSummary(ctx context.Context, clerkUserID string) (UserSummary, error)
	GetUserPreferences(ctx context.Context, clerkUserID string) (UserPreferences, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
