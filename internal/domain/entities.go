package domain

import "time"

// Movie описывает фильм из каталога. Каталог наполняется внешним
// сборщиком данных, внутри сервиса фильмы только читаются.
type Movie struct {
	ID               int64
	Title            string
	Overview         string
	PosterPath       string
	ReleaseDate      time.Time
	OriginalLanguage string
	Popularity       float64
	VoteCount        int
	VoteAverage      float64
}

// PredictedScore хранит предрассчитанную офлайн-моделью оценку
// релевантности фильма для пользователя. Пара (пользователь, фильм) уникальна.
type PredictedScore struct {
	ClerkUserID string
	MovieID     int64
	Score       float64
}

// RankedRecommendation — итоговая позиция выдачи рекомендаций.
// Не сохраняется в БД и живёт только в рамках одного запроса.
type RankedRecommendation struct {
	Movie
	PredictedScore      float64
	PredictedStarRating float64
	FinalScore          float64
	Watched             bool
}

// Rating хранит пользовательскую оценку фильма по шкале 0..5 с шагом 0.5.
type Rating struct {
	ID          int64
	ClerkUserID string
	MovieID     int64
	Rating      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RatedMovie — оценка вместе с метаданными фильма для выдачи истории оценок.
type RatedMovie struct {
	Rating      Rating
	Movie       Movie
	Watchlisted bool
}

// WatchlistEntry описывает фильм в списке «посмотреть позже».
type WatchlistEntry struct {
	ID          int64
	ClerkUserID string
	MovieID     int64
	CreatedAt   time.Time
	Movie       Movie
}

// User описывает пользователя, авторизованного через Clerk.
type User struct {
	ClerkUserID string
	Email       string
	FirstName   string
	LastName    string
	ImageURL    string
	Username    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserSummary содержит текстовое описание вкусов пользователя,
// подготовленное офлайн-пайплайном.
type UserSummary struct {
	ClerkUserID string
	Summary     string
}

// UserPreferences хранит языковые предпочтения пользователя.
type UserPreferences struct {
	ClerkUserID string
	Languages   []string
}

// PreferredMovie — фильм в подборке по предпочтениям.
type PreferredMovie struct {
	Movie
	PopularityScore float64
	Watched         bool
}

// PreferenceGroup — именованная подборка фильмов по одному предпочтению.
type PreferenceGroup struct {
	Title  string
	Movies []PreferredMovie
}
