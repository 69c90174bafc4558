package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailer-api/internal/domain"
	"trailer-api/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.MovieRepo      = (*Postgres)(nil)
	_ domain.PredictionRepo = (*Postgres)(nil)
	_ domain.WatchStateRepo = (*Postgres)(nil)
	_ domain.RatingRepo     = (*Postgres)(nil)
	_ domain.WatchlistRepo  = (*Postgres)(nil)
	_ domain.UserRepo       = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// storageErr помечает отказ хранилища, сохраняя исходную причину.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorageUnavailable, err))
}

const movieColumns = "id, title, overview, poster_path, release_date, original_language, popularity, vote_count, vote_average"

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var (
		movie       domain.Movie
		overview    sql.NullString
		posterPath  sql.NullString
		releaseDate sql.NullTime
	)
	err := row.Scan(&movie.ID, &movie.Title, &overview, &posterPath, &releaseDate, &movie.OriginalLanguage, &movie.Popularity, &movie.VoteCount, &movie.VoteAverage)
	if err != nil {
		return domain.Movie{}, err
	}
	if overview.Valid {
		movie.Overview = overview.String
	}
	if posterPath.Valid {
		movie.PosterPath = posterPath.String
	}
	if releaseDate.Valid {
		movie.ReleaseDate = releaseDate.Time
	}
	return movie, nil
}

// MoviesByIDs реализует domain.MovieRepo. Идентификаторы без записи
// в каталоге молча опускаются.
func (p *Postgres) MoviesByIDs(ctx context.Context, ids []int64) (map[int64]domain.Movie, error) {
	found := make(map[int64]domain.Movie, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+movieColumns+` FROM movies WHERE id = ANY($1)
`, ids)
	metrics.ObserveStorageQuery("movies_by_ids", start, err)
	if err != nil {
		return nil, storageErr("выборка фильмов", err)
	}
	defer rows.Close()
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, storageErr("чтение фильма", err)
		}
		found[movie.ID] = movie
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("выборка фильмов", err)
	}
	return found, nil
}

// MovieByID возвращает фильм по идентификатору.
func (p *Postgres) MovieByID(ctx context.Context, id int64) (domain.Movie, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	movie, err := scanMovie(p.pool.QueryRow(ctx, `
SELECT `+movieColumns+` FROM movies WHERE id = $1
`, id))
	metrics.ObserveStorageQuery("movie_by_id", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Movie{}, fmt.Errorf("фильм %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Movie{}, storageErr("выборка фильма", err)
	}
	return movie, nil
}

// ListPopularByLanguage возвращает вышедшие фильмы языка по убыванию популярности.
func (p *Postgres) ListPopularByLanguage(ctx context.Context, language string, limit int) ([]domain.Movie, error) {
	return p.listMovies(ctx, "movies_popular", `
SELECT `+movieColumns+` FROM movies
WHERE original_language = $1 AND release_date < now()
ORDER BY popularity DESC
LIMIT $2
`, language, limit)
}

// ListRecentPopular возвращает популярные фильмы, вышедшие после since.
func (p *Postgres) ListRecentPopular(ctx context.Context, since time.Time, limit int) ([]domain.Movie, error) {
	return p.listMovies(ctx, "movies_recent", `
SELECT `+movieColumns+` FROM movies
WHERE release_date >= $1 AND release_date < now()
ORDER BY popularity DESC
LIMIT $2
`, since, limit)
}

// ListUpcoming возвращает ещё не вышедшие фильмы по возрастанию даты релиза.
func (p *Postgres) ListUpcoming(ctx context.Context, limit int) ([]domain.Movie, error) {
	return p.listMovies(ctx, "movies_upcoming", `
SELECT `+movieColumns+` FROM movies
WHERE release_date >= now()
ORDER BY release_date ASC
LIMIT $1
`, limit)
}

func (p *Postgres) listMovies(ctx context.Context, operation, query string, args ...any) ([]domain.Movie, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveStorageQuery(operation, start, err)
	if err != nil {
		return nil, storageErr("выборка фильмов", err)
	}
	defer rows.Close()
	var movies []domain.Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, storageErr("чтение фильма", err)
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("выборка фильмов", err)
	}
	return movies, nil
}

// PredictionsForUser реализует domain.PredictionRepo. Пустой срез — не ошибка.
func (p *Postgres) PredictionsForUser(ctx context.Context, clerkUserID string) ([]domain.PredictedScore, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT clerk_user_id, movie_id, predicted_score FROM predicted_scores WHERE clerk_user_id = $1
`, clerkUserID)
	metrics.ObserveStorageQuery("predictions_for_user", start, err)
	if err != nil {
		return nil, storageErr("выборка предсказаний", err)
	}
	defer rows.Close()
	var predictions []domain.PredictedScore
	for rows.Next() {
		var prediction domain.PredictedScore
		if err := rows.Scan(&prediction.ClerkUserID, &prediction.MovieID, &prediction.Score); err != nil {
			return nil, storageErr("чтение предсказания", err)
		}
		predictions = append(predictions, prediction)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("выборка предсказаний", err)
	}
	return predictions, nil
}

// WatchedFlags реализует domain.WatchStateRepo: фильм считается просмотренным,
// если у пользователя есть оценка или запись в вотчлисте.
func (p *Postgres) WatchedFlags(ctx context.Context, clerkUserID string, movieIDs []int64) (map[int64]bool, error) {
	flags := make(map[int64]bool, len(movieIDs))
	if len(movieIDs) == 0 {
		return flags, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT movie_id FROM user_ratings WHERE clerk_user_id = $1 AND movie_id = ANY($2)
UNION
SELECT movie_id FROM watchlist WHERE clerk_user_id = $1 AND movie_id = ANY($2)
`, clerkUserID, movieIDs)
	metrics.ObserveStorageQuery("watched_flags", start, err)
	if err != nil {
		return nil, storageErr("выборка статуса просмотра", err)
	}
	defer rows.Close()
	for rows.Next() {
		var movieID int64
		if err := rows.Scan(&movieID); err != nil {
			return nil, storageErr("чтение статуса просмотра", err)
		}
		flags[movieID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("выборка статуса просмотра", err)
	}
	return flags, nil
}

// UpsertRating реализует domain.RatingRepo.
func (p *Postgres) UpsertRating(ctx context.Context, clerkUserID string, movieID int64, rating float64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO user_ratings (clerk_user_id, movie_id, rating, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (clerk_user_id, movie_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()
`, clerkUserID, movieID, rating)
	metrics.ObserveStorageQuery("rating_upsert", start, err)
	if err != nil {
		return storageErr("сохранение оценки", err)
	}
	return nil
}

// ListUserRatings возвращает оценки пользователя вместе с метаданными фильмов.
func (p *Postgres) ListUserRatings(ctx context.Context, clerkUserID string) ([]domain.RatedMovie, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT r.id, r.clerk_user_id, r.movie_id, r.rating, r.created_at, r.updated_at,
       m.id, m.title, m.overview, m.poster_path, m.release_date, m.original_language, m.popularity, m.vote_count, m.vote_average,
       EXISTS (SELECT 1 FROM watchlist w WHERE w.clerk_user_id = r.clerk_user_id AND w.movie_id = r.movie_id) AS watchlisted
FROM user_ratings r
JOIN movies m ON m.id = r.movie_id
WHERE r.clerk_user_id = $1
ORDER BY r.updated_at DESC
`, clerkUserID)
	metrics.ObserveStorageQuery("ratings_for_user", start, err)
	if err != nil {
		return nil, storageErr("выборка оценок", err)
	}
	defer rows.Close()
	var rated []domain.RatedMovie
	for rows.Next() {
		var (
			item        domain.RatedMovie
			overview    sql.NullString
			posterPath  sql.NullString
			releaseDate sql.NullTime
		)
		err := rows.Scan(
			&item.Rating.ID, &item.Rating.ClerkUserID, &item.Rating.MovieID, &item.Rating.Rating, &item.Rating.CreatedAt, &item.Rating.UpdatedAt,
			&item.Movie.ID, &item.Movie.Title, &overview, &posterPath, &releaseDate, &item.Movie.OriginalLanguage, &item.Movie.Popularity, &item.Movie.VoteCount, &item.Movie.VoteAverage,
			&item.Watchlisted,
		)
		if err != nil {
			return nil, storageErr("чтение оценки", err)
		}
		if overview.Valid {
			item.Movie.Overview = overview.String
		}
		if posterPath.Valid {
			item.Movie.PosterPath = posterPath.String
		}
		if releaseDate.Valid {
			item.Movie.ReleaseDate = releaseDate.Time
		}
		rated = append(rated, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("выборка оценок", err)
	}
	return rated, nil
}

// AddToWatchlist реализует domain.WatchlistRepo.
func (p *Postgres) AddToWatchlist(ctx context.Context, clerkUserID string, movieID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO watchlist (clerk_user_id, movie_id, created_at)
VALUES ($1, $2, now())
ON CONFLICT (clerk_user_id, movie_id) DO UPDATE SET created_at = now()
`, clerkUserID, movieID)
	metrics.ObserveStorageQuery("watchlist_add", start, err)
	if err != nil {
		return storageErr("добавление в вотчлист", err)
	}
	return nil
}

// RemoveFromWatchlist удаляет фильм из вотчлиста; возвращает false,
// если записи не было.
func (p *Postgres) RemoveFromWatchlist(ctx context.Context, clerkUserID string, movieID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM watchlist WHERE clerk_user_id = $1 AND movie_id = $2
`, clerkUserID, movieID)
	metrics.ObserveStorageQuery("watchlist_remove", start, err)
	if err != nil {
		return false, storageErr("удаление из вотчлиста", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListWatchlist возвращает вотчлист пользователя вместе с метаданными фильмов.
func (p *Postgres) ListWatchlist(ctx context.Context, clerkUserID string) ([]domain.WatchlistEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT w.id, w.clerk_user_id, w.movie_id, w.created_at,
       m.id, m.title, m.overview, m.poster_path, m.release_date, m.original_language, m.popularity, m.vote_count, m.vote_average
FROM watchlist w
JOIN movies m ON m.id = w.movie_id
WHERE w.clerk_user_id = $1
ORDER BY w.created_at DESC
`, clerkUserID)
	metrics.ObserveStorageQuery("watchlist_for_user", start, err)
	if err != nil {
		return nil, storageErr("выборка вотчлиста", err)
	}
	defer rows.Close()
	var entries []domain.WatchlistEntry
	for rows.Next() {
		var (
			entry       domain.WatchlistEntry
			overview    sql.NullString
			posterPath  sql.NullString
			releaseDate sql.NullTime
		)
		err := rows.Scan(
			&entry.ID, &entry.ClerkUserID, &entry.MovieID, &entry.CreatedAt,
			&entry.Movie.ID, &entry.Movie.Title, &overview, &posterPath, &releaseDate, &entry.Movie.OriginalLanguage, &entry.Movie.Popularity, &entry.Movie.VoteCount, &entry.Movie.VoteAverage,
		)
		if err != nil {
			return nil, storageErr("чтение вотчлиста", err)
		}
		if overview.Valid {
			entry.Movie.Overview = overview.String
		}
		if posterPath.Valid {
			entry.Movie.PosterPath = posterPath.String
		}
		if releaseDate.Valid {
			entry.Movie.ReleaseDate = releaseDate.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("выборка вотчлиста", err)
	}
	return entries, nil
}

// UpsertUser реализует domain.UserRepo. Возвращает ErrUsernameTaken,
// если имя пользователя занято другим аккаунтом.
func (p *Postgres) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		saved     domain.User
		email     sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
		imageURL  sql.NullString
		username  sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (clerk_user_id, email, first_name, last_name, image_url, username)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''))
ON CONFLICT (clerk_user_id) DO UPDATE SET
    email = COALESCE(EXCLUDED.email, users.email),
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    image_url = EXCLUDED.image_url,
    username = COALESCE(EXCLUDED.username, users.username),
    updated_at = now()
RETURNING clerk_user_id, email, first_name, last_name, image_url, username, created_at, updated_at
`, user.ClerkUserID, user.Email, user.FirstName, user.LastName, user.ImageURL, user.Username).
		Scan(&saved.ClerkUserID, &email, &firstName, &lastName, &imageURL, &username, &saved.CreatedAt, &saved.UpdatedAt)
	metrics.ObserveStorageQuery("users_upsert", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "users_username_key" {
			return domain.User{}, fmt.Errorf("имя %q: %w", user.Username, domain.ErrUsernameTaken)
		}
		return domain.User{}, storageErr("сохранение пользователя", err)
	}
	if email.Valid {
		saved.Email = email.String
	}
	if firstName.Valid {
		saved.FirstName = firstName.String
	}
	if lastName.Valid {
		saved.LastName = lastName.String
	}
	if imageURL.Valid {
		saved.ImageURL = imageURL.String
	}
	if username.Valid {
		saved.Username = username.String
	}
	return saved, nil
}

// GetUserSummary возвращает описание вкусов пользователя.
func (p *Postgres) GetUserSummary(ctx context.Context, clerkUserID string) (domain.UserSummary, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	summary := domain.UserSummary{ClerkUserID: clerkUserID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT summary FROM user_summaries WHERE clerk_user_id = $1
`, clerkUserID).Scan(&summary.Summary)
	metrics.ObserveStorageQuery("user_summary", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserSummary{}, fmt.Errorf("описание пользователя %s: %w", clerkUserID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.UserSummary{}, storageErr("выборка описания", err)
	}
	return summary, nil
}

// GetUserPreferences возвращает языковые предпочтения пользователя.
func (p *Postgres) GetUserPreferences(ctx context.Context, clerkUserID string) (domain.UserPreferences, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	prefs := domain.UserPreferences{ClerkUserID: clerkUserID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT preferred_languages FROM user_preferences WHERE clerk_user_id = $1
`, clerkUserID).Scan(&prefs.Languages)
	metrics.ObserveStorageQuery("user_preferences", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserPreferences{}, fmt.Errorf("предпочтения пользователя %s: %w", clerkUserID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.UserPreferences{}, storageErr("выборка предпочтений", err)
	}
	return prefs, nil
}
