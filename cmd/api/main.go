package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"trailer-api/internal/adapters/repo"
	"trailer-api/internal/domain"
	"trailer-api/internal/infra/cache"
	"trailer-api/internal/infra/config"
	"trailer-api/internal/infra/db"
	httpinfra "trailer-api/internal/infra/http"
	"trailer-api/internal/infra/metrics"
	"trailer-api/internal/infra/queue"
	"trailer-api/internal/usecase/catalog"
	"trailer-api/internal/usecase/library"
	"trailer-api/internal/usecase/profile"
	"trailer-api/internal/usecase/recommend"
)

func main() {
	cfg := config.Load()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	var recoCache domain.Cache
	if redisClient != nil {
		recoCache = cache.NewRedis(redisClient)
	}

	var writeQueue domain.WriteQueue
	switch {
	case cfg.RabbitURL != "":
		rabbit, err := queue.NewRabbitWriteQueue(cfg.RabbitURL, cfg.Queues.Writes)
		if err != nil {
			log.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		writeQueue = rabbit
	case redisClient != nil:
		writeQueue = queue.NewRedisWriteQueue(redisClient, cfg.Queues.Writes)
	default:
		log.Fatal().Msg("api: не настроен транспорт очереди (RABBITMQ_URL или REDIS_ADDR)")
	}

	recommendService := recommend.NewService(repoAdapter, repoAdapter, repoAdapter)
	catalogService := catalog.NewService(repoAdapter, cfg.Catalog.Language, cfg.Catalog.PopularLimit, cfg.Catalog.RecentWindowDays)
	libraryService := library.NewService(writeQueue, repoAdapter, repoAdapter)
	profileService := profile.NewService(repoAdapter, repoAdapter, repoAdapter, cfg.Reco.PreferenceLimit)

	server := httpinfra.NewServer(log.With().Str("component", "http").Logger())
	r := server.Router
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Movie Trailer API is running!"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/movies", func(w http.ResponseWriter, r *http.Request) {
		movies, err := catalogService.Popular(r.Context())
		if err != nil {
			writeDomainError(w, err, "api: популярные фильмы")
			return
		}
		writeJSON(w, http.StatusOK, toMovieResponses(movies))
	})

	r.Get("/movies/popular/recent", func(w http.ResponseWriter, r *http.Request) {
		movies, err := catalogService.RecentPopular(r.Context())
		if err != nil {
			writeDomainError(w, err, "api: недавние фильмы")
			return
		}
		writeJSON(w, http.StatusOK, toMovieResponses(movies))
	})

	r.Get("/movies/upcoming", func(w http.ResponseWriter, r *http.Request) {
		movies, err := catalogService.Upcoming(r.Context())
		if err != nil {
			writeDomainError(w, err, "api: предстоящие фильмы")
			return
		}
		writeJSON(w, http.StatusOK, toMovieResponses(movies))
	})

	r.Get("/movies/{movieID}", func(w http.ResponseWriter, r *http.Request) {
		movieID, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "movie id must be an integer")
			return
		}
		movie, err := catalogService.MovieByID(r.Context(), movieID)
		if err != nil {
			writeDomainError(w, err, "api: фильм по идентификатору")
			return
		}
		writeJSON(w, http.StatusOK, toMovieResponse(movie))
	})

	r.Get("/recommendations/{clerkUserID}", func(w http.ResponseWriter, r *http.Request) {
		clerkUserID := chi.URLParam(r, "clerkUserID")
		watched, watchedKey, err := parseWatchedFilter(r.URL.Query().Get("watched"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "watched must be true or false")
			return
		}
		limit := cfg.Reco.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
		}

		cacheKey := fmt.Sprintf("reco:%s:%s:%d", clerkUserID, watchedKey, limit)
		if recoCache != nil {
			if cached, err := recoCache.Get(r.Context(), cacheKey); err == nil {
				metrics.IncRecommendCache(true)
				writeRawJSON(w, http.StatusOK, cached)
				return
			}
			metrics.IncRecommendCache(false)
		}

		records, err := recommendService.Recommend(r.Context(), clerkUserID, watched, limit)
		if err != nil {
			writeDomainError(w, err, "api: рекомендации")
			return
		}
		payload, err := json.Marshal(toRecommendationResponses(records))
		if err != nil {
			log.Error().Err(err).Msg("api: сериализация рекомендаций")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if recoCache != nil {
			if err := recoCache.Set(r.Context(), cacheKey, payload, cfg.Reco.CacheTTL); err != nil {
				log.Debug().Err(err).Msg("api: не удалось закэшировать рекомендации")
			}
		}
		writeRawJSON(w, http.StatusOK, payload)
	})

	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user, err := profileService.Login(r.Context(), domain.User{
			ClerkUserID: req.ClerkUserID,
			Email:       req.Email,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			ImageURL:    req.ImageURL,
			Username:    req.Username,
		})
		if err != nil {
			if errors.Is(err, domain.ErrUsernameTaken) {
				writeError(w, http.StatusConflict, "username already taken")
				return
			}
			writeDomainError(w, err, "api: вход пользователя")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message":       "login successful",
			"status":        "ok",
			"clerk_user_id": user.ClerkUserID,
			"username":      user.Username,
		})
	})

	r.Post("/ratings", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req ratingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		job, err := libraryService.SubmitRating(r.Context(), req.ClerkUserID, req.MovieID, req.Rating)
		if err != nil {
			writeDomainError(w, err, "api: постановка оценки")
			return
		}
		writeJSON(w, http.StatusAccepted, jobAcceptedResponse{Status: "processing", JobID: job.ID})
	})

	r.Get("/ratings/{clerkUserID}", func(w http.ResponseWriter, r *http.Request) {
		rated, err := libraryService.UserRatings(r.Context(), chi.URLParam(r, "clerkUserID"))
		if err != nil {
			writeDomainError(w, err, "api: оценки пользователя")
			return
		}
		responses := make([]ratedMovieResponse, 0, len(rated))
		for _, item := range rated {
			responses = append(responses, toRatedMovieResponse(item))
		}
		writeJSON(w, http.StatusOK, responses)
	})

	r.Post("/watchlist", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req watchlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		job, err := libraryService.SubmitWatchlistAdd(r.Context(), req.ClerkUserID, req.MovieID)
		if err != nil {
			writeDomainError(w, err, "api: добавление в вотчлист")
			return
		}
		writeJSON(w, http.StatusAccepted, jobAcceptedResponse{Status: "processing", JobID: job.ID})
	})

	r.Delete("/watchlist", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req watchlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		job, err := libraryService.SubmitWatchlistRemove(r.Context(), req.ClerkUserID, req.MovieID)
		if err != nil {
			writeDomainError(w, err, "api: удаление из вотчлиста")
			return
		}
		writeJSON(w, http.StatusAccepted, jobAcceptedResponse{Status: "processing", JobID: job.ID})
	})

	r.Get("/watchlist/{clerkUserID}", func(w http.ResponseWriter, r *http.Request) {
		entries, err := libraryService.UserWatchlist(r.Context(), chi.URLParam(r, "clerkUserID"))
		if err != nil {
			writeDomainError(w, err, "api: вотчлист пользователя")
			return
		}
		responses := make([]watchlistEntryResponse, 0, len(entries))
		for _, entry := range entries {
			responses = append(responses, toWatchlistEntryResponse(entry))
		}
		writeJSON(w, http.StatusOK, responses)
	})

	r.Get("/user_summary/{clerkUserID}", func(w http.ResponseWriter, r *http.Request) {
		summary, err := profileService.Summary(r.Context(), chi.URLParam(r, "clerkUserID"))
		if err != nil {
			writeDomainError(w, err, "api: описание пользователя")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"user_id": summary.ClerkUserID,
			"summary": summary.Summary,
		})
	})

	r.Get("/user_preferences_movies/{clerkUserID}", func(w http.ResponseWriter, r *http.Request) {
		watched, _, err := parseWatchedFilter(r.URL.Query().Get("watched"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "watched must be true or false")
			return
		}
		groups, err := profileService.PreferenceMovies(r.Context(), chi.URLParam(r, "clerkUserID"), watched)
		if err != nil {
			writeDomainError(w, err, "api: подборки по предпочтениям")
			return
		}
		responses := make([]preferenceGroupResponse, 0, len(groups))
		for _, group := range groups {
			responses = append(responses, toPreferenceGroupResponse(group))
		}
		writeJSON(w, http.StatusOK, responses)
	})

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")
	go func() {
		log.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// parseWatchedFilter разбирает параметр watched: пустое значение отключает фильтр.
func parseWatchedFilter(raw string) (*bool, string, error) {
	if raw == "" {
		return nil, "any", nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, "", err
	}
	return &value, strconv.FormatBool(value), nil
}

func writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid argument")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrStorageUnavailable):
		log.Error().Err(err).Msg(logMsg)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		log.Error().Err(err).Msg(logMsg)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type loginRequest struct {
	ClerkUserID string `json:"clerkUserId"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	ImageURL    string `json:"imageUrl"`
	Username    string `json:"username"`
}

type ratingRequest struct {
	ClerkUserID string  `json:"clerk_user_id"`
	MovieID     int64   `json:"movie_id"`
	Rating      float64 `json:"rating"`
}

type watchlistRequest struct {
	ClerkUserID string `json:"clerk_user_id"`
	MovieID     int64  `json:"movie_id"`
}

type jobAcceptedResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

type movieResponse struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path,omitempty"`
	ReleaseDate      string  `json:"release_date"`
	OriginalLanguage string  `json:"original_language"`
	Popularity       float64 `json:"popularity"`
	VoteCount        int     `json:"vote_count"`
	VoteAverage      float64 `json:"vote_average"`
}

func toMovieResponse(m domain.Movie) movieResponse {
	release := ""
	if !m.ReleaseDate.IsZero() {
		release = m.ReleaseDate.Format("2006-01-02")
	}
	return movieResponse{
		ID:               m.ID,
		Title:            m.Title,
		Overview:         m.Overview,
		PosterPath:       m.PosterPath,
		ReleaseDate:      release,
		OriginalLanguage: m.OriginalLanguage,
		Popularity:       m.Popularity,
		VoteCount:        m.VoteCount,
		VoteAverage:      m.VoteAverage,
	}
}

func toMovieResponses(movies []domain.Movie) []movieResponse {
	responses := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		responses = append(responses, toMovieResponse(m))
	}
	return responses
}

type recommendationResponse struct {
	movieResponse
	PredictedScore      float64 `json:"predicted_score"`
	PredictedStarRating float64 `json:"predicted_star_rating"`
	FinalScore          float64 `json:"final_score"`
	Watched             bool    `json:"watched"`
}

func toRecommendationResponses(records []domain.RankedRecommendation) []recommendationResponse {
	responses := make([]recommendationResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, recommendationResponse{
			movieResponse:       toMovieResponse(rec.Movie),
			PredictedScore:      rec.PredictedScore,
			PredictedStarRating: rec.PredictedStarRating,
			FinalScore:          rec.FinalScore,
			Watched:             rec.Watched,
		})
	}
	return responses
}

type ratedMovieResponse struct {
	ID                    int64   `json:"id"`
	ClerkUserID           string  `json:"clerk_user_id"`
	MovieID               int64   `json:"movie_id"`
	Rating                float64 `json:"rating"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
	MovieTitle            string  `json:"movie_title"`
	MoviePosterPath       string  `json:"movie_poster_path,omitempty"`
	MovieOverview         string  `json:"movie_overview,omitempty"`
	MovieReleaseDate      string  `json:"movie_release_date,omitempty"`
	MovieOriginalLanguage string  `json:"movie_original_language,omitempty"`
	MoviePopularity       float64 `json:"movie_popularity"`
	MovieVoteCount        int     `json:"movie_vote_count"`
	MovieVoteAverage      float64 `json:"movie_vote_average"`
	IsWatchlisted         bool    `json:"is_watchlisted"`
}

func toRatedMovieResponse(item domain.RatedMovie) ratedMovieResponse {
	release := ""
	if !item.Movie.ReleaseDate.IsZero() {
		release = item.Movie.ReleaseDate.Format("2006-01-02")
	}
	return ratedMovieResponse{
		ID:                    item.Rating.ID,
		ClerkUserID:           item.Rating.ClerkUserID,
		MovieID:               item.Rating.MovieID,
		Rating:                item.Rating.Rating,
		CreatedAt:             item.Rating.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             item.Rating.UpdatedAt.Format(time.RFC3339),
		MovieTitle:            item.Movie.Title,
		MoviePosterPath:       item.Movie.PosterPath,
		MovieOverview:         item.Movie.Overview,
		MovieReleaseDate:      release,
		MovieOriginalLanguage: item.Movie.OriginalLanguage,
		MoviePopularity:       item.Movie.Popularity,
		MovieVoteCount:        item.Movie.VoteCount,
		MovieVoteAverage:      item.Movie.VoteAverage,
		IsWatchlisted:         item.Watchlisted,
	}
}

type watchlistEntryResponse struct {
	ID                    int64   `json:"id"`
	ClerkUserID           string  `json:"clerk_user_id"`
	MovieID               int64   `json:"movie_id"`
	CreatedAt             string  `json:"created_at"`
	MovieTitle            string  `json:"movie_title"`
	MoviePosterPath       string  `json:"movie_poster_path,omitempty"`
	MovieOverview         string  `json:"movie_overview,omitempty"`
	MovieReleaseDate      string  `json:"movie_release_date,omitempty"`
	MovieOriginalLanguage string  `json:"movie_original_language,omitempty"`
	MoviePopularity       float64 `json:"movie_popularity"`
	MovieVoteCount        int     `json:"movie_vote_count"`
	MovieVoteAverage      float64 `json:"movie_vote_average"`
}

func toWatchlistEntryResponse(entry domain.WatchlistEntry) watchlistEntryResponse {
	release := ""
	if !entry.Movie.ReleaseDate.IsZero() {
		release = entry.Movie.ReleaseDate.Format("2006-01-02")
	}
	return watchlistEntryResponse{
		ID:                    entry.ID,
		ClerkUserID:           entry.ClerkUserID,
		MovieID:               entry.MovieID,
		CreatedAt:             entry.CreatedAt.Format(time.RFC3339),
		MovieTitle:            entry.Movie.Title,
		MoviePosterPath:       entry.Movie.PosterPath,
		MovieOverview:         entry.Movie.Overview,
		MovieReleaseDate:      release,
		MovieOriginalLanguage: entry.Movie.OriginalLanguage,
		MoviePopularity:       entry.Movie.Popularity,
		MovieVoteCount:        entry.Movie.VoteCount,
		MovieVoteAverage:      entry.Movie.VoteAverage,
	}
}

type preferredMovieResponse struct {
	movieResponse
	PopularityScore float64 `json:"popularity_score"`
	Watched         bool    `json:"watched"`
}

type preferenceGroupResponse struct {
	Title  string                   `json:"title"`
	Movies []preferredMovieResponse `json:"movies"`
}

func toPreferenceGroupResponse(group domain.PreferenceGroup) preferenceGroupResponse {
	movies := make([]preferredMovieResponse, 0, len(group.Movies))
	for _, m := range group.Movies {
		movies = append(movies, preferredMovieResponse{
			movieResponse:   toMovieResponse(m.Movie),
			PopularityScore: m.PopularityScore,
			Watched:         m.Watched,
		})
	}
	return preferenceGroupResponse{Title: group.Title, Movies: movies}
}
