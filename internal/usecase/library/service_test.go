package library

import (
	"context"
	"errors"
	"testing"

	"trailer-api/internal/domain"
)

type stubQueue struct {
	jobs       []domain.WriteJob
	enqueueErr error
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.WriteJob) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Receive(context.Context) (domain.WriteJob, domain.WriteAckFunc, error) {
	return domain.WriteJob{}, nil, errors.New("не используется в тестах")
}

type stubLibraryRepo struct {
	upserted []domain.Rating
	added    []int64
	removed  []int64
}

func (r *stubLibraryRepo) UpsertRating(_ context.Context, clerkUserID string, movieID int64, rating float64) error {
	r.upserted = append(r.upserted, domain.Rating{ClerkUserID: clerkUserID, MovieID: movieID, Rating: rating})
	return nil
}

func (r *stubLibraryRepo) ListUserRatings(context.Context, string) ([]domain.RatedMovie, error) {
	return nil, nil
}

func (r *stubLibraryRepo) AddToWatchlist(_ context.Context, _ string, movieID int64) error {
	r.added = append(r.added, movieID)
	return nil
}

func (r *stubLibraryRepo) RemoveFromWatchlist(_ context.Context, _ string, movieID int64) (bool, error) {
	r.removed = append(r.removed, movieID)
	return true, nil
}

func (r *stubLibraryRepo) ListWatchlist(context.Context, string) ([]domain.WatchlistEntry, error) {
	return nil, nil
}

func TestSubmitRatingEnqueuesJob(t *testing.T) {
	queue := &stubQueue{}
	repo := &stubLibraryRepo{}
	service := NewService(queue, repo, repo)

	job, err := service.SubmitRating(context.Background(), "u1", 10, 4.5)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if job.ID == "" {
		t.Fatalf("задача должна получить идентификатор")
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("ожидали 1 задачу в очереди, получили %d", len(queue.jobs))
	}
	if queue.jobs[0].Kind != domain.WriteJobRatingUpsert || queue.jobs[0].Rating != 4.5 {
		t.Fatalf("неожиданная задача: %+v", queue.jobs[0])
	}
	if len(repo.upserted) != 0 {
		t.Fatalf("запись не должна применяться синхронно")
	}
}

func TestSubmitRatingRejectsInvalidScale(t *testing.T) {
	queue := &stubQueue{}
	repo := &stubLibraryRepo{}
	service := NewService(queue, repo, repo)

	for _, rating := range []float64{-1, 5.5, 3.3} {
		_, err := service.SubmitRating(context.Background(), "u1", 10, rating)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("оценка %v: ожидали ErrInvalidArgument, получили %v", rating, err)
		}
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("невалидная оценка не должна попадать в очередь")
	}
}

func TestSubmitWatchlistJobs(t *testing.T) {
	queue := &stubQueue{}
	repo := &stubLibraryRepo{}
	service := NewService(queue, repo, repo)

	if _, err := service.SubmitWatchlistAdd(context.Background(), "u1", 7); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.SubmitWatchlistRemove(context.Background(), "u1", 7); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.jobs) != 2 {
		t.Fatalf("ожидали 2 задачи, получили %d", len(queue.jobs))
	}
	if queue.jobs[0].Kind != domain.WriteJobWatchlistAdd || queue.jobs[1].Kind != domain.WriteJobWatchlistRemove {
		t.Fatalf("неожиданные типы задач: %v, %v", queue.jobs[0].Kind, queue.jobs[1].Kind)
	}

	if _, err := service.SubmitWatchlistAdd(context.Background(), "", 7); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("пустой пользователь должен отклоняться, получили %v", err)
	}
	if _, err := service.SubmitWatchlistAdd(context.Background(), "u1", 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("нулевой фильм должен отклоняться, получили %v", err)
	}
}

func TestApplyDispatchesByKind(t *testing.T) {
	queue := &stubQueue{}
	repo := &stubLibraryRepo{}
	service := NewService(queue, repo, repo)

	jobs := []domain.WriteJob{
		{Kind: domain.WriteJobRatingUpsert, ClerkUserID: "u1", MovieID: 1, Rating: 3.5},
		{Kind: domain.WriteJobWatchlistAdd, ClerkUserID: "u1", MovieID: 2},
		{Kind: domain.WriteJobWatchlistRemove, ClerkUserID: "u1", MovieID: 3},
	}
	for _, job := range jobs {
		if err := service.Apply(context.Background(), job); err != nil {
			t.Fatalf("задача %v: не ожидали ошибку: %v", job.Kind, err)
		}
	}
	if len(repo.upserted) != 1 || repo.upserted[0].Rating != 3.5 {
		t.Fatalf("ожидали один апсерт оценки, получили %+v", repo.upserted)
	}
	if len(repo.added) != 1 || repo.added[0] != 2 {
		t.Fatalf("ожидали добавление фильма 2, получили %v", repo.added)
	}
	if len(repo.removed) != 1 || repo.removed[0] != 3 {
		t.Fatalf("ожидали удаление фильма 3, получили %v", repo.removed)
	}

	err := service.Apply(context.Background(), domain.WriteJob{Kind: "unknown"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("неизвестный тип задачи должен отклоняться, получили %v", err)
	}
}
