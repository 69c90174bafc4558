package domain

import (
	"context"
	"time"
)

// WriteJobKind описывает тип фоновой записи.
type WriteJobKind string

const (
	// WriteJobRatingUpsert — добавление или обновление оценки.
	WriteJobRatingUpsert WriteJobKind = "rating_upsert"
	// WriteJobWatchlistAdd — добавление фильма в вотчлист.
	WriteJobWatchlistAdd WriteJobKind = "watchlist_add"
	// WriteJobWatchlistRemove — удаление фильма из вотчлиста.
	WriteJobWatchlistRemove WriteJobKind = "watchlist_remove"
)

// WriteJob содержит информацию о задаче фоновой записи.
// API подтверждает приём задачи не дожидаясь применения к БД.
type WriteJob struct {
	ID          string       `json:"job_id,omitempty"`
	Kind        WriteJobKind `json:"kind"`
	ClerkUserID string       `json:"clerk_user_id"`
	MovieID     int64        `json:"movie_id"`
	Rating      float64      `json:"rating,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
}

// WriteAckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type WriteAckFunc func(success bool) error

// WriteQueue описывает очередь задач фоновой записи.
type WriteQueue interface {
	Enqueue(ctx context.Context, job WriteJob) error
	Receive(ctx context.Context) (WriteJob, WriteAckFunc, error)
}
