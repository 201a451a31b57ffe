package domain

import (
	"context"
	"time"
)

// NotificationKind описывает вид уведомления.
type NotificationKind string

const (
	// NotificationNewPost — уведомление о новой публикации в рубрике.
	NotificationNewPost NotificationKind = "new_post"
	// NotificationWelcome — приветственное письмо после регистрации.
	NotificationWelcome NotificationKind = "welcome"
)

// NotificationJob содержит задачу на рендеринг и отправку писем.
// Для new_post список получателей фиксируется в момент события,
// уже без автора и без дублей по рубрикам.
type NotificationJob struct {
	ID           string           `json:"job_id"`
	Kind         NotificationKind `json:"kind"`
	PostID       int64            `json:"post_id,omitempty"`
	RecipientIDs []int64          `json:"recipient_ids"`
	RequestedAt  time.Time        `json:"requested_at"`
}

// EnqueueStatus — явный исход попытки постановки задачи в очередь.
type EnqueueStatus int

const (
	// Enqueued — задача принята очередью.
	Enqueued EnqueueStatus = iota
	// QueueUnavailable — брокер недоступен, нужен синхронный fallback.
	QueueUnavailable
)

// NotifyQueue описывает очередь задач на отправку уведомлений.
// Enqueue возвращает QueueUnavailable вместе с причиной, если брокер
// недоступен: fallback — спроектированная ветка, а не пойманный сбой.
type NotifyQueue interface {
	Enqueue(ctx context.Context, job NotificationJob) (EnqueueStatus, error)
	Pop(ctx context.Context) (NotificationJob, error)
}
