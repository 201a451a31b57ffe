package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"news-portal/internal/domain"
	"news-portal/internal/infra/metrics"
)

// Dispatcher раскладывает события контента в задачи на отправку писем.
// Основной путь — постановка в очередь; при недоступном брокере задача
// доставляется резервной горутиной вне запроса: обработка события стоит
// не дороже попытки постановки в очередь. Диспетчер вызывается уже после
// фиксации записей, поэтому fallback не может уведомить об откаченном
// контенте.
type Dispatcher struct {
	subs    domain.SubscriptionRepo
	authors domain.AuthorRepo
	queue   domain.NotifyQueue
	sender  *Sender
	log     zerolog.Logger
	now     func() time.Time
}

// NewDispatcher создаёт диспетчер уведомлений.
func NewDispatcher(subs domain.SubscriptionRepo, authors domain.AuthorRepo, queue domain.NotifyQueue, sender *Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:    subs,
		authors: authors,
		queue:   queue,
		sender:  sender,
		log:     logger,
		now:     time.Now,
	}
}

// HandleEvent реализует events.Handler.
func (d *Dispatcher) HandleEvent(ctx context.Context, event domain.Event) error {
	switch ev := event.(type) {
	case domain.PostCreated:
		return d.onPostCreated(ctx, ev)
	case domain.PostCategoryLinked:
		return d.onPostCategoryLinked(ctx, ev)
	case domain.UserRegistered:
		return d.onUserRegistered(ctx, ev)
	default:
		return nil
	}
}

func (d *Dispatcher) onPostCreated(ctx context.Context, ev domain.PostCreated) error {
	if ev.Post.Type != domain.PostTypeNews {
		return nil
	}
	categoryIDs := make([]int64, 0, len(ev.Categories))
	for _, category := range ev.Categories {
		categoryIDs = append(categoryIDs, category.ID)
	}
	recipients, err := d.resolveRecipients(ctx, ev.Post, categoryIDs)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	return d.dispatch(ctx, domain.NotificationJob{
		ID:           uuid.NewString(),
		Kind:         domain.NotificationNewPost,
		PostID:       ev.Post.ID,
		RecipientIDs: recipients,
		RequestedAt:  d.now(),
	})
}

func (d *Dispatcher) onPostCategoryLinked(ctx context.Context, ev domain.PostCategoryLinked) error {
	if ev.Post.Type != domain.PostTypeNews {
		return nil
	}
	recipients, err := d.resolveRecipients(ctx, ev.Post, []int64{ev.Category.ID})
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	return d.dispatch(ctx, domain.NotificationJob{
		ID:           uuid.NewString(),
		Kind:         domain.NotificationNewPost,
		PostID:       ev.Post.ID,
		RecipientIDs: recipients,
		RequestedAt:  d.now(),
	})
}

func (d *Dispatcher) onUserRegistered(ctx context.Context, ev domain.UserRegistered) error {
	return d.dispatch(ctx, domain.NotificationJob{
		ID:           uuid.NewString(),
		Kind:         domain.NotificationWelcome,
		RecipientIDs: []int64{ev.User.ID},
		RequestedAt:  d.now(),
	})
}

// resolveRecipients собирает прямых подписчиков рубрик без дублей.
// Автор публикации исключается, даже если подписан сам на себя.
func (d *Dispatcher) resolveRecipients(ctx context.Context, post domain.Post, categoryIDs []int64) ([]int64, error) {
	author, err := d.authors.GetAuthor(ctx, post.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("получение автора: %w", err)
	}

	seen := make(map[int64]struct{})
	var recipients []int64
	for _, categoryID := range categoryIDs {
		subscribers, err := d.subs.ListImmediateSubscribers(ctx, categoryID)
		if err != nil {
			return nil, fmt.Errorf("подписчики рубрики %d: %w", categoryID, err)
		}
		for _, user := range subscribers {
			if user.ID == author.UserID {
				continue
			}
			if _, ok := seen[user.ID]; ok {
				continue
			}
			seen[user.ID] = struct{}{}
			recipients = append(recipients, user.ID)
		}
	}
	return recipients, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, job domain.NotificationJob) error {
	status, err := d.queue.Enqueue(ctx, job)
	switch status {
	case domain.Enqueued:
		metrics.NotificationsEnqueued.WithLabelValues(string(job.Kind)).Inc()
		return nil
	case domain.QueueUnavailable:
		metrics.NotificationFallbacks.Inc()
		d.log.Warn().Err(err).Str("job", job.ID).Msg("notify: очередь недоступна, резервная отправка")
		// Контекст запроса к этому моменту своё отработал: письма
		// не должны оборваться вместе с ним.
		bg := context.WithoutCancel(ctx)
		go func() {
			summary := d.sender.Deliver(bg, job)
			d.log.Info().Str("job", job.ID).Int("sent", summary.Sent).Int("failed", summary.Failed).Msg("notify: резервная отправка завершена")
		}()
		return nil
	default:
		return err
	}
}
