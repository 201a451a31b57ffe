package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

// Worker вычитывает задачи уведомлений из очереди и доставляет их.
// После ошибки чтения следующая попытка идёт через паузу, чтобы
// недоступный брокер не раскручивал цикл ошибок.
type Worker struct {
	queue      domain.NotifyQueue
	sender     *Sender
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewWorker создаёт обработчик очереди уведомлений.
func NewWorker(queue domain.NotifyQueue, sender *Sender, retryDelay time.Duration, logger zerolog.Logger) *Worker {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Worker{queue: queue, sender: sender, retryDelay: retryDelay, log: logger}
}

// Run обрабатывает очередь до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				w.log.Info().Msg("worker: остановка")
				return
			}
			w.log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				w.log.Info().Msg("worker: остановка")
				return
			case <-time.After(w.retryDelay):
			}
			continue
		}
		summary := w.sender.Deliver(ctx, job)
		w.log.Info().Str("job", job.ID).Str("kind", string(job.Kind)).Int("sent", summary.Sent).Int("failed", summary.Failed).Msg("worker: задача обработана")
	}
}
