package events

import (
	"context"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

// Handler обрабатывает событие контента. Ошибка обработчика
// изолируется: логируется и не прерывает остальных.
type Handler interface {
	HandleEvent(ctx context.Context, event domain.Event) error
}

// Bus рассылает события фиксированному упорядоченному списку
// обработчиков. Список задаётся при создании, регистрация во время
// работы не поддерживается.
type Bus struct {
	handlers []Handler
	log      zerolog.Logger
}

// NewBus создаёт шину событий.
func NewBus(logger zerolog.Logger, handlers ...Handler) *Bus {
	return &Bus{handlers: handlers, log: logger}
}

// Publish синхронно передаёт событие всем обработчикам по порядку.
// Вызывается после фиксации соответствующей записи в хранилище.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	for _, h := range b.handlers {
		if err := h.HandleEvent(ctx, event); err != nil {
			b.log.Error().Err(err).Type("event", event).Msg("events: обработчик вернул ошибку")
		}
	}
}
