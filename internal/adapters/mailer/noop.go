package mailer

import (
	"context"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

// Noop пишет письма в лог вместо отправки. Используется в dev-окружении,
// когда SMTP не сконфигурирован.
type Noop struct {
	log zerolog.Logger
}

// NewNoop создаёт заглушку почтового транспорта.
func NewNoop(logger zerolog.Logger) *Noop {
	return &Noop{log: logger}
}

var _ domain.Mailer = (*Noop)(nil)

// Send логирует письмо.
func (m *Noop) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.log.Info().Str("to", to).Str("subject", subject).Int("body_len", len(htmlBody)).Msg("mailer: письмо не отправлено (noop)")
	return nil
}
