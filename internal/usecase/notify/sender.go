package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"news-portal/internal/adapters/render"
	"news-portal/internal/domain"
	"news-portal/internal/infra/metrics"
)

// SiteInfo — реквизиты портала для писем.
type SiteInfo struct {
	Name string
	URL  string
}

// DeliverySummary — итог обработки одной задачи.
type DeliverySummary struct {
	Sent   int
	Failed int
}

// Sender рендерит и отправляет письма одной задачи. Используется
// воркером очереди и синхронным fallback диспетчера. Сбой отправки
// одному получателю логируется и не прерывает остальных.
type Sender struct {
	users    domain.UserRepo
	posts    domain.PostRepo
	renderer domain.Renderer
	mailer   domain.Mailer
	site     SiteInfo
	log      zerolog.Logger
}

// NewSender создаёт отправщик уведомлений.
func NewSender(users domain.UserRepo, posts domain.PostRepo, renderer domain.Renderer, mailer domain.Mailer, site SiteInfo, logger zerolog.Logger) *Sender {
	return &Sender{users: users, posts: posts, renderer: renderer, mailer: mailer, site: site, log: logger}
}

// Deliver обрабатывает задачу: строит тело письма и рассылает его
// всем получателям задачи.
func (s *Sender) Deliver(ctx context.Context, job domain.NotificationJob) DeliverySummary {
	var summary DeliverySummary

	recipients, err := s.users.GetUsersByIDs(ctx, job.RecipientIDs)
	if err != nil {
		s.log.Error().Err(err).Str("job", job.ID).Msg("notify: не удалось получить получателей")
		summary.Failed = len(job.RecipientIDs)
		return summary
	}

	subject, bodyFor, err := s.prepare(ctx, job)
	if err != nil {
		s.log.Error().Err(err).Str("job", job.ID).Msg("notify: не удалось подготовить письмо")
		summary.Failed = len(recipients)
		return summary
	}

	for _, user := range recipients {
		body, err := bodyFor(user)
		if err == nil {
			err = s.mailer.Send(ctx, user.Email, subject, body)
		}
		if err != nil {
			summary.Failed++
			metrics.NotificationSendErrors.WithLabelValues(string(job.Kind)).Inc()
			s.log.Error().Err(err).Str("job", job.ID).Str("email", user.Email).Msg("notify: письмо не отправлено")
			continue
		}
		summary.Sent++
		metrics.NotificationsSent.WithLabelValues(string(job.Kind)).Inc()
	}
	return summary
}

// prepare возвращает тему и функцию построения тела письма
// под конкретного получателя.
func (s *Sender) prepare(ctx context.Context, job domain.NotificationJob) (string, func(domain.User) (string, error), error) {
	switch job.Kind {
	case domain.NotificationNewPost:
		post, err := s.posts.GetPost(ctx, job.PostID)
		if err != nil {
			return "", nil, fmt.Errorf("получение публикации: %w", err)
		}
		body := func(domain.User) (string, error) {
			return s.renderer.Render(render.TemplateNewPost, map[string]any{
				"Post":     post,
				"SiteName": s.site.Name,
				"SiteURL":  s.site.URL,
			})
		}
		return post.Title, body, nil
	case domain.NotificationWelcome:
		body := func(user domain.User) (string, error) {
			return s.renderer.Render(render.TemplateWelcome, map[string]any{
				"Username": user.Username,
				"SiteName": s.site.Name,
				"SiteURL":  s.site.URL,
			})
		}
		return fmt.Sprintf("Добро пожаловать на %s", s.site.Name), body, nil
	default:
		return "", nil, fmt.Errorf("неизвестный вид уведомления: %s", job.Kind)
	}
}
