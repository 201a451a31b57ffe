package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
	"news-portal/internal/infra/metrics"
)

// Service строит и рассылает еженедельные подборки новостей.
// Подписчики обрабатываются независимо: сбой одного не влияет
// на остальных и на порядок обхода.
type Service struct {
	subs     domain.SubscriptionRepo
	renderer domain.Renderer
	mailer   domain.Mailer
	site     Site
	lookback time.Duration
	log      zerolog.Logger
}

// Site — реквизиты портала для писем рассылки.
type Site struct {
	Name string
	URL  string
}

// NewService создаёт сервис рассылки. lookback ограничивает окно
// первой отправки, когда watermark ещё не установлен.
func NewService(subs domain.SubscriptionRepo, renderer domain.Renderer, mailer domain.Mailer, site Site, lookback time.Duration, logger zerolog.Logger) *Service {
	return &Service{subs: subs, renderer: renderer, mailer: mailer, site: site, lookback: lookback, log: logger}
}

// Run выполняет один прогон рассылки. Для каждого подписчика окно
// непросмотренных новостей — (watermark, runStart]; watermark двигается
// на runStart только после успешной отправки, поэтому неудачная
// попытка повторится в следующем прогоне.
func (s *Service) Run(ctx context.Context, runStart time.Time) (domain.DigestRunSummary, error) {
	started := time.Now()
	defer func() {
		metrics.DigestRunSeconds.Observe(time.Since(started).Seconds())
	}()

	var summary domain.DigestRunSummary
	subscribers, err := s.subs.ListActiveDigestSubscribers(ctx)
	if err != nil {
		return summary, fmt.Errorf("выборка подписчиков: %w", err)
	}

	for _, subscriber := range subscribers {
		if len(subscriber.Categories) == 0 {
			summary.Skipped++
			continue
		}

		periodStart := runStart.Add(-s.lookback)
		if subscriber.LastDigestSent != nil {
			periodStart = *subscriber.LastDigestSent
		}

		categoryIDs := make([]int64, 0, len(subscriber.Categories))
		for _, category := range subscriber.Categories {
			categoryIDs = append(categoryIDs, category.ID)
		}

		posts, err := s.subs.ListNewsForCategories(ctx, categoryIDs, periodStart, runStart)
		if err != nil {
			summary.Failed++
			metrics.DigestErrors.Inc()
			s.log.Error().Err(err).Int64("subscriber", subscriber.ID).Msg("digest: выборка новостей не удалась")
			continue
		}
		if len(posts) == 0 {
			summary.Skipped++
			continue
		}

		body, err := s.renderer.Render(digestTemplate, digestContext(subscriber, posts, s.site, periodStart, runStart))
		if err == nil {
			err = s.mailer.Send(ctx, subscriber.Email, digestSubject(s.site.Name), body)
		}
		if err != nil {
			summary.Failed++
			metrics.DigestErrors.Inc()
			s.log.Error().Err(err).Int64("subscriber", subscriber.ID).Msg("digest: отправка не удалась, watermark не тронут")
			continue
		}

		if err := s.subs.AdvanceDigestWatermark(ctx, subscriber.ID, runStart); err != nil {
			// Письмо ушло; при несдвинутом watermark следующий прогон
			// продублирует его — допустимо при at-least-once.
			s.log.Error().Err(err).Int64("subscriber", subscriber.ID).Msg("digest: watermark не сдвинут")
		}
		summary.Sent++
		metrics.DigestsSent.Inc()
	}

	s.log.Info().Int("sent", summary.Sent).Int("failed", summary.Failed).Int("skipped", summary.Skipped).Msg("digest: прогон завершён")
	return summary, nil
}
