package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"news-portal/internal/adapters/mailer"
	"news-portal/internal/adapters/render"
	"news-portal/internal/adapters/repo"
	"news-portal/internal/domain"
	"news-portal/internal/infra/cache"
	"news-portal/internal/infra/config"
	"news-portal/internal/infra/db"
	"news-portal/internal/infra/log"
	"news-portal/internal/infra/metrics"
	"news-portal/internal/usecase/digest"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv).With().Str("component", "scheduler").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.MetricsPort))

	// Владение расписанием назначается деплойментом явно: без флага
	// процесс не планирует ничего, чтобы не появилось второго расписания.
	if !cfg.Scheduler.Owner {
		logger.Info().Msg("scheduler: процесс не владеет расписанием, ожидание сигнала")
		<-ctx.Done()
		return
	}

	pool, err := connectWithRetry(cfg, logger)
	if err != nil {
		// Отказ старта планировщика не валит остальной деплоймент:
		// процесс остаётся жить и отдаёт метрики.
		logger.Error().Err(err).Msg("scheduler: хранилище недоступно, планировщик остановлен")
		<-ctx.Done()
		return
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	renderer, err := render.NewTemplates()
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: шаблоны писем")
	}
	mail := buildMailer(cfg, logger)

	location, err := time.LoadLocation(cfg.Digest.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.Digest.TZ).Msg("scheduler: неизвестный часовой пояс")
	}

	service := digest.NewService(
		repoAdapter,
		renderer,
		mail,
		digest.Site{Name: cfg.Site.Name, URL: cfg.Site.URL},
		time.Duration(cfg.Digest.LookbackDays)*24*time.Hour,
		logger,
	)

	var runLock domain.Cache
	if cfg.RedisAddr != "" {
		runLock = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	scheduler := digest.NewScheduler(service.Run, runLock, digest.ScheduleConfig{
		Weekday:  cfg.Digest.Weekday,
		Hour:     cfg.Digest.Hour,
		Minute:   cfg.Digest.Minute,
		Location: location,
	}, logger)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("scheduler: запуск не удался")
		<-ctx.Done()
		return
	}

	<-ctx.Done()
	scheduler.Stop()
}

// connectWithRetry подключается к БД с ограниченным числом попыток
// и фиксированной паузой между ними.
func connectWithRetry(cfg config.AppConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	attempt := 0
	op := func() error {
		attempt++
		p, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("scheduler: БД недоступна, повтор")
			return err
		}
		pool = p
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Scheduler.DBRetryDelay), uint64(cfg.Scheduler.DBRetries))
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return pool, nil
}

// buildMailer возвращает SMTP-транспорт или noop-заглушку без SMTP_HOST.
func buildMailer(cfg config.AppConfig, logger zerolog.Logger) domain.Mailer {
	if cfg.SMTP.Host == "" {
		logger.Warn().Msg("SMTP не сконфигурирован, письма уходят в лог")
		return mailer.NewNoop(logger)
	}
	m, err := mailer.NewSMTP(mailer.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		User:        cfg.SMTP.User,
		Pass:        cfg.SMTP.Pass,
		From:        cfg.SMTP.From,
		SendTimeout: cfg.SendTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("почтовый транспорт не сконфигурирован")
	}
	return m
}
