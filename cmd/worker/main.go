package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"news-portal/internal/adapters/mailer"
	"news-portal/internal/adapters/render"
	"news-portal/internal/adapters/repo"
	"news-portal/internal/domain"
	"news-portal/internal/infra/config"
	"news-portal/internal/infra/db"
	"news-portal/internal/infra/log"
	"news-portal/internal/infra/metrics"
	"news-portal/internal/infra/queue"
	"news-portal/internal/usecase/notify"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	notifyQueue := buildQueue(cfg, logger)

	renderer, err := render.NewTemplates()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: шаблоны писем")
	}
	mail := buildMailer(cfg, logger)

	site := notify.SiteInfo{Name: cfg.Site.Name, URL: cfg.Site.URL}
	sender := notify.NewSender(repoAdapter, repoAdapter, renderer, mail, site, logger)

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.MetricsPort))
	logger.Info().Msg("worker: старт")

	worker := notify.NewWorker(notifyQueue, sender, time.Second, logger)
	worker.Run(ctx)
}

// buildQueue выбирает брокер: AMQP при заданном URL, иначе Redis.
func buildQueue(cfg config.AppConfig, logger zerolog.Logger) domain.NotifyQueue {
	if cfg.AMQPURL != "" {
		q, err := queue.NewRabbitNotifyQueue(cfg.AMQPURL, cfg.Queues.Notify)
		if err != nil {
			logger.Fatal().Err(err).Msg("очередь AMQP не сконфигурирована")
		}
		return q
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return queue.NewRedisNotifyQueue(client, cfg.Queues.Notify)
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
