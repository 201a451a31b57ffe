package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	NotificationsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_enqueued_total",
		Help: "Задачи уведомлений, принятые очередью",
	}, []string{"kind"})

	NotificationFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_fallbacks_total",
		Help: "Переходы на синхронную отправку из-за недоступной очереди",
	})

	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Успешно отправленные письма-уведомления",
	}, []string{"kind"})

	NotificationSendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_send_errors_total",
		Help: "Ошибки отправки писем-уведомлений",
	}, []string{"kind"})

	DigestsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digests_sent_total",
		Help: "Успешно отправленные дайджесты",
	})

	DigestErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digest_errors_total",
		Help: "Ошибки отправки дайджестов",
	})

	DigestRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "digest_run_seconds",
		Help:    "Время полного прогона рассылки",
		Buckets: prometheus.DefBuckets,
	})

	RateLimitRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "news_rate_limit_rejections_total",
		Help: "Отклонённые по лимиту попытки создать новость",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NotificationsEnqueued,
		NotificationFallbacks,
		NotificationsSent,
		NotificationSendErrors,
		DigestsSent,
		DigestErrors,
		DigestRunSeconds,
		RateLimitRejections,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
