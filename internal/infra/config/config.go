package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Moscow"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsPort int    `envconfig:"METRICS_PORT" default:"9090"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	Site struct {
		Name string `envconfig:"SITE_NAME" default:"NewsPortal"`
		URL  string `envconfig:"SITE_URL" default:"http://localhost:8080"`
	} `envconfig:""`

	SMTP struct {
		Host string `envconfig:"SMTP_HOST"`
		Port int    `envconfig:"SMTP_PORT" default:"587"`
		User string `envconfig:"SMTP_USER"`
		Pass string `envconfig:"SMTP_PASS"`
		From string `envconfig:"SMTP_FROM" default:"noreply@localhost"`
	} `envconfig:""`

	Queues struct {
		Notify string `envconfig:"NOTIFY_QUEUE_KEY" default:"notify_jobs"`
	} `envconfig:""`

	Limits struct {
		NewsCount  int           `envconfig:"NEWS_LIMIT_COUNT" default:"3"`
		NewsWindow time.Duration `envconfig:"NEWS_LIMIT_WINDOW" default:"24h"`
	} `envconfig:""`

	Digest struct {
		Weekday      int    `envconfig:"DIGEST_CRON_WEEKDAY" default:"1"`
		Hour         int    `envconfig:"DIGEST_CRON_HOUR" default:"9"`
		Minute       int    `envconfig:"DIGEST_CRON_MINUTE" default:"0"`
		TZ           string `envconfig:"DIGEST_TZ" default:"Europe/Moscow"`
		LookbackDays int    `envconfig:"DIGEST_LOOKBACK_DAYS" default:"365"`
	} `envconfig:""`

	Scheduler struct {
		Owner        bool          `envconfig:"SCHEDULER_OWNER" default:"false"`
		DBRetries    int           `envconfig:"SCHEDULER_DB_RETRIES" default:"5"`
		DBRetryDelay time.Duration `envconfig:"SCHEDULER_DB_RETRY_DELAY" default:"3s"`
	} `envconfig:""`

	SendTimeout time.Duration `envconfig:"MAIL_SEND_TIMEOUT" default:"15s"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
