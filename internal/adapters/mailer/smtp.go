package mailer

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"news-portal/internal/domain"
	"news-portal/internal/infra/metrics"
)

// Config описывает настройки SMTP.
type Config struct {
	Host        string
	Port        int
	User        string
	Pass        string
	From        string
	SendTimeout time.Duration
}

// SMTP отправляет письма через внешний SMTP-сервер.
type SMTP struct {
	client *gomail.Client
	from   string
	// таймаут на одно письмо, чтобы недоступный сервер
	// не останавливал весь прогон
	sendTimeout time.Duration
}

// NewSMTP создаёт почтовый транспорт.
func NewSMTP(cfg Config) (*SMTP, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Pass),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTP{client: client, from: cfg.From, sendTimeout: timeout}, nil
}

var _ domain.Mailer = (*SMTP)(nil)

// Send отправляет одно письмо.
func (m *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("адрес отправителя: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("адрес получателя: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	start := time.Now()
	err := m.client.DialAndSendWithContext(sendCtx, msg)
	metrics.ObserveNetworkRequest("smtp", "send", to, start, err)
	if err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}
