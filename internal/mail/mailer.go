// Пакет mail — отправка уведомлений о расшаренных файлах.
// SMTP-транспорт построен на github.com/wneessen/go-mail: нужна
// контекстная отправка (DialAndSendWithContext), чтобы ограничивать
// время одной попытки таймаутом из конфигурации.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"github.com/bigkaa/boltshare/internal/config"
)

// senderName — отображаемое имя отправителя в поле From.
const senderName = "boltShare"

// Message — структурированное письмо-уведомление.
type Message struct {
	// From — адрес отправителя (указывается пользователем в форме)
	From string
	// To — адрес получателя
	To string
	// Subject — тема письма
	Subject string
	// Text — plain-text версия тела
	Text string
	// HTML — HTML-версия тела
	HTML string
}

// Mailer — отправитель писем через SMTP-релей.
type Mailer struct {
	client *gomail.Client
	logger *slog.Logger
}

// NewMailer создаёт Mailer из конфигурации.
// PLAIN-аутентификация включается, только если заданы и логин, и пароль.
func NewMailer(cfg *config.Config, logger *slog.Logger) (*Mailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(cfg.NotifyTimeout),
	}

	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания SMTP-клиента: %w", err)
	}

	return &Mailer{
		client: client,
		logger: logger.With(slog.String("component", "mailer")),
	}, nil
}

// Send отправляет письмо. Блокируется до завершения отправки или отмены ctx.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	mm := gomail.NewMsg()

	if err := mm.FromFormat(senderName, msg.From); err != nil {
		return fmt.Errorf("некорректный адрес отправителя %q: %w", msg.From, err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("некорректный адрес получателя %q: %w", msg.To, err)
	}

	mm.Subject(msg.Subject)
	mm.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		mm.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("ошибка отправки письма: %w", err)
	}

	m.logger.Debug("Письмо отправлено",
		slog.String("to", msg.To),
	)
	return nil
}
