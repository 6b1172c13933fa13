package verification

import (
	"context"
	"fmt"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Sender отправляет код подтверждения по указанному каналу.
type Sender interface {
	Send(ctx context.Context, medium domain.VerificationMedium, destination, code string) error
}

// MediumSender маршрутизирует отправку между email и sms каналами.
type MediumSender struct {
	email Sender
	sms   Sender
}

// NewMediumSender создает маршрутизатор каналов доставки.
func NewMediumSender(email, sms Sender) *MediumSender {
	return &MediumSender{email: email, sms: sms}
}

// Send выбирает канал по medium.
func (s *MediumSender) Send(ctx context.Context, medium domain.VerificationMedium, destination, code string) error {
	switch medium {
	case domain.VerificationMediumEmail:
		return s.email.Send(ctx, medium, destination, code)
	case domain.VerificationMediumSMS:
		return s.sms.Send(ctx, medium, destination, code)
	default:
		return fmt.Errorf("unsupported verification medium %q", medium)
	}
}

// SMTPConfig настройки SMTP для отправки кодов по email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender отправляет код подтверждения по email через SMTP.
type EmailSender struct {
	cfg SMTPConfig
	log *logger.Logger
}

// NewEmailSender создает email-отправитель.
func NewEmailSender(cfg SMTPConfig, log *logger.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, log: log}
}

// Send отправляет письмо с кодом подтверждения.
func (s *EmailSender) Send(ctx context.Context, _ domain.VerificationMedium, destination, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", "Your payment verification code")
	m.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s.\n\nEnter this code to confirm your subscription payment.", code))

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}

	s.log.Debugw("Verification email sent", "to", destination)
	return nil
}

// LogSMSSender заглушка SMS-канала: провайдер SMS не подключен,
// код записывается в лог.
type LogSMSSender struct {
	log *logger.Logger
}

// NewLogSMSSender создает SMS-заглушку.
func NewLogSMSSender(log *logger.Logger) *LogSMSSender {
	return &LogSMSSender{log: log}
}

// Send пишет код в лог вместо реальной отправки.
func (s *LogSMSSender) Send(_ context.Context, _ domain.VerificationMedium, destination, code string) error {
	s.log.Infow("SMS verification code (no provider configured)", "to", destination, "code", code)
	return nil
}
