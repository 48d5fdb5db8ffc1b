// internal/notification/email.go

package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// EmailService sends a single email
type EmailService interface {
	SendEmail(ctx context.Context, notification *EmailNotification) error
}

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPEmailService implements email notifications using SMTP
type SMTPEmailService struct {
	from     string
	fromName string
	dialer   *gomail.Dialer
	logger   *zap.Logger
}

// NewSMTPEmailService creates a new SMTP email service
func NewSMTPEmailService(cfg SMTPConfig, logger *zap.Logger) (EmailService, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("incomplete SMTP configuration")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}

	return &SMTPEmailService{
		from:     cfg.From,
		fromName: cfg.FromName,
		dialer:   dialer,
		logger:   logger,
	}, nil
}

// SendEmail sends a single email
func (s *SMTPEmailService) SendEmail(ctx context.Context, notification *EmailNotification) error {
	m := gomail.NewMessage()

	m.SetHeader("From", m.FormatAddress(s.from, s.fromName))
	m.SetHeader("To", notification.To)
	m.SetHeader("Subject", notification.Subject)

	if notification.HTML != "" {
		m.SetBody("text/html", notification.HTML)
		if notification.Body != "" {
			m.AddAlternative("text/plain", notification.Body)
		}
	} else {
		m.SetBody("text/plain", notification.Body)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.logger.Debug("email sent", zap.String("provider", "smtp"), zap.String("subject", notification.Subject))
	return nil
}

// SendGridEmailService implements email notifications using SendGrid
type SendGridEmailService struct {
	client   *sendgrid.Client
	from     string
	fromName string
	logger   *zap.Logger
}

// NewSendGridEmailService creates a new SendGrid email service
func NewSendGridEmailService(apiKey, from, fromName string, logger *zap.Logger) (EmailService, error) {
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("incomplete SendGrid configuration")
	}

	return &SendGridEmailService{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
		logger:   logger,
	}, nil
}

// SendEmail sends a single email via SendGrid
func (s *SendGridEmailService) SendEmail(ctx context.Context, notification *EmailNotification) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		notification.Subject,
		mail.NewEmail("", notification.To),
		notification.Body,
		notification.HTML,
	)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	s.logger.Debug("email sent",
		zap.String("provider", "sendgrid"),
		zap.Int("status", resp.StatusCode),
		zap.String("subject", notification.Subject),
	)
	return nil
}

// MockEmailService records emails instead of sending them
type MockEmailService struct {
	mu         sync.Mutex
	SentEmails []*EmailNotification
	logger     *zap.Logger
}

func NewMockEmailService(logger *zap.Logger) *MockEmailService {
	return &MockEmailService{
		SentEmails: make([]*EmailNotification, 0),
		logger:     logger,
	}
}

func (m *MockEmailService) SendEmail(ctx context.Context, notification *EmailNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, notification)
	m.logger.Info("mock email", zap.String("to", notification.To), zap.String("subject", notification.Subject))
	return nil
}

// Sent returns a copy of the recorded emails
func (m *MockEmailService) Sent() []*EmailNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*EmailNotification(nil), m.SentEmails...)
}
