// internal/notification/sms.go

package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// SMSService sends a single text message
type SMSService interface {
	SendSMS(ctx context.Context, notification *SMSNotification) error
}

// TwilioSMSService implements SMS notifications using Twilio
type TwilioSMSService struct {
	client *twilio.RestClient
	from   string
	logger *zap.Logger
}

// NewTwilioSMSService creates a new Twilio SMS service
func NewTwilioSMSService(accountSID, authToken, from string, logger *zap.Logger) (SMSService, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("incomplete Twilio configuration")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSService{
		client: client,
		from:   from,
		logger: logger,
	}, nil
}

// SendSMS sends a single SMS
func (s *TwilioSMSService) SendSMS(ctx context.Context, notification *SMSNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(notification.To)
	params.SetFrom(s.from)
	params.SetBody(notification.Message)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}

	if resp.Sid != nil {
		s.logger.Debug("sms sent", zap.String("sid", *resp.Sid))
	}
	return nil
}

// MockSMSService records messages instead of sending them
type MockSMSService struct {
	mu           sync.Mutex
	SentMessages []*SMSNotification
	logger       *zap.Logger
}

func NewMockSMSService(logger *zap.Logger) *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]*SMSNotification, 0),
		logger:       logger,
	}
}

func (m *MockSMSService) SendSMS(ctx context.Context, notification *SMSNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, notification)
	m.logger.Info("mock sms", zap.String("to", notification.To), zap.String("message", notification.Message))
	return nil
}

// Sent returns a copy of the recorded messages
func (m *MockSMSService) Sent() []*SMSNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*SMSNotification(nil), m.SentMessages...)
}
