// internal/notification/push.go

package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PushService sends one notification to a set of device tokens
type PushService interface {
	SendPush(ctx context.Context, notification *PushNotification) (*PushResult, error)
}

// FCMPushService implements push notifications using Firebase Cloud Messaging
type FCMPushService struct {
	client *messaging.Client
	logger *zap.Logger
}

// NewFCMPushService creates a new FCM push service from a credentials file or inline JSON
func NewFCMPushService(ctx context.Context, credentialsPath, credentialsJSON string, logger *zap.Logger) (PushService, error) {
	var opt option.ClientOption
	switch {
	case credentialsPath != "":
		opt = option.WithCredentialsFile(credentialsPath)
	case credentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	default:
		return nil, errors.New("firebase credentials path or JSON must be set")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &FCMPushService{client: client, logger: logger}, nil
}

// SendPush sends a push notification to every token in one multicast
func (s *FCMPushService) SendPush(ctx context.Context, notification *PushNotification) (*PushResult, error) {
	if len(notification.Tokens) == 0 {
		return &PushResult{}, nil
	}

	data := make(map[string]string, len(notification.Data)+2)
	for k, v := range notification.Data {
		data[k] = v
	}
	data["title"] = notification.Title
	data["body"] = notification.Body

	message := &messaging.MulticastMessage{
		Tokens: notification.Tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority(notification.Priority),
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": apnsPriority(notification.Priority),
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: notification.Title,
						Body:  notification.Body,
					},
					Sound: "default",
				},
			},
		},
	}

	batch, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("fcm multicast: %w", err)
	}

	result := &PushResult{Sent: batch.SuccessCount, Failed: batch.FailureCount}
	var firstErr error
	for idx, resp := range batch.Responses {
		if resp.Error == nil {
			continue
		}
		if messaging.IsUnregistered(resp.Error) {
			result.StaleTokens = append(result.StaleTokens, notification.Tokens[idx])
			continue
		}
		if firstErr == nil {
			firstErr = resp.Error
		}
	}

	// An error is returned only when no token accepted the message
	if batch.SuccessCount == 0 && firstErr != nil {
		return result, fmt.Errorf("fcm multicast: %w", firstErr)
	}
	return result, nil
}

func androidPriority(priority Priority) string {
	if priority == PriorityLow {
		return "normal"
	}
	return "high"
}

func apnsPriority(priority Priority) string {
	if priority == PriorityLow {
		return "5"
	}
	return "10"
}

// MockPushService records pushes instead of sending them
type MockPushService struct {
	mu                sync.Mutex
	SentNotifications []*PushNotification
	logger            *zap.Logger
}

func NewMockPushService(logger *zap.Logger) *MockPushService {
	return &MockPushService{
		SentNotifications: make([]*PushNotification, 0),
		logger:            logger,
	}
}

func (m *MockPushService) SendPush(ctx context.Context, notification *PushNotification) (*PushResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentNotifications = append(m.SentNotifications, notification)
	m.logger.Info("mock push", zap.Int("tokens", len(notification.Tokens)), zap.String("title", notification.Title))
	return &PushResult{Sent: len(notification.Tokens)}, nil
}

// Sent returns a copy of the recorded pushes
func (m *MockPushService) Sent() []*PushNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*PushNotification(nil), m.SentNotifications...)
}
