// internal/notification/models.go

package notifications

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

// Priority represents notification priority levels
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Notification is an in-app notification row
type Notification struct {
	ID        uuid.UUID                 `json:"id" db:"id"`
	UserID    uuid.UUID                 `json:"userId" db:"user_id"`
	Type      matching.NotificationKind `json:"type" db:"type"`
	Title     string                    `json:"title" db:"title"`
	Body      string                    `json:"body" db:"body"`
	Data      NotificationData          `json:"data" db:"data"`
	IsRead    bool                      `json:"isRead" db:"is_read"`
	CreatedAt time.Time                 `json:"createdAt" db:"created_at"`
}

// NotificationData is the JSONB payload attached to a notification
type NotificationData map[string]string

// Scan implements sql.Scanner interface
func (nd *NotificationData) Scan(value interface{}) error {
	if value == nil {
		*nd = make(NotificationData)
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into NotificationData", value)
	}
	return json.Unmarshal(b, nd)
}

// Value implements driver.Valuer interface
func (nd NotificationData) Value() (driver.Value, error) {
	if nd == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(nd)
}

// Contact is how a user can be reached outside the app
type Contact struct {
	UserID      uuid.UUID `db:"id"`
	FullName    string    `db:"full_name"`
	Email       string    `db:"email"`
	PhoneNumber string    `db:"phone_number"`
}

// EmailNotification represents an email to be sent
type EmailNotification struct {
	To      string
	Subject string
	Body    string
	HTML    string
}

// SMSNotification represents an SMS to be sent
type SMSNotification struct {
	To      string
	Message string
}

// PushNotification represents a push notification to a user's devices
type PushNotification struct {
	Tokens   []string
	Title    string
	Body     string
	Data     map[string]string
	Priority Priority
}

// PushResult reports tokens the provider rejected as no longer registered
type PushResult struct {
	Sent        int
	Failed      int
	StaleTokens []string
}

// Message is a rendered notification, ready for any channel
type Message struct {
	Kind     matching.NotificationKind
	Title    string
	Body     string
	SMS      string
	HTML     string
	Priority Priority
	Data     map[string]string
}

// WSMessage is the frame pushed to connected websocket clients
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// RegisterPushTokenRequest registers a device for push
type RegisterPushTokenRequest struct {
	Token    string `json:"token" validate:"required,min=10,max=4096"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android web"`
}
