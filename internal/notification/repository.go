// internal/notification/repository.go

package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrContactNotFound is returned when a user has no contact record
var ErrContactNotFound = errors.New("contact not found")

// ErrNotificationNotFound is returned when a notification does not belong to the user
var ErrNotificationNotFound = errors.New("notification not found")

// Repository stores in-app notifications and resolves delivery addresses
type Repository interface {
	// In-app notifications
	CreateNotification(ctx context.Context, notification *Notification) error
	GetUserNotifications(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]*Notification, error)
	MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteNotification(ctx context.Context, notificationID, userID uuid.UUID) error
	// DeleteReadBefore removes read notifications created before the cutoff
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)

	// Contact directory
	GetContact(ctx context.Context, userID uuid.UUID) (*Contact, error)

	// Push tokens
	SavePushToken(ctx context.Context, userID uuid.UUID, token, platform string) error
	GetUserPushTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	DeletePushTokens(ctx context.Context, tokens []string) error
}

// postgresRepository implements Repository using PostgreSQL
type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new notification repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// CreateNotification creates a new notification
func (r *postgresRepository) CreateNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, body, data, is_read, created_at)
		VALUES (:id, :user_id, :type, :title, :body, :data, :is_read, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetUserNotifications retrieves the newest notifications for a user
func (r *postgresRepository) GetUserNotifications(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT id, user_id, type, title, body, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1`

	if unreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	notifications := []*Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	return notifications, nil
}

// MarkAsRead marks one of the user's notifications as read
func (r *postgresRepository) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user as read
func (r *postgresRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

// DeleteNotification deletes one of the user's notifications
func (r *postgresRepository) DeleteNotification(ctx context.Context, notificationID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteReadBefore removes read notifications older than the cutoff
func (r *postgresRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = true AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return result.RowsAffected()
}

// GetContact resolves a user's email and phone number
func (r *postgresRepository) GetContact(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	query := `
		SELECT id, full_name, COALESCE(email, '') AS email, COALESCE(phone_number, '') AS phone_number
		FROM users
		WHERE id = $1`

	var contact Contact
	if err := r.db.GetContext(ctx, &contact, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

// SavePushToken saves or refreshes a device token
func (r *postgresRepository) SavePushToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	query := `
		INSERT INTO push_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token)
		DO UPDATE SET platform = EXCLUDED.platform, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, token, platform); err != nil {
		return fmt.Errorf("failed to save push token: %w", err)
	}
	return nil
}

// GetUserPushTokens retrieves push tokens for a user
func (r *postgresRepository) GetUserPushTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	tokens := []string{}
	err := r.db.SelectContext(ctx, &tokens, `SELECT token FROM push_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get push tokens: %w", err)
	}
	return tokens, nil
}

// DeletePushTokens removes tokens the provider no longer accepts
func (r *postgresRepository) DeletePushTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM push_tokens WHERE token IN (?)`, tokens)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}

// MemoryRepository keeps notifications and contacts in process
type MemoryRepository struct {
	mu            sync.RWMutex
	notifications []*Notification
	contacts      map[uuid.UUID]*Contact
	tokens        map[uuid.UUID][]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		contacts: make(map[uuid.UUID]*Contact),
		tokens:   make(map[uuid.UUID][]string),
	}
}

// PutContact inserts or replaces a contact
func (r *MemoryRepository) PutContact(c *Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contacts[c.UserID] = &cp
}

func (r *MemoryRepository) CreateNotification(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r *MemoryRepository) GetUserNotifications(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*Notification{}
	for _, n := range r.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == notificationID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (r *MemoryRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			marked++
		}
	}
	return marked, nil
}

func (r *MemoryRepository) DeleteNotification(ctx context.Context, notificationID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notifications {
		if n.ID == notificationID && n.UserID == userID {
			r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (r *MemoryRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.notifications[:0]
	var deleted int64
	for _, n := range r.notifications {
		if n.IsRead && n.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	r.notifications = kept
	return deleted, nil
}

func (r *MemoryRepository) GetContact(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contacts[userID]
	if !ok {
		return nil, ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) SavePushToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens[userID] {
		if t == token {
			return nil
		}
	}
	r.tokens[userID] = append(r.tokens[userID], token)
	return nil
}

func (r *MemoryRepository) GetUserPushTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.tokens[userID]...), nil
}

func (r *MemoryRepository) DeletePushTokens(ctx context.Context, tokens []string) error {
	stale := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		stale[t] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, list := range r.tokens {
		kept := list[:0]
		for _, t := range list {
			if !stale[t] {
				kept = append(kept, t)
			}
		}
		r.tokens[userID] = kept
	}
	return nil
}

