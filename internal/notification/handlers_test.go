package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/auth"
	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

const testSecret = "notification-test-secret"

func newTestRouter(repo Repository, hub *Hub) *mux.Router {
	router := mux.NewRouter()
	RegisterRoutes(router, NewHandler(repo, hub, zap.NewNop()), auth.NewMiddleware(testSecret, zap.NewNop()))
	return router
}

func bearer(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := utils.GenerateJWT(utils.NewAccessClaims(userID, uuid.New(), string(auth.RoleParent), "", time.Hour), testSecret)
	require.NoError(t, err)
	return token
}

func TestHandler_InboxAndMarkAsRead(t *testing.T) {
	repo := NewMemoryRepository()
	router := newTestRouter(repo, NewHub(zap.NewNop()))
	user := uuid.New()
	ctx := context.Background()

	older := &Notification{ID: uuid.New(), UserID: user, Type: matching.NotificationMatchFound, Title: "Tutor Matched!", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &Notification{ID: uuid.New(), UserID: user, Type: matching.NotificationSessionConfirmed, Title: "Session Confirmed", CreatedAt: time.Now()}
	require.NoError(t, repo.CreateNotification(ctx, older))
	require.NoError(t, repo.CreateNotification(ctx, newer))
	require.NoError(t, repo.CreateNotification(ctx, &Notification{ID: uuid.New(), UserID: uuid.New(), CreatedAt: time.Now()}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+bearer(t, user))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Notifications []Notification `json:"notifications"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Notifications, 2)
	assert.Equal(t, newer.ID, body.Data.Notifications[0].ID)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/notifications/"+older.ID.String()+"/read", nil)
	req.Header.Set("Authorization", "Bearer "+bearer(t, user))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	unread, err := repo.GetUserNotifications(ctx, user, 10, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, newer.ID, unread[0].ID)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/notifications/"+older.ID.String()+"/read", nil)
	req.Header.Set("Authorization", "Bearer "+bearer(t, uuid.New()))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_RegisterPushToken(t *testing.T) {
	repo := NewMemoryRepository()
	router := newTestRouter(repo, NewHub(zap.NewNop()))
	user := uuid.New()

	send := func(payload string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/push-token", bytes.NewBufferString(payload))
		req.Header.Set("Authorization", "Bearer "+bearer(t, user))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send(`{"token":"fcm-device-token-1234","platform":"android"}`))
	assert.Equal(t, http.StatusCreated, send(`{"token":"fcm-device-token-1234","platform":"android"}`))
	assert.Equal(t, http.StatusBadRequest, send(`{"token":"short"}`))
	assert.Equal(t, http.StatusBadRequest, send(`{"token":"fcm-device-token-5678","platform":"symbian"}`))
	assert.Equal(t, http.StatusBadRequest, send(`not json`))

	tokens, err := repo.GetUserPushTokens(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, []string{"fcm-device-token-1234"}, tokens)
}

func TestHandler_RequiresAuthentication(t *testing.T) {
	router := newTestRouter(NewMemoryRepository(), NewHub(zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebsocket_ReceivesInAppDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewMemoryRepository()
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	server := httptest.NewServer(newTestRouter(repo, hub))
	defer server.Close()

	user := uuid.New()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + bearer(t, user)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsUserOnline(user) }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.GetActiveConnections())

	d := NewDispatcher(repo, hub, Senders{}, NewMemoryDeduper(time.Hour), DispatcherConfig{Workers: 1, QueueSize: 8}, zap.NewNop())
	d.Start(ctx)
	require.NoError(t, d.NotifySingle(ctx, user, matching.NotificationMatchFound, map[string]string{
		"requestId": uuid.NewString(),
		"tutorName": "Nimal",
	}))
	d.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame WSMessage
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, "match:found", frame.Type)

	var n Notification
	require.NoError(t, json.Unmarshal(frame.Data, &n))
	assert.Equal(t, user, n.UserID)
	assert.Equal(t, "Tutor Matched!", n.Title)
}

func TestHub_SendToOfflineUser(t *testing.T) {
	hub := NewHub(zap.NewNop())
	assert.False(t, hub.SendToUser(uuid.New(), "match:new", map[string]string{"a": "b"}))
	assert.False(t, hub.IsUserOnline(uuid.New()))
}

func TestHandler_MarkAllAsReadAndDelete(t *testing.T) {
	repo := NewMemoryRepository()
	router := newTestRouter(repo, NewHub(zap.NewNop()))
	user, other := uuid.New(), uuid.New()
	ctx := context.Background()

	first := &Notification{ID: uuid.New(), UserID: user, Type: matching.NotificationOffer, CreatedAt: time.Now().Add(-time.Minute)}
	second := &Notification{ID: uuid.New(), UserID: user, Type: matching.NotificationMatchFound, CreatedAt: time.Now()}
	foreign := &Notification{ID: uuid.New(), UserID: other, Type: matching.NotificationOffer, CreatedAt: time.Now()}
	for _, n := range []*Notification{first, second, foreign} {
		require.NoError(t, repo.CreateNotification(ctx, n))
	}

	send := func(method, path string, userID uuid.UUID) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+bearer(t, userID))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPut, "/api/v1/notifications/read-all", user))
	unread, err := repo.GetUserNotifications(ctx, user, 10, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
	unread, err = repo.GetUserNotifications(ctx, other, 10, true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	assert.Equal(t, http.StatusNotFound, send(http.MethodDelete, "/api/v1/notifications/"+foreign.ID.String(), user))
	assert.Equal(t, http.StatusBadRequest, send(http.MethodDelete, "/api/v1/notifications/not-a-uuid", user))
	assert.Equal(t, http.StatusOK, send(http.MethodDelete, "/api/v1/notifications/"+first.ID.String(), user))
	assert.Equal(t, http.StatusNotFound, send(http.MethodDelete, "/api/v1/notifications/"+first.ID.String(), user))

	left, err := repo.GetUserNotifications(ctx, user, 10, false)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, second.ID, left[0].ID)
}
