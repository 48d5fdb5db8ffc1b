// internal/notification/handlers.go

package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/auth"
	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
)

const (
	defaultInboxLimit = 20
	maxInboxLimit     = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	repo   Repository
	hub    *Hub
	logger *zap.Logger
}

func NewHandler(repo Repository, hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, hub: hub, logger: logger}
}

// GetNotifications retrieves notifications for the authenticated user
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	notifications, err := h.repo.GetUserNotifications(r.Context(), identity.UserID, limit, unreadOnly)
	if err != nil {
		h.logger.Error("failed to get notifications", zap.Error(err))
		utils.ErrorResponse(w, "Failed to get notifications", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"notifications": notifications}, http.StatusOK)
}

// MarkAsRead marks a notification as read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	notificationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}

	if err := h.repo.MarkAsRead(r.Context(), notificationID, identity.UserID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			utils.ErrorResponse(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to mark notification read", zap.Error(err))
		utils.ErrorResponse(w, "Failed to mark notification as read", http.StatusInternalServerError)
		return
	}

	utils.RespondWithMessage(w, http.StatusOK, nil, "Notification marked as read")
}

// MarkAllAsRead marks all of the user's notifications as read
func (h *Handler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	marked, err := h.repo.MarkAllAsRead(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to mark all notifications read", zap.Error(err))
		utils.ErrorResponse(w, "Failed to mark all as read", http.StatusInternalServerError)
		return
	}

	utils.RespondWithMessage(w, http.StatusOK, map[string]interface{}{"updated": marked}, "All notifications marked as read")
}

// DeleteNotification deletes one of the user's notifications
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	notificationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteNotification(r.Context(), notificationID, identity.UserID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			utils.ErrorResponse(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete notification", zap.Error(err))
		utils.ErrorResponse(w, "Failed to delete notification", http.StatusInternalServerError)
		return
	}

	utils.RespondWithMessage(w, http.StatusOK, nil, "Notification deleted successfully")
}

// RegisterPushToken stores a device token for push delivery
func (h *Handler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req RegisterPushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.SavePushToken(r.Context(), identity.UserID, req.Token, req.Platform); err != nil {
		h.logger.Error("failed to save push token", zap.Error(err))
		utils.ErrorResponse(w, "Failed to register push token", http.StatusInternalServerError)
		return
	}

	utils.RespondWithMessage(w, http.StatusCreated, nil, "Push token registered")
}

// ServeWS upgrades the connection and registers it with the hub
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if h.hub.IsUserOnline(identity.UserID) {
		h.logger.Info("replacing existing websocket connection", zap.String("user_id", identity.UserID.String()))
	}
	client := newClient(h.hub, conn, identity.UserID)
	h.hub.register <- client
	client.start()
}
