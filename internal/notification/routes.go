// internal/notification/routes.go

package notifications

import (
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/tutormatch-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/notifications").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("", handler.GetNotifications).Methods("GET")
	api.HandleFunc("/read-all", handler.MarkAllAsRead).Methods("PUT")
	api.HandleFunc("/{id}/read", handler.MarkAsRead).Methods("PUT")
	api.HandleFunc("/push-token", handler.RegisterPushToken).Methods("POST")
	api.HandleFunc("/{id}", handler.DeleteNotification).Methods("DELETE")

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(authMiddleware.Authenticate)
	ws.HandleFunc("", handler.ServeWS).Methods("GET")
}
