package matching

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/imadgeboyega/tutormatch-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	parentOnly := authMiddleware.RequireRole(auth.RoleParent)
	tutorOnly := authMiddleware.RequireRole(auth.RoleTutor)

	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Parent side
	api.Handle("/request", parentOnly(http.HandlerFunc(handler.CreateMatchRequest))).Methods("POST")
	api.Handle("/{id}/confirm", parentOnly(http.HandlerFunc(handler.ConfirmMatch))).Methods("POST")
	api.Handle("/{id}/cancel", parentOnly(http.HandlerFunc(handler.CancelMatch))).Methods("POST")

	// Tutor side
	api.Handle("/notifications", tutorOnly(http.HandlerFunc(handler.GetMatchNotifications))).Methods("GET")
	api.Handle("/{id}/accept", tutorOnly(http.HandlerFunc(handler.AcceptMatch))).Methods("POST")

	api.HandleFunc("/{id}", handler.GetMatchRequest).Methods("GET")

	sessions := router.PathPrefix("/api/v1/sessions").Subrouter()
	sessions.Use(authMiddleware.Authenticate)
	sessions.HandleFunc("/{id}", handler.GetSession).Methods("GET")
}
