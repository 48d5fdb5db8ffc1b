package matching

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/auth"
	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// CreateMatchRequest handles POST /api/v1/matching/request (parent)
func (h *Handler) CreateMatchRequest(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var dto CreateMatchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.ErrorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	request, err := h.service.CreateOffer(r.Context(), identity.ProfileID, dto)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithMessage(w, http.StatusCreated,
		map[string]interface{}{"matchRequest": request},
		"Match request created. Finding tutors...")
}

// GetMatchNotifications handles GET /api/v1/matching/notifications (tutor)
func (h *Handler) GetMatchNotifications(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	requests, err := h.service.ListOpenOffers(r.Context(), identity.ProfileID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"matchRequests": requests}, http.StatusOK)
}

// GetMatchRequest handles GET /api/v1/matching/{id}
func (h *Handler) GetMatchRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	request, err := h.service.GetRequest(r.Context(), requestID, viewerFor(identity))
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"matchRequest": request}, http.StatusOK)
}

// AcceptMatch handles POST /api/v1/matching/{id}/accept (tutor)
func (h *Handler) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	request, err := h.service.Accept(r.Context(), requestID, identity.ProfileID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithMessage(w, http.StatusOK,
		map[string]interface{}{"matchRequest": request},
		"Match accepted. Awaiting parent confirmation.")
}

// ConfirmMatch handles POST /api/v1/matching/{id}/confirm (parent)
func (h *Handler) ConfirmMatch(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	var dto ConfirmMatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.ErrorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	session, err := h.service.Confirm(r.Context(), requestID, identity.ProfileID, dto)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithMessage(w, http.StatusOK,
		map[string]interface{}{"session": session},
		"Session scheduled successfully")
}

// CancelMatch handles POST /api/v1/matching/{id}/cancel (parent)
func (h *Handler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	request, err := h.service.Cancel(r.Context(), requestID, identity.ProfileID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithMessage(w, http.StatusOK,
		map[string]interface{}{"matchRequest": request},
		"Match request cancelled")
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	session, err := h.service.GetSession(r.Context(), sessionID, viewerFor(identity))
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"session": session}, http.StatusOK)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps domain errors to HTTP statuses; anything else is a 500
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	switch kind {
	case KindNotFound:
		utils.ErrorResponseWithCode(w, err.Error(), string(kind), http.StatusNotFound)
	case KindValidation:
		utils.ErrorResponseWithCode(w, err.Error(), string(kind), http.StatusBadRequest)
	case KindUnauthorized:
		utils.ErrorResponseWithCode(w, err.Error(), string(kind), http.StatusForbidden)
	case KindConflict, KindExpired:
		utils.ErrorResponseWithCode(w, err.Error(), string(kind), http.StatusConflict)
	default:
		h.logger.Error("matching request failed", zap.Error(err))
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

func viewerFor(identity auth.Identity) Viewer {
	switch identity.Role {
	case auth.RoleParent:
		return Viewer{ParentID: identity.ProfileID}
	case auth.RoleTutor:
		return Viewer{TutorID: identity.ProfileID}
	default:
		return Viewer{}
	}
}
