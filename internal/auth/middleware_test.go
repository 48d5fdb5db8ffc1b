package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
)

const secret = "middleware-secret"

func issue(t *testing.T, role Role, profileID uuid.UUID) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := utils.GenerateJWT(utils.NewAccessClaims(userID, profileID, string(role), "user@example.com", time.Hour), secret)
	require.NoError(t, err)
	return token, userID
}

func TestAuthenticate(t *testing.T) {
	m := NewMiddleware(secret, zap.NewNop())
	profileID := uuid.New()
	token, userID := issue(t, RoleTutor, profileID)

	var seen Identity
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusNoContent},
		{"query token", "", token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"tampered", "Bearer " + token + "x", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, userID, seen.UserID)
	assert.Equal(t, profileID, seen.ProfileID)
	assert.Equal(t, RoleTutor, seen.Role)
}

func TestAuthenticate_RejectsRefreshTokens(t *testing.T) {
	m := NewMiddleware(secret, zap.NewNop())
	claims := utils.NewAccessClaims(uuid.New(), uuid.New(), string(RoleParent), "", time.Hour)
	claims.Type = "refresh"
	token, err := utils.GenerateJWT(claims, secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Authenticate(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	m := NewMiddleware(secret, zap.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	parentsOnly := m.RequireRole(RoleParent)(ok)

	serve := func(identity *Identity) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if identity != nil {
			req = req.WithContext(WithIdentity(req.Context(), *identity))
		}
		rec := httptest.NewRecorder()
		parentsOnly.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(&Identity{UserID: uuid.New(), Role: RoleParent, ProfileID: uuid.New()}))
	assert.Equal(t, http.StatusForbidden, serve(&Identity{UserID: uuid.New(), Role: RoleTutor, ProfileID: uuid.New()}))
	assert.Equal(t, http.StatusForbidden, serve(&Identity{UserID: uuid.New(), Role: RoleParent}))
	assert.Equal(t, http.StatusUnauthorized, serve(nil))
}
