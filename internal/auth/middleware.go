// internal/auth/middleware.go
// Bearer token authentication and role checks.
// Tokens are issued by the identity service; this side only verifies them.

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
)

// Role of an authenticated user
type Role string

const (
	RoleParent Role = "PARENT"
	RoleTutor  Role = "TUTOR"
	RoleAdmin  Role = "ADMIN"
)

// Identity is what handlers learn about the caller
type Identity struct {
	UserID    uuid.UUID
	Role      Role
	ProfileID uuid.UUID
	Email     string
}

type contextKey struct{}

// WithIdentity stores the caller's identity on a context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext extracts the identity set by Authenticate
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	identity, ok := IdentityFromContext(ctx)
	return identity.UserID, ok
}

// Middleware provides authentication middleware
type Middleware struct {
	secret string
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(secret string, logger *zap.Logger) *Middleware {
	return &Middleware{secret: secret, logger: logger}
}

// Authenticate verifies the JWT and adds the caller's identity to the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Extract token from Authorization header (or ?token= for websockets)
		token := extractToken(r)
		if token == "" {
			utils.ErrorResponse(w, "Missing or invalid authorization header", http.StatusUnauthorized)
			return
		}

		// 2. Validate token
		claims, err := utils.ValidateJWT(token, m.secret)
		if err != nil {
			m.logger.Debug("token rejected", zap.Error(err))
			utils.ErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		// 3. Only access tokens reach the API
		if claims.Type != "access" {
			utils.ErrorResponse(w, "Invalid token type", http.StatusUnauthorized)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{
			UserID:    claims.UserID,
			Role:      Role(claims.Role),
			ProfileID: claims.ProfileID,
			Email:     claims.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not listed. Use after Authenticate.
func (m *Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if identity.Role == role && identity.ProfileID != uuid.Nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.ErrorResponse(w, "Access denied for this role", http.StatusForbidden)
		})
	}
}

// extractToken supports "Bearer <token>" and a token query parameter
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return ""
		}
		return parts[1]
	}
	return r.URL.Query().Get("token")
}
