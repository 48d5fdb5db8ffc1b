// internal/common/utils/jwt.go
// JWT token generation and validation

package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// JWTClaims is the identity carried by an access token
type JWTClaims struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`       // PARENT, TUTOR or ADMIN
	ProfileID uuid.UUID `json:"profile_id"` // parent or tutor profile of the user
	Email     string    `json:"email"`
	Type      string    `json:"type"` // "access" or "refresh"
	ExpiresAt int64     `json:"exp"`
	IssuedAt  int64     `json:"iat"`
	Issuer    string    `json:"iss"`
}

// GenerateJWT creates a signed HS256 token
func GenerateJWT(claims *JWTClaims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    claims.UserID.String(),
		"role":       claims.Role,
		"profile_id": claims.ProfileID.String(),
		"email":      claims.Email,
		"type":       claims.Type,
		"exp":        claims.ExpiresAt,
		"iat":        claims.IssuedAt,
		"iss":        claims.Issuer,
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// NewAccessClaims fills in the standard fields of an access token
func NewAccessClaims(userID, profileID uuid.UUID, role, email string, ttl time.Duration) *JWTClaims {
	now := time.Now()
	return &JWTClaims{
		UserID:    userID,
		Role:      role,
		ProfileID: profileID,
		Email:     email,
		Type:      "access",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Issuer:    "tutormatch",
	}
}

// ValidateJWT validates a JWT token and returns claims
func ValidateJWT(tokenString string, secret string) (*JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	userID, err := uuid.Parse(getStringClaim(claims, "user_id"))
	if err != nil {
		return nil, errors.New("invalid user_id in token")
	}

	// Admin tokens may carry no profile
	profileID := uuid.Nil
	if raw := getStringClaim(claims, "profile_id"); raw != "" {
		profileID, err = uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("invalid profile_id in token")
		}
	}

	return &JWTClaims{
		UserID:    userID,
		Role:      getStringClaim(claims, "role"),
		ProfileID: profileID,
		Email:     getStringClaim(claims, "email"),
		Type:      getStringClaim(claims, "type"),
		ExpiresAt: getInt64Claim(claims, "exp"),
		IssuedAt:  getInt64Claim(claims, "iat"),
		Issuer:    getStringClaim(claims, "iss"),
	}, nil
}

// Helper functions to safely extract claims
func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Claim(claims jwt.MapClaims, key string) int64 {
	if val, ok := claims[key].(float64); ok {
		return int64(val)
	}
	return 0
}
