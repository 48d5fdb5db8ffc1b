package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	userID, profileID := uuid.New(), uuid.New()

	token, err := GenerateJWT(NewAccessClaims(userID, profileID, "TUTOR", "tutor@example.com", time.Hour), "secret")
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, profileID, claims.ProfileID)
	assert.Equal(t, "TUTOR", claims.Role)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "tutormatch", claims.Issuer)
}

func TestJWT_Rejects(t *testing.T) {
	token, err := GenerateJWT(NewAccessClaims(uuid.New(), uuid.New(), "PARENT", "", time.Hour), "secret")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateJWT(NewAccessClaims(uuid.New(), uuid.New(), "PARENT", "", -time.Minute), "secret")
	require.NoError(t, err)
	_, err = ValidateJWT(expired, "secret")
	assert.Error(t, err)

	_, err = ValidateJWT("garbage", "secret")
	assert.Error(t, err)
}
