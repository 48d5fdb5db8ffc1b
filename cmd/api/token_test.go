package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
	"github.com/imadgeboyega/tutormatch-backend/internal/config"
)

func runTokenCmd(t *testing.T, environment string, args ...string) (string, error) {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{Environment: environment, JWTSecret: "token-test-secret"}

	cmd := tokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestTokenCmd_IssuesInDevelopment(t *testing.T) {
	user, profile := uuid.New(), uuid.New()

	token, err := runTokenCmd(t, "development", "--user", user.String(), "--profile", profile.String(), "--role", "tutor")
	require.NoError(t, err)

	claims, err := utils.ValidateJWT(token, "token-test-secret")
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID)
	assert.Equal(t, profile, claims.ProfileID)
	assert.Equal(t, "TUTOR", claims.Role)
}

func TestTokenCmd_RefusedOutsideDevelopment(t *testing.T) {
	for _, env := range []string{"production", "staging"} {
		t.Run(env, func(t *testing.T) {
			_, err := runTokenCmd(t, env, "--user", uuid.NewString(), "--profile", uuid.NewString())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "only available in development")
		})
	}
}
