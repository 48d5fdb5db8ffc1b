// cmd/api/token.go

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/imadgeboyega/tutormatch-backend/internal/auth"
	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
)

// tokenCmd mints a bearer token signed with JWT_SECRET for local testing
func tokenCmd() *cobra.Command {
	var (
		userID    string
		profileID string
		role      string
		email     string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cfg.IsDevelopment() {
				return errors.New("token issuing is only available in development")
			}

			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			pid, err := uuid.Parse(profileID)
			if err != nil {
				return fmt.Errorf("invalid --profile: %w", err)
			}

			r := auth.Role(strings.ToUpper(role))
			if r != auth.RoleParent && r != auth.RoleTutor && r != auth.RoleAdmin {
				return fmt.Errorf("invalid --role %q", role)
			}

			token, err := utils.GenerateJWT(utils.NewAccessClaims(uid, pid, string(r), email, ttl), cfg.JWTSecret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.Flags().StringVar(&profileID, "profile", "", "parent or tutor profile ID (required)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleParent), "PARENT, TUTOR or ADMIN")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}
