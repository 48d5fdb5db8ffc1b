// cmd/api/sweep.go

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sweepCmd runs a single expiry pass, for cron-driven deployments
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale match requests once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			a.dispatcher.Start(cmd.Context())
			defer a.dispatcher.Close()

			result, err := a.coordinator.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			log.Info("sweep finished",
				zap.Int("expired_pending", result.ExpiredPending),
				zap.Int("expired_matched", result.ExpiredMatched),
			)
			return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		},
	}
}
