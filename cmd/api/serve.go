// cmd/api/serve.go

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/auth"
	"github.com/imadgeboyega/tutormatch-backend/internal/common/database"
	"github.com/imadgeboyega/tutormatch-backend/internal/common/utils"
	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
	notifications "github.com/imadgeboyega/tutormatch-backend/internal/notification"
)

var startTime = time.Now()

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the notification workers and the expiry sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving (postgres driver only)")
	return cmd
}

func serve(ctx context.Context, migrate bool) error {
	log.Info("starting tutormatch",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
	)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if migrate && a.db != nil {
		migrator, err := database.NewMigrator(a.db.DB, log.Named("migrate"))
		if err != nil {
			return err
		}
		if err := migrator.Up(ctx); err != nil {
			return err
		}
	}

	// Deliveries already queued at shutdown still go out
	go a.hub.Run(ctx)
	a.dispatcher.Start(context.WithoutCancel(ctx))
	defer a.dispatcher.Close()

	go matching.NewScheduler(a.coordinator, cfg.ExpirySweepInterval, log.Named("scheduler")).Start(ctx)
	go notifications.NewCleanupJob(a.notifications, cfg.NotificationCleanupInterval, cfg.NotificationRetention, log.Named("cleanup")).Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      newRouter(a),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("base_url", cfg.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited gracefully")
	return nil
}

func newRouter(a *app) *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware(a.logger.Named("http")))
	router.Use(corsMiddleware)

	router.HandleFunc("/health", healthCheck(a.hub)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	authMiddleware := auth.NewMiddleware(a.cfg.JWTSecret, a.logger.Named("auth"))

	matching.RegisterRoutes(router, matching.NewHandler(a.coordinator, a.logger.Named("matching")), authMiddleware)
	notifications.RegisterRoutes(router, notifications.NewHandler(a.notifications, a.hub, a.logger.Named("notifications")), authMiddleware)

	return router
}

// healthCheck returns server health status
func healthCheck(hub *notifications.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.SuccessResponse(w, map[string]interface{}{
			"status":            "healthy",
			"timestamp":         time.Now().Format(time.RFC3339),
			"uptime":            time.Since(startTime).String(),
			"activeConnections": hub.GetActiveConnections(),
		}, http.StatusOK)
	}
}
