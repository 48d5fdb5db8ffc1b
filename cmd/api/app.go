// cmd/api/app.go
// Component wiring shared by the commands

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/common/database"
	"github.com/imadgeboyega/tutormatch-backend/internal/config"
	"github.com/imadgeboyega/tutormatch-backend/internal/eventbus"
	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
	notifications "github.com/imadgeboyega/tutormatch-backend/internal/notification"
	"github.com/imadgeboyega/tutormatch-backend/internal/profile"
)

const curriculumCacheTTL = time.Hour

type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *sqlx.DB
	redis *redis.Client
	bus   eventbus.Publisher

	repo          matching.Repository
	profiles      matching.ProfileStore
	notifications notifications.Repository
	hub           *notifications.Hub
	dispatcher    *notifications.Dispatcher
	coordinator   *matching.OfferCoordinator
}

// newApp connects the stores and builds the coordinator. Workers are not started.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.openStores(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.redis = a.openRedis(ctx)
	if a.redis != nil && a.db != nil {
		a.profiles = profile.NewCachedStore(a.profiles, a.redis, curriculumCacheTTL, logger.Named("profiles"))
	}

	a.bus = a.openBus()

	senders, err := buildSenders(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	var dedupe notifications.Deduper
	if a.redis != nil {
		dedupe = notifications.NewRedisDeduper(a.redis, cfg.NotificationDedupeTTL)
	} else {
		dedupe = notifications.NewMemoryDeduper(cfg.NotificationDedupeTTL)
	}

	a.hub = notifications.NewHub(logger.Named("hub"))
	a.dispatcher = notifications.NewDispatcher(a.notifications, a.hub, senders, dedupe, notifications.DispatcherConfig{
		Workers:         cfg.NotificationWorkers,
		QueueSize:       cfg.NotificationQueueSize,
		MaxRetries:      cfg.NotificationMaxRetries,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerTimeout:  cfg.BreakerOpenTimeout,
	}, logger.Named("dispatcher"))

	events := matching.NewBusPublisher(a.bus)
	sessions := matching.NewSessionFactory(
		matching.FeePolicy{TotalAmount: cfg.SessionTotalAmount, TutorAmount: cfg.SessionTutorAmount},
		cfg.SessionDefaultDuration,
		a.profiles,
		a.dispatcher,
		events,
		logger.Named("sessions"),
	)

	a.coordinator = matching.NewOfferCoordinator(
		a.repo,
		a.profiles,
		a.dispatcher,
		events,
		sessions,
		matching.CoordinatorConfig{
			OfferTTL:       cfg.MatchRequestTTL,
			MatchedTTL:     cfg.MatchedRequestTTL,
			MaxNotify:      cfg.MaxTutorsToNotify,
			PriorityNotify: cfg.PriorityNotifyCount,
		},
		logger.Named("matching"),
	)

	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case "memory":
		profiles := profile.NewMemoryStore()
		contacts := notifications.NewMemoryRepository()
		seedDemo(profiles, contacts, a.logger)

		a.repo = matching.NewMemoryRepository()
		a.profiles = profiles
		a.notifications = contacts
		a.logger.Warn("using in-memory stores; data is lost on restart")
		return nil

	default:
		db, err := database.NewPostgresDBFromURL(ctx, a.cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.db = db
		a.repo = matching.NewPostgresRepository(db)
		a.profiles = profile.NewPostgresStore(db)
		a.notifications = notifications.NewPostgresRepository(db)
		a.logger.Info("connected to PostgreSQL")
		return nil
	}
}

// openRedis returns nil when Redis is not configured or unreachable
func (a *app) openRedis(ctx context.Context) *redis.Client {
	if a.cfg.RedisURL == "" {
		a.logger.Info("Redis URL not configured, using in-process dedupe")
		return nil
	}
	client, err := database.NewRedisClientFromURL(ctx, a.cfg.RedisURL)
	if err != nil {
		a.logger.Warn("Redis unavailable, continuing without it", zap.Error(err))
		return nil
	}
	a.logger.Info("connected to Redis")
	return client
}

func (a *app) openBus() eventbus.Publisher {
	if a.cfg.RabbitMQURL == "" {
		return eventbus.NewNoopPublisher(a.logger.Named("eventbus"))
	}
	bus, err := eventbus.NewRabbitMQPublisher(a.cfg.RabbitMQURL, a.logger.Named("eventbus"))
	if err != nil {
		a.logger.Warn("RabbitMQ unavailable, events will not be published", zap.Error(err))
		return eventbus.NewNoopPublisher(a.logger.Named("eventbus"))
	}
	return bus
}

func (a *app) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn("event bus close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildSenders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notifications.Senders, error) {
	var senders notifications.Senders
	var err error

	switch cfg.EmailProvider {
	case "sendgrid":
		senders.Email, err = notifications.NewSendGridEmailService(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName, logger)
	case "smtp":
		senders.Email, err = notifications.NewSMTPEmailService(notifications.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		}, logger)
	default:
		senders.Email = notifications.NewMockEmailService(logger)
	}
	if err != nil {
		return senders, fmt.Errorf("email provider: %w", err)
	}

	switch cfg.SMSProvider {
	case "twilio":
		senders.SMS, err = notifications.NewTwilioSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
		if err != nil {
			return senders, fmt.Errorf("sms provider: %w", err)
		}
	default:
		senders.SMS = notifications.NewMockSMSService(logger)
	}

	if cfg.EnablePushNotifications {
		senders.Push, err = notifications.NewFCMPushService(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseCredentialsJSON, logger)
		if err != nil {
			return senders, fmt.Errorf("push provider: %w", err)
		}
	} else if !cfg.IsProduction() {
		senders.Push = notifications.NewMockPushService(logger)
	}

	return senders, nil
}
