package app

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhoini/Subscription-microservice/config"
	"github.com/Dhoini/Subscription-microservice/internal/api/rest/handlers"
	"github.com/Dhoini/Subscription-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Subscription-microservice/internal/kafka"
	"github.com/Dhoini/Subscription-microservice/internal/methods"
	"github.com/Dhoini/Subscription-microservice/internal/metrics"
	"github.com/Dhoini/Subscription-microservice/internal/notify"
	"github.com/Dhoini/Subscription-microservice/internal/pricing"
	"github.com/Dhoini/Subscription-microservice/internal/repository"
	"github.com/Dhoini/Subscription-microservice/internal/subscription"
	"github.com/Dhoini/Subscription-microservice/internal/verification"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// OwnerID получатель всех уведомлений о платежах. В приложении один
// владелец; его идентификатор фиксирован.
const OwnerID = "owner"

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config              *config.Config
	Catalog             *pricing.Catalog
	Registry            *methods.Registry
	Machine             *subscription.StateMachine
	OwnerController     *subscription.OwnerController
	SubscriptionHandler *handlers.SubscriptionHandler
	OwnerHandler        *handlers.OwnerHandler
	AuthMiddleware      *middleware.JWTMiddleware
	Metrics             metrics.SubscriptionMetrics
	Logger              *logger.Logger

	closers []func() error
}

// NewApp создает и инициализирует новый экземпляр приложения.
// Выбор реализаций хранилищ и транспорта уведомлений определяется
// конфигурацией: без PostgreSQL/Redis/Kafka приложение работает
// на реализациях в памяти.
func NewApp(ctx context.Context, cfg *config.Config, promRegistry *prometheus.Registry, log *logger.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: log,
	}

	now := time.Now()

	a.Catalog = pricing.NewCatalog(pricing.DefaultPlans(now), log.Named("pricing"))
	a.Registry = methods.NewRegistry(methods.DefaultSpecs())
	a.Metrics = metrics.NewSubscriptionMetrics(promRegistry)

	subs, err := a.buildSubscriptionRepository(ctx, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	destinations, err := a.buildDestinationStore(log)
	if err != nil {
		a.Close()
		return nil, err
	}

	inbox, err := a.buildInbox(log)
	if err != nil {
		a.Close()
		return nil, err
	}
	dispatcher := notify.NewDispatcher(inbox, OwnerID, cfg.Notify.DeliveryTimeout, a.Metrics, log.Named("notify"))

	sender := verification.NewMediumSender(
		verification.NewEmailSender(verification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log.Named("email")),
		verification.NewLogSMSSender(log.Named("sms")),
	)
	issuer := verification.NewCodeIssuer(sender, log.Named("verification"))

	attempts := repository.NewInMemoryAttemptRepository()

	a.Machine = subscription.NewStateMachine(
		a.Catalog, a.Registry, issuer, subs, attempts, destinations, dispatcher, a.Metrics, log.Named("machine"))
	a.OwnerController = subscription.NewOwnerController(subs, a.Metrics, log.Named("owner"))

	a.SubscriptionHandler = handlers.NewSubscriptionHandler(a.Machine, a.Catalog, log)
	a.OwnerHandler = handlers.NewOwnerHandler(a.OwnerController, a.Catalog, destinations, log)
	a.AuthMiddleware = middleware.NewJWTMiddleware(
		&middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}, log)

	return a, nil
}

// Close освобождает все подключения приложения в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warnw("Failed to close component", "error", err)
		}
	}
}

func (a *App) buildSubscriptionRepository(ctx context.Context, log *logger.Logger) (repository.SubscriptionRepository, error) {
	cfg := a.Config

	var subs repository.SubscriptionRepository
	if cfg.Database.DSN != "" {
		pool, err := repository.NewPostgresPool(ctx, cfg.Database.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		subs = repository.NewPostgresSubscriptionRepository(pool, log.Named("pg"))
	} else {
		subs = repository.NewInMemorySubscriptionRepository(log.Named("mem"))
	}

	if cfg.Redis.Enabled {
		cache, err := repository.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log.Named("redis"))
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, cache.Close)
		subs = repository.NewCachedSubscriptionRepository(subs, cache, log.Named("cache"))
	}

	return subs, nil
}

func (a *App) buildDestinationStore(log *logger.Logger) (repository.DestinationStore, error) {
	if a.Config.Database.DSN != "" {
		store, err := repository.NewPostgresDestinationStore(a.Config.Database.DSN, log.Named("destinations"))
		if err != nil {
			return nil, fmt.Errorf("destination store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return repository.NewInMemoryDestinationStore(nil), nil
}

func (a *App) buildInbox(log *logger.Logger) (notify.Inbox, error) {
	cfg := a.Config
	if !cfg.Kafka.Enabled {
		return notify.NewInMemoryInbox(), nil
	}

	if err := kafka.EnsureTopics(cfg.Kafka.Brokers, []string{cfg.Kafka.OwnerInboxTopic}, log.Named("kafka")); err != nil {
		return nil, fmt.Errorf("kafka topics: %w", err)
	}

	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafka.NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	inbox := notify.NewKafkaInbox(producer, cfg.Kafka.OwnerInboxTopic, log.Named("inbox"))
	a.closers = append(a.closers, inbox.Close)
	return inbox, nil
}
