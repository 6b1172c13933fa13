package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/internal/metrics"
	"github.com/Dhoini/Subscription-microservice/internal/repository"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// OwnerController выполняет административные операции владельца над
// подписками администраторов в обход платежного потока. Операции не
// изменяют историю платежей и не порождают уведомлений; выполняются
// над свежим снимком с проверкой версии.
type OwnerController struct {
	subs    repository.SubscriptionRepository
	metrics metrics.SubscriptionMetrics
	log     *logger.Logger
	now     func() time.Time
}

// NewOwnerController создает контроллер операций владельца.
func NewOwnerController(subs repository.SubscriptionRepository, m metrics.SubscriptionMetrics, log *logger.Logger) *OwnerController {
	return &OwnerController{
		subs:    subs,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// WithClock заменяет источник времени. Используется в тестах.
func (c *OwnerController) WithClock(now func() time.Time) *OwnerController {
	c.now = now
	return c
}

// ForceActivate принудительно активирует подписку администратора.
// Допустимо из любого статуса, кроме active. Проставляет отметку
// активации; история платежей и даты оплаты не затрагиваются.
func (c *OwnerController) ForceActivate(ctx context.Context, ownerID, adminID string) (domain.Subscription, error) {
	sub, err := c.load(ctx, adminID, "forceActivate")
	if err != nil {
		return domain.Subscription{}, err
	}

	if sub.Status == domain.SubscriptionStatusActive {
		c.incOverrideRejected("forceActivate")
		return domain.Subscription{}, domain.NewInvalidTransition(string(sub.Status), "forceActivate")
	}

	now := c.now()
	sub.Status = domain.SubscriptionStatusActive
	sub.ActivatedAt = &now
	sub.ActivatedBy = ownerID

	saved, err := c.save(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	if c.metrics != nil {
		c.metrics.IncOwnerOverride("force_activate")
	}
	c.log.Infow("Subscription force-activated by owner", "adminID", adminID, "ownerID", ownerID)
	return saved, nil
}

// Suspend приостанавливает активную подписку администратора.
// Допустимо только из статуса active. Проставляет отметку деактивации.
func (c *OwnerController) Suspend(ctx context.Context, ownerID, adminID string) (domain.Subscription, error) {
	sub, err := c.load(ctx, adminID, "suspend")
	if err != nil {
		return domain.Subscription{}, err
	}

	if sub.Status != domain.SubscriptionStatusActive {
		c.incOverrideRejected("suspend")
		return domain.Subscription{}, domain.NewInvalidTransition(string(sub.Status), "suspend")
	}

	now := c.now()
	sub.Status = domain.SubscriptionStatusSuspended
	sub.DeactivatedAt = &now
	sub.DeactivatedBy = ownerID

	saved, err := c.save(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	if c.metrics != nil {
		c.metrics.IncOwnerOverride("suspend")
	}
	c.log.Infow("Subscription suspended by owner", "adminID", adminID, "ownerID", ownerID)
	return saved, nil
}

func (c *OwnerController) load(ctx context.Context, adminID, event string) (domain.Subscription, error) {
	sub, err := c.subs.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.NewInvalidTransition("none", event)
		}
		return domain.Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub, nil
}

func (c *OwnerController) save(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	saved, err := c.subs.Save(ctx, sub, sub.Version)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return domain.Subscription{}, domain.ErrStaleSnapshot
		}
		return domain.Subscription{}, fmt.Errorf("failed to save subscription: %w", err)
	}
	return saved, nil
}

func (c *OwnerController) incOverrideRejected(event string) {
	if c.metrics != nil {
		c.metrics.IncInvalidTransition(event)
	}
}
