package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// SubscriptionRepository контракт хранилища подписок.
// Save принимает ожидаемую версию снимка: запись с устаревшей версией
// отклоняется с ErrStaleVersion (оптимистичная блокировка, см. Get).
type SubscriptionRepository interface {
	// Get возвращает текущий снимок подписки администратора.
	Get(ctx context.Context, adminID string) (domain.Subscription, error)
	// Save сохраняет подписку, если ее текущая версия равна expectedVersion.
	// Возвращает сохраненный снимок с увеличенной версией.
	Save(ctx context.Context, sub domain.Subscription, expectedVersion int64) (domain.Subscription, error)
	// Create создает запись подписки для нового администратора.
	Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error)
}

// InMemorySubscriptionRepository реализация хранилища подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[string]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новое хранилище подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[string]domain.Subscription),
		log:           log,
	}
}

// Get возвращает снимок подписки по ID администратора
func (r *InMemorySubscriptionRepository) Get(ctx context.Context, adminID string) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.subscriptions[adminID]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	return cloneSubscription(sub), nil
}

// Create создает запись подписки
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.subscriptions[sub.AdminID]; exists {
		return domain.Subscription{}, ErrDuplicate
	}

	sub.Version = 1
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	r.subscriptions[sub.AdminID] = cloneSubscription(sub)

	return sub, nil
}

// Save сохраняет подписку с проверкой версии
func (r *InMemorySubscriptionRepository) Save(ctx context.Context, sub domain.Subscription, expectedVersion int64) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, exists := r.subscriptions[sub.AdminID]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	if current.Version != expectedVersion {
		r.log.Warnw("Rejected stale subscription write",
			"adminID", sub.AdminID, "expectedVersion", expectedVersion, "currentVersion", current.Version)
		return domain.Subscription{}, ErrStaleVersion
	}

	sub.Version = expectedVersion + 1
	sub.UpdatedAt = time.Now()
	r.subscriptions[sub.AdminID] = cloneSubscription(sub)

	return sub, nil
}

// cloneSubscription делает глубокую копию, чтобы вызывающие не могли
// изменить историю платежей в обход Save.
func cloneSubscription(sub domain.Subscription) domain.Subscription {
	out := sub

	if sub.PaymentHistory != nil {
		out.PaymentHistory = make([]domain.PaymentRecord, len(sub.PaymentHistory))
		copy(out.PaymentHistory, sub.PaymentHistory)
		for i, rec := range out.PaymentHistory {
			out.PaymentHistory[i].RawDetails = cloneMap(rec.RawDetails)
			out.PaymentHistory[i].OwnerConfigSnapshot = cloneMap(rec.OwnerConfigSnapshot)
		}
	}

	if sub.PaymentDestination != nil {
		dest := *sub.PaymentDestination
		dest.OwnerConfig = cloneMap(sub.PaymentDestination.OwnerConfig)
		dest.AdminPaymentDetails = cloneMap(sub.PaymentDestination.AdminPaymentDetails)
		out.PaymentDestination = &dest
	}

	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
