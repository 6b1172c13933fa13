package repository

import (
	"context"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// CachedSubscriptionRepository оборачивает основное хранилище read-through
// кешем. Кеш — только ускорение чтения: любая запись идет в основное
// хранилище и инвалидирует кеш, ошибки кеша не прерывают операцию.
type CachedSubscriptionRepository struct {
	inner SubscriptionRepository
	cache *RedisCache
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает кеширующую обертку.
func NewCachedSubscriptionRepository(inner SubscriptionRepository, cache *RedisCache, log *logger.Logger) *CachedSubscriptionRepository {
	return &CachedSubscriptionRepository{
		inner: inner,
		cache: cache,
		log:   log,
	}
}

// Get возвращает снимок из кеша или основного хранилища
func (r *CachedSubscriptionRepository) Get(ctx context.Context, adminID string) (domain.Subscription, error) {
	cached, err := r.cache.GetSubscription(ctx, adminID)
	if err != nil {
		r.log.Warnw("Cache read failed, falling back to primary store", "adminID", adminID, "error", err)
	} else if cached != nil {
		return *cached, nil
	}

	sub, err := r.inner.Get(ctx, adminID)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.SetSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to populate subscription cache", "adminID", adminID, "error", err)
	}

	return sub, nil
}

// Create создает запись в основном хранилище
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	created, err := r.inner.Create(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.SetSubscription(ctx, created); err != nil {
		r.log.Warnw("Failed to cache created subscription", "adminID", created.AdminID, "error", err)
	}

	return created, nil
}

// Save сохраняет запись и инвалидирует кеш.
// Инвалидация до записи исключает окно, в котором кеш отдает
// устаревший снимок с еще актуальной версией.
func (r *CachedSubscriptionRepository) Save(ctx context.Context, sub domain.Subscription, expectedVersion int64) (domain.Subscription, error) {
	if err := r.cache.DeleteSubscription(ctx, sub.AdminID); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache", "adminID", sub.AdminID, "error", err)
	}

	saved, err := r.inner.Save(ctx, sub, expectedVersion)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.SetSubscription(ctx, saved); err != nil {
		r.log.Warnw("Failed to cache saved subscription", "adminID", saved.AdminID, "error", err)
	}

	return saved, nil
}
