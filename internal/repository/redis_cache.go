package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

const (
	// Префикс ключей снимков подписок
	subscriptionKeyPrefix = "subscription:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCache кеширует снимки подписок в Redis.
type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCache создает новый Redis-кеш и проверяет соединение.
func NewRedisCache(addr, password string, db int, log *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return &RedisCache{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// SetSubscription кеширует снимок подписки
func (r *RedisCache) SetSubscription(ctx context.Context, sub domain.Subscription) error {
	key := subscriptionKeyPrefix + sub.AdminID

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache subscription: %w", err)
	}

	r.log.Debugw("Subscription cached", "adminID", sub.AdminID, "version", sub.Version)
	return nil
}

// GetSubscription возвращает снимок из кеша; (nil, nil) при промахе.
func (r *RedisCache) GetSubscription(ctx context.Context, adminID string) (*domain.Subscription, error) {
	key := subscriptionKeyPrefix + adminID

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}

	return &sub, nil
}

// DeleteSubscription удаляет снимок из кеша
func (r *RedisCache) DeleteSubscription(ctx context.Context, adminID string) error {
	key := subscriptionKeyPrefix + adminID

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete subscription from cache: %w", err)
	}

	return nil
}
