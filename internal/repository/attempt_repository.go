package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
)

// AttemptRepository хранит текущие попытки апгрейда.
// На администратора допускается не более одной попытки одновременно;
// хранение переживает исчезновение вызывающего в состоянии processing,
// что позволяет безопасно возобновить расчет.
type AttemptRepository interface {
	// Get возвращает текущую попытку администратора.
	Get(ctx context.Context, adminID string) (domain.UpgradeAttempt, error)
	// Put создает или заменяет попытку администратора.
	Put(ctx context.Context, attempt domain.UpgradeAttempt) error
	// Delete удаляет попытку (возврат администратора в idle).
	Delete(ctx context.Context, adminID string) error
}

// InMemoryAttemptRepository реализация хранилища попыток в памяти
type InMemoryAttemptRepository struct {
	attempts map[string]domain.UpgradeAttempt
	mutex    sync.RWMutex
}

// NewInMemoryAttemptRepository создает новое хранилище попыток
func NewInMemoryAttemptRepository() *InMemoryAttemptRepository {
	return &InMemoryAttemptRepository{
		attempts: make(map[string]domain.UpgradeAttempt),
	}
}

// Get возвращает попытку администратора
func (r *InMemoryAttemptRepository) Get(ctx context.Context, adminID string) (domain.UpgradeAttempt, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	attempt, exists := r.attempts[adminID]
	if !exists {
		return domain.UpgradeAttempt{}, ErrNotFound
	}

	return attempt, nil
}

// Put сохраняет попытку администратора
func (r *InMemoryAttemptRepository) Put(ctx context.Context, attempt domain.UpgradeAttempt) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	attempt.UpdatedAt = time.Now()
	r.attempts[attempt.AdminID] = attempt

	return nil
}

// Delete удаляет попытку администратора
func (r *InMemoryAttemptRepository) Delete(ctx context.Context, adminID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.attempts, adminID)

	return nil
}
