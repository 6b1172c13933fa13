package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

func seedSubscription(t *testing.T, repo *InMemorySubscriptionRepository) domain.Subscription {
	t.Helper()

	sub := domain.NewTrialSubscription("admin-1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	created, err := repo.Create(context.Background(), sub)
	require.NoError(t, err)
	return created
}

func TestCreateAndGet(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.NewNop())
	created := seedSubscription(t, repo)
	assert.EqualValues(t, 1, created.Version)

	got, err := repo.Get(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, created.AdminID, got.AdminID)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicate(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.NewNop())
	seedSubscription(t, repo)

	_, err := repo.Create(context.Background(), domain.NewTrialSubscription("admin-1", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSaveIncrementsVersion(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.NewNop())
	created := seedSubscription(t, repo)

	created.Status = domain.SubscriptionStatusActive
	saved, err := repo.Save(context.Background(), created, created.Version)
	require.NoError(t, err)
	assert.EqualValues(t, 2, saved.Version)
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.NewNop())
	created := seedSubscription(t, repo)
	ctx := context.Background()

	// Два читателя берут один снимок; первый записывает успешно.
	first := created
	second := created

	first.Status = domain.SubscriptionStatusActive
	_, err := repo.Save(ctx, first, first.Version)
	require.NoError(t, err)

	// Второй пишет по устаревшей версии и отклоняется.
	second.Status = domain.SubscriptionStatusSuspended
	_, err = repo.Save(ctx, second, second.Version)
	assert.ErrorIs(t, err, ErrStaleVersion)

	// Состояние осталось от первой записи.
	got, err := repo.Get(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
}

func TestGetReturnsDeepCopy(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.NewNop())
	created := seedSubscription(t, repo)

	created.PaymentHistory = append(created.PaymentHistory, domain.PaymentRecord{
		ID:         "p1",
		AttemptID:  "attempt-1",
		RawDetails: map[string]string{"paypalEmail": "a@b.example"},
	})
	saved, err := repo.Save(context.Background(), created, created.Version)
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), "admin-1")
	require.NoError(t, err)

	// Изменение полученного снимка не задевает хранилище.
	got.PaymentHistory[0].RawDetails["paypalEmail"] = "tampered"
	got.PaymentHistory = append(got.PaymentHistory, domain.PaymentRecord{ID: "p2"})

	fresh, err := repo.Get(context.Background(), "admin-1")
	require.NoError(t, err)
	require.Len(t, fresh.PaymentHistory, 1)
	assert.Equal(t, "a@b.example", fresh.PaymentHistory[0].RawDetails["paypalEmail"])
	assert.EqualValues(t, saved.Version, fresh.Version)
}

func TestAttemptRepository(t *testing.T) {
	repo := NewInMemoryAttemptRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "admin-1")
	assert.ErrorIs(t, err, ErrNotFound)

	attempt := domain.UpgradeAttempt{
		ID:      "attempt-1",
		AdminID: "admin-1",
		State:   domain.UpgradeStateChoosingMethod,
	}
	require.NoError(t, repo.Put(ctx, attempt))

	got, err := repo.Get(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", got.ID)

	// Put заменяет попытку целиком: одна попытка на администратора.
	attempt.State = domain.UpgradeStateVerifying
	require.NoError(t, repo.Put(ctx, attempt))
	got, err = repo.Get(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateVerifying, got.State)

	require.NoError(t, repo.Delete(ctx, "admin-1"))
	_, err = repo.Get(ctx, "admin-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDestinationStore(t *testing.T) {
	store := NewInMemoryDestinationStore(map[string]map[string]string{
		"paypal": {"paypalEmail": "owner@business.example"},
	})
	ctx := context.Background()

	config, err := store.GetConfig(ctx, "paypal")
	require.NoError(t, err)
	assert.Equal(t, "owner@business.example", config["paypalEmail"])

	_, err = store.GetConfig(ctx, "bank_transfer")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetConfig(ctx, "bank_transfer", map[string]string{"accountNumber": "123"}))
	config, err = store.GetConfig(ctx, "bank_transfer")
	require.NoError(t, err)
	assert.Equal(t, "123", config["accountNumber"])
}
