package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// PostgresSubscriptionRepository реализация хранилища подписок через PostgreSQL.
// История платежей и маршрут платежа хранятся в JSONB-колонках; версия
// строки обеспечивает оптимистичную блокировку.
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новое хранилище подписок через PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

// Get возвращает снимок подписки администратора из базы данных
func (r *PostgresSubscriptionRepository) Get(ctx context.Context, adminID string) (domain.Subscription, error) {
	query := `
		SELECT
			admin_id, plan_id, billing_cycle, amount, status,
			start_date, end_date, next_payment_date, auto_renew,
			payment_history, payment_destination,
			activated_at, activated_by, deactivated_at, deactivated_by,
			version, created_at, updated_at
		FROM subscriptions
		WHERE admin_id = $1
	`

	var sub domain.Subscription
	var historyBytes, destinationBytes []byte
	var activatedAt, deactivatedAt *time.Time
	var activatedBy, deactivatedBy *string

	err := r.db.QueryRow(ctx, query, adminID).Scan(
		&sub.AdminID,
		&sub.PlanID,
		&sub.BillingCycle,
		&sub.Amount,
		&sub.Status,
		&sub.StartDate,
		&sub.EndDate,
		&sub.NextPaymentDate,
		&sub.AutoRenew,
		&historyBytes,
		&destinationBytes,
		&activatedAt,
		&activatedBy,
		&deactivatedAt,
		&deactivatedBy,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	sub.ActivatedAt = activatedAt
	sub.DeactivatedAt = deactivatedAt
	if activatedBy != nil {
		sub.ActivatedBy = *activatedBy
	}
	if deactivatedBy != nil {
		sub.DeactivatedBy = *deactivatedBy
	}

	if len(historyBytes) > 0 {
		if err := json.Unmarshal(historyBytes, &sub.PaymentHistory); err != nil {
			return domain.Subscription{}, fmt.Errorf("failed to unmarshal payment history: %w", err)
		}
	}
	if len(destinationBytes) > 0 {
		if err := json.Unmarshal(destinationBytes, &sub.PaymentDestination); err != nil {
			return domain.Subscription{}, fmt.Errorf("failed to unmarshal payment destination: %w", err)
		}
	}

	return sub, nil
}

// Create создает запись подписки для нового администратора
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (
			admin_id, plan_id, billing_cycle, amount, status,
			start_date, end_date, next_payment_date, auto_renew,
			payment_history, payment_destination,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $12
		)
		RETURNING version, created_at, updated_at
	`

	historyBytes, destinationBytes, err := marshalSnapshots(sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	err = r.db.QueryRow(
		ctx,
		query,
		sub.AdminID,
		sub.PlanID,
		sub.BillingCycle,
		sub.Amount,
		sub.Status,
		sub.StartDate,
		sub.EndDate,
		sub.NextPaymentDate,
		sub.AutoRenew,
		historyBytes,
		destinationBytes,
		time.Now(),
	).Scan(&sub.Version, &sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Subscription{}, ErrDuplicate
		}
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	return sub, nil
}

// Save сохраняет подписку, только если версия строки не изменилась
func (r *PostgresSubscriptionRepository) Save(ctx context.Context, sub domain.Subscription, expectedVersion int64) (domain.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET
			plan_id = $1,
			billing_cycle = $2,
			amount = $3,
			status = $4,
			start_date = $5,
			end_date = $6,
			next_payment_date = $7,
			auto_renew = $8,
			payment_history = $9,
			payment_destination = $10,
			activated_at = $11,
			activated_by = $12,
			deactivated_at = $13,
			deactivated_by = $14,
			version = version + 1,
			updated_at = $15
		WHERE admin_id = $16 AND version = $17
		RETURNING version, updated_at
	`

	historyBytes, destinationBytes, err := marshalSnapshots(sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	err = r.db.QueryRow(
		ctx,
		query,
		sub.PlanID,
		sub.BillingCycle,
		sub.Amount,
		sub.Status,
		sub.StartDate,
		sub.EndDate,
		sub.NextPaymentDate,
		sub.AutoRenew,
		historyBytes,
		destinationBytes,
		sub.ActivatedAt,
		nullableString(sub.ActivatedBy),
		sub.DeactivatedAt,
		nullableString(sub.DeactivatedBy),
		time.Now(),
		sub.AdminID,
		expectedVersion,
	).Scan(&sub.Version, &sub.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Строки с такой версией нет: либо запись отсутствует,
			// либо снимок устарел. Различаем отдельным чтением.
			return r.resolveSaveConflict(ctx, sub.AdminID)
		}
		return domain.Subscription{}, fmt.Errorf("failed to save subscription: %w", err)
	}

	return sub, nil
}

// resolveSaveConflict различает отсутствие записи и конфликт версий.
func (r *PostgresSubscriptionRepository) resolveSaveConflict(ctx context.Context, adminID string) (domain.Subscription, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE admin_id = $1)`, adminID).Scan(&exists)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to check subscription existence: %w", err)
	}
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	r.log.Warnw("Rejected stale subscription write", "adminID", adminID)
	return domain.Subscription{}, ErrStaleVersion
}

// marshalSnapshots сериализует JSONB-поля подписки.
func marshalSnapshots(sub domain.Subscription) ([]byte, []byte, error) {
	history := sub.PaymentHistory
	if history == nil {
		history = []domain.PaymentRecord{}
	}
	historyBytes, err := json.Marshal(history)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal payment history: %w", err)
	}

	var destinationBytes []byte
	if sub.PaymentDestination != nil {
		destinationBytes, err = json.Marshal(sub.PaymentDestination)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal payment destination: %w", err)
		}
	}

	return historyBytes, destinationBytes, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
