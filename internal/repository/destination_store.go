package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// DestinationStore хранит настроенные владельцем реквизиты получения
// платежей по каждому методу оплаты (куда должны уходить деньги
// администраторов).
type DestinationStore interface {
	// GetConfig возвращает реквизиты владельца для метода оплаты.
	GetConfig(ctx context.Context, methodID string) (map[string]string, error)
	// SetConfig заменяет реквизиты владельца для метода оплаты.
	SetConfig(ctx context.Context, methodID string, config map[string]string) error
}

// InMemoryDestinationStore реализация хранилища реквизитов в памяти
type InMemoryDestinationStore struct {
	configs map[string]map[string]string
	mutex   sync.RWMutex
}

// NewInMemoryDestinationStore создает хранилище с начальными реквизитами.
func NewInMemoryDestinationStore(seed map[string]map[string]string) *InMemoryDestinationStore {
	configs := make(map[string]map[string]string, len(seed))
	for method, cfg := range seed {
		configs[method] = cloneMap(cfg)
	}
	return &InMemoryDestinationStore{configs: configs}
}

// GetConfig возвращает реквизиты для метода
func (s *InMemoryDestinationStore) GetConfig(ctx context.Context, methodID string) (map[string]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cfg, exists := s.configs[methodID]
	if !exists {
		return nil, ErrNotFound
	}

	return cloneMap(cfg), nil
}

// SetConfig заменяет реквизиты для метода
func (s *InMemoryDestinationStore) SetConfig(ctx context.Context, methodID string, config map[string]string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.configs[methodID] = cloneMap(config)
	return nil
}

// PostgresDestinationStore реализация хранилища реквизитов через PostgreSQL.
// Использует sqlx поверх драйвера pgx (stdlib).
type PostgresDestinationStore struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresDestinationStore подключается к базе и создает хранилище.
func NewPostgresDestinationStore(dsn string, log *logger.Logger) (*PostgresDestinationStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresDestinationStore{db: db, log: log}, nil
}

// Close закрывает соединение с базой данных
func (s *PostgresDestinationStore) Close() error {
	return s.db.Close()
}

// GetConfig возвращает реквизиты владельца для метода оплаты
func (s *PostgresDestinationStore) GetConfig(ctx context.Context, methodID string) (map[string]string, error) {
	query := `SELECT config FROM payment_destinations WHERE method_id = $1`

	var configBytes []byte
	err := s.db.QueryRowxContext(ctx, query, methodID).Scan(&configBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment destination config: %w", err)
	}

	var config map[string]string
	if err := json.Unmarshal(configBytes, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal destination config: %w", err)
	}

	return config, nil
}

// SetConfig заменяет реквизиты владельца для метода оплаты
func (s *PostgresDestinationStore) SetConfig(ctx context.Context, methodID string, config map[string]string) error {
	query := `
		INSERT INTO payment_destinations (method_id, config, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (method_id) DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = now()
	`

	configBytes, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal destination config: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, methodID, configBytes); err != nil {
		return fmt.Errorf("failed to save payment destination config: %w", err)
	}

	s.log.Debugw("Payment destination config saved", "methodID", methodID)
	return nil
}
