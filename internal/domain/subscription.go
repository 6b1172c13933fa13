package domain

import (
	"time"
)

// SubscriptionStatus статус подписки администратора
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// BillingCycle период оплаты подписки
type BillingCycle string

const (
	BillingCycleWeekly   BillingCycle = "weekly"
	BillingCycleMonthly  BillingCycle = "monthly"
	BillingCycleAnnually BillingCycle = "annually"
)

// Duration возвращает длительность периода оплаты.
// Длительность — чистая функция от значения enum и нигде не хранится отдельно.
func (c BillingCycle) Duration() (time.Duration, error) {
	switch c {
	case BillingCycleWeekly:
		return 7 * 24 * time.Hour, nil
	case BillingCycleMonthly:
		return 30 * 24 * time.Hour, nil
	case BillingCycleAnnually:
		return 365 * 24 * time.Hour, nil
	default:
		return 0, &UnknownCycleError{Cycle: string(c)}
	}
}

// Valid проверяет, что значение периода известно системе.
func (c BillingCycle) Valid() bool {
	_, err := c.Duration()
	return err == nil
}

// ComputeEndDate вычисляет дату окончания периода от указанного момента.
func ComputeEndDate(now time.Time, cycle BillingCycle) (time.Time, error) {
	d, err := cycle.Duration()
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentRecord запись об одном платеже. После добавления в историю не изменяется.
type PaymentRecord struct {
	ID                  string            `json:"id"`
	AttemptID           string            `json:"attempt_id"`
	Amount              float64           `json:"amount"`
	Date                time.Time         `json:"date"`
	Method              string            `json:"method"`
	Status              PaymentStatus     `json:"status"`
	RawDetails          map[string]string `json:"raw_details,omitempty"`
	OwnerConfigSnapshot map[string]string `json:"owner_config_snapshot,omitempty"`
}

// PaymentDestination последний использованный маршрут платежа:
// метод, снимок настроек владельца и снимок реквизитов администратора.
type PaymentDestination struct {
	Method              string            `json:"method"`
	OwnerConfig         map[string]string `json:"owner_config,omitempty"`
	AdminPaymentDetails map[string]string `json:"admin_payment_details,omitempty"`
}

// Subscription представляет подписку одного администратора.
// Администратор указывается по идентификатору, а не встраивается в модель.
type Subscription struct {
	AdminID            string              `json:"admin_id"`
	PlanID             string              `json:"plan_id"`
	BillingCycle       BillingCycle        `json:"billing_cycle"`
	Amount             float64             `json:"amount"`
	Status             SubscriptionStatus  `json:"status"`
	StartDate          time.Time           `json:"start_date"`
	EndDate            time.Time           `json:"end_date"`
	NextPaymentDate    time.Time           `json:"next_payment_date"`
	AutoRenew          bool                `json:"auto_renew"`
	PaymentHistory     []PaymentRecord     `json:"payment_history"`
	PaymentDestination *PaymentDestination `json:"payment_destination,omitempty"`

	// Отметки административных операций владельца.
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	ActivatedBy   string     `json:"activated_by,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	DeactivatedBy string     `json:"deactivated_by,omitempty"`

	// Version используется для оптимистичной блокировки при сохранении.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPaymentForAttempt проверяет, есть ли в истории платеж для данной попытки
// апгрейда. Используется для идемпотентности расчета (exactly-once).
func (s *Subscription) HasPaymentForAttempt(attemptID string) bool {
	for _, rec := range s.PaymentHistory {
		if rec.AttemptID == attemptID {
			return true
		}
	}
	return false
}

// NewTrialSubscription создает подписку в статусе trial для нового администратора.
func NewTrialSubscription(adminID string, now time.Time) Subscription {
	return Subscription{
		AdminID:   adminID,
		Status:    SubscriptionStatusTrial,
		StartDate: now,
		EndDate:   now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
