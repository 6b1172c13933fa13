package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SubscriptionMetrics интерфейс метрик цикла подписки
type SubscriptionMetrics interface {
	IncUpgradeStarted(planID string)
	IncSettlementCompleted(planID, cycle string)
	IncVerificationFailed()
	IncInvalidTransition(event string)
	IncOwnerOverride(action string)
	ObservePaymentAmount(amount float64, cycle string)
	IncNotificationDelivered()
	IncNotificationDropped()
}

type subscriptionMetrics struct {
	upgradesStarted    *prometheus.CounterVec
	settlements        *prometheus.CounterVec
	verificationFailed prometheus.Counter
	invalidTransitions *prometheus.CounterVec
	ownerOverrides     *prometheus.CounterVec
	paymentAmounts     *prometheus.HistogramVec
	notifications      *prometheus.CounterVec
}

// NewSubscriptionMetrics создает метрики цикла подписки
func NewSubscriptionMetrics(registry *prometheus.Registry) SubscriptionMetrics {
	upgradesStarted := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_upgrades_started_total",
			Help: "The total number of initiated upgrade attempts",
		},
		[]string{"plan"},
	)

	settlements := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_settlements_total",
			Help: "The total number of settled payments",
		},
		[]string{"plan", "cycle"},
	)

	verificationFailed := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "subscription_verification_failures_total",
			Help: "The total number of rejected verification codes",
		},
	)

	invalidTransitions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_invalid_transitions_total",
			Help: "The total number of events rejected in the wrong state",
		},
		[]string{"event"},
	)

	ownerOverrides := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_owner_overrides_total",
			Help: "The total number of owner override operations",
		},
		[]string{"action"},
	)

	paymentAmounts := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subscription_payment_amount",
			Help:    "Settled payment amounts distribution",
			Buckets: prometheus.ExponentialBuckets(5, 4, 6), // 5, 20, 80, 320, 1280, 5120
		},
		[]string{"cycle"},
	)

	notifications := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_owner_notifications_total",
			Help: "The total number of owner notifications by delivery outcome",
		},
		[]string{"outcome"},
	)

	return &subscriptionMetrics{
		upgradesStarted:    upgradesStarted,
		settlements:        settlements,
		verificationFailed: verificationFailed,
		invalidTransitions: invalidTransitions,
		ownerOverrides:     ownerOverrides,
		paymentAmounts:     paymentAmounts,
		notifications:      notifications,
	}
}

// IncUpgradeStarted увеличивает счетчик начатых попыток апгрейда
func (m *subscriptionMetrics) IncUpgradeStarted(planID string) {
	m.upgradesStarted.WithLabelValues(planID).Inc()
}

// IncSettlementCompleted увеличивает счетчик рассчитанных платежей
func (m *subscriptionMetrics) IncSettlementCompleted(planID, cycle string) {
	m.settlements.WithLabelValues(planID, cycle).Inc()
}

// IncVerificationFailed увеличивает счетчик отклоненных кодов
func (m *subscriptionMetrics) IncVerificationFailed() {
	m.verificationFailed.Inc()
}

// IncInvalidTransition увеличивает счетчик недопустимых переходов
func (m *subscriptionMetrics) IncInvalidTransition(event string) {
	m.invalidTransitions.WithLabelValues(event).Inc()
}

// IncOwnerOverride увеличивает счетчик административных операций владельца
func (m *subscriptionMetrics) IncOwnerOverride(action string) {
	m.ownerOverrides.WithLabelValues(action).Inc()
}

// ObservePaymentAmount записывает сумму платежа
func (m *subscriptionMetrics) ObservePaymentAmount(amount float64, cycle string) {
	m.paymentAmounts.WithLabelValues(cycle).Observe(amount)
}

// IncNotificationDelivered увеличивает счетчик доставленных уведомлений
func (m *subscriptionMetrics) IncNotificationDelivered() {
	m.notifications.WithLabelValues("delivered").Inc()
}

// IncNotificationDropped увеличивает счетчик отброшенных уведомлений
func (m *subscriptionMetrics) IncNotificationDropped() {
	m.notifications.WithLabelValues("dropped").Inc()
}
