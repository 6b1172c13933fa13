package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// Inbox доставляет уведомление во входящие владельца.
type Inbox interface {
	Deliver(ctx context.Context, event domain.NotificationEvent) error
}

// Dispatcher отправляет владельцу уведомление о завершенном платеже.
// Доставка асинхронная и best-effort: неудача логируется и отбрасывается,
// она никогда не откатывает уже рассчитанный платеж.
type Dispatcher struct {
	inbox   Inbox
	ownerID string
	timeout time.Duration
	log     *logger.Logger
	metrics DeliveryMetrics
}

// DeliveryMetrics счетчики доставки уведомлений.
type DeliveryMetrics interface {
	IncNotificationDelivered()
	IncNotificationDropped()
}

// NewDispatcher создает диспетчер уведомлений.
func NewDispatcher(inbox Inbox, ownerID string, timeout time.Duration, metrics DeliveryMetrics, log *logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		inbox:   inbox,
		ownerID: ownerID,
		timeout: timeout,
		log:     log,
		metrics: metrics,
	}
}

// NotifyOwner строит уведомление о платеже и доставляет его асинхронно.
// Возвращает созданное событие для вызывающего; сама доставка
// выполняется в горутине и не блокирует завершение расчета.
func (d *Dispatcher) NotifyOwner(ctx context.Context, sub domain.Subscription) domain.NotificationEvent {
	event := d.buildEvent(sub)

	go d.deliver(context.WithoutCancel(ctx), event)

	return event
}

// buildEvent формирует уведомление с кратким описанием платежа.
func (d *Dispatcher) buildEvent(sub domain.Subscription) domain.NotificationEvent {
	var method string
	var destination string
	if sub.PaymentDestination != nil {
		method = sub.PaymentDestination.Method
		destination = summarizeConfig(sub.PaymentDestination.OwnerConfig)
	}

	body := fmt.Sprintf(
		"Admin %s paid %.2f for the %s plan (%s billing) via %s.\nDestination: %s\nNext payment due: %s.",
		sub.AdminID,
		sub.Amount,
		sub.PlanID,
		sub.BillingCycle,
		method,
		destination,
		sub.NextPaymentDate.Format("2006-01-02"),
	)

	return domain.NotificationEvent{
		ID:        uuid.NewString(),
		From:      sub.AdminID,
		To:        d.ownerID,
		Subject:   fmt.Sprintf("Subscription payment received: %s (%s)", sub.PlanID, sub.BillingCycle),
		Body:      body,
		Timestamp: time.Now(),
		Read:      false,
		Priority:  domain.NotificationPriorityHigh,
	}
}

// deliver выполняет доставку с ограниченным числом повторов.
// После исчерпания времени ошибка логируется и событие отбрасывается
// (at-most-once, платеж уже финален).
func (d *Dispatcher) deliver(ctx context.Context, event domain.NotificationEvent) {
	deliverCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	operation := func() error {
		return d.inbox.Deliver(deliverCtx, event)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = d.timeout

	if err := backoff.Retry(operation, backoff.WithContext(bo, deliverCtx)); err != nil {
		d.log.Errorw("Dropping owner notification after delivery failure",
			"eventID", event.ID, "to", event.To, "error", fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err))
		if d.metrics != nil {
			d.metrics.IncNotificationDropped()
		}
		return
	}

	d.log.Infow("Owner notification delivered", "eventID", event.ID, "to", event.To)
	if d.metrics != nil {
		d.metrics.IncNotificationDelivered()
	}
}

// summarizeConfig сводит реквизиты владельца в одну строку для тела письма.
func summarizeConfig(config map[string]string) string {
	if len(config) == 0 {
		return "not configured"
	}

	out := ""
	for k, v := range config {
		if out != "" {
			out += ", "
		}
		out += k + "=" + v
	}
	return out
}
