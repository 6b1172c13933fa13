package domain

import "time"

// NotificationPriority приоритет уведомления
type NotificationPriority string

const (
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// NotificationEvent уведомление владельцу о завершенном платеже.
// Создается ровно один раз на каждый успешный платеж и доставляется
// во входящие владельца по принципу fire-and-forget.
type NotificationEvent struct {
	ID        string               `json:"id"`
	From      string               `json:"from"`
	To        string               `json:"to"`
	Subject   string               `json:"subject"`
	Body      string               `json:"body"`
	Timestamp time.Time            `json:"timestamp"`
	Read      bool                 `json:"read"`
	Priority  NotificationPriority `json:"priority"`
}
