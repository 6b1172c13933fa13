package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Application errors
var (
	// ErrUnknownPlan план не найден в каталоге
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrUnknownMethod метод оплаты не зарегистрирован
	ErrUnknownMethod = errors.New("unknown payment method")

	// ErrMissingFields отсутствуют обязательные поля метода оплаты
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidCode код подтверждения не совпал
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrInvalidTransition событие недопустимо в текущем состоянии
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStaleSnapshot запись была изменена конкурентно, снимок устарел
	ErrStaleSnapshot = errors.New("stale subscription snapshot")

	// ErrDeliveryFailed доставка уведомления не удалась (не фатально)
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrInvalidAmount недопустимая сумма (цена должна быть > 0)
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)

// UnknownCycleError период оплаты не известен системе
type UnknownCycleError struct {
	Cycle string
}

// Error реализует интерфейс error
func (e *UnknownCycleError) Error() string {
	return fmt.Sprintf("unknown billing cycle %q", e.Cycle)
}

// MissingFieldsError перечисляет отсутствующие или пустые обязательные поля.
type MissingFieldsError struct {
	MethodID string
	Fields   []string
}

// Error реализует интерфейс error
func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("method %s: missing required fields: %s", e.MethodID, strings.Join(e.Fields, ", "))
}

// Is позволяет сопоставлять ошибку с ErrMissingFields через errors.Is
func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}

// InvalidTransitionError описывает событие, примененное в неверном состоянии.
// Состояние остается неизменным.
type InvalidTransitionError struct {
	CurrentState string
	Event        string
}

// Error реализует интерфейс error
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %q is not allowed in state %q", e.Event, e.CurrentState)
}

// Is позволяет сопоставлять ошибку с ErrInvalidTransition через errors.Is
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NewInvalidTransition создает ошибку недопустимого перехода.
func NewInvalidTransition(currentState, event string) *InvalidTransitionError {
	return &InvalidTransitionError{CurrentState: currentState, Event: event}
}
