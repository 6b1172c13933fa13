package domain

import "time"

// UpgradeState состояние текущей попытки апгрейда подписки.
// Отсутствие попытки означает состояние idle.
type UpgradeState string

const (
	UpgradeStateIdle            UpgradeState = "idle"
	UpgradeStateChoosingMethod  UpgradeState = "choosing_method"
	UpgradeStateEnteringDetails UpgradeState = "entering_details"
	UpgradeStateVerifying       UpgradeState = "verifying"
	UpgradeStateProcessing      UpgradeState = "processing"
	UpgradeStateSettled         UpgradeState = "settled"
)

// VerificationChallenge одноразовый код подтверждения платежа.
// Привязан к одной попытке апгрейда; выпуск нового кода делает
// предыдущий недействительным. За пределами попытки не сохраняется.
type VerificationChallenge struct {
	Code      string             `json:"code"`
	IssuedAt  time.Time          `json:"issued_at"`
	Medium    VerificationMedium `json:"medium"`
	AttemptID string             `json:"attempt_id"`
}

// UpgradeAttempt текущая (единственная) попытка апгрейда администратора.
// Для одного администратора одновременно может существовать не более
// одной попытки.
type UpgradeAttempt struct {
	ID           string                 `json:"id"`
	AdminID      string                 `json:"admin_id"`
	PlanID       string                 `json:"plan_id"`
	BillingCycle BillingCycle           `json:"billing_cycle"`
	Amount       float64                `json:"amount"`
	MethodID     string                 `json:"method_id,omitempty"`
	Medium       VerificationMedium     `json:"medium,omitempty"`
	Fields       map[string]string      `json:"fields,omitempty"`
	Challenge    *VerificationChallenge `json:"challenge,omitempty"`
	State        UpgradeState           `json:"state"`
	StartedAt    time.Time              `json:"started_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
