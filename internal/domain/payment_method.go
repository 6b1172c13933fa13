package domain

// VerificationMedium канал доставки кода подтверждения
type VerificationMedium string

const (
	VerificationMediumEmail VerificationMedium = "email"
	VerificationMediumSMS   VerificationMedium = "sms"
)

// FieldSpec описание одного обязательного поля метода оплаты.
// Значения полей остаются непрозрачными строками: бизнес-валидация формата
// (номер карты и т.п.) на этом уровне не выполняется.
type FieldSpec struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// PaymentMethodSpec статическая схема метода оплаты. Загружается один раз
// при старте и далее не меняется.
type PaymentMethodSpec struct {
	MethodID           string             `json:"method_id"`
	DisplayName        string             `json:"display_name"`
	RequiredFields     []FieldSpec        `json:"required_fields"`
	VerificationMedium VerificationMedium `json:"verification_medium"`
}
