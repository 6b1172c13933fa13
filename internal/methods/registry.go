package methods

import (
	"strings"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
)

// Registry хранит статические схемы методов оплаты.
// Схемы загружаются один раз при старте и далее не изменяются,
// поэтому синхронизация не требуется.
type Registry struct {
	specs map[string]domain.PaymentMethodSpec
}

// NewRegistry создает реестр с указанными схемами.
func NewRegistry(specs []domain.PaymentMethodSpec) *Registry {
	m := make(map[string]domain.PaymentMethodSpec, len(specs))
	for _, s := range specs {
		m[s.MethodID] = s
	}
	return &Registry{specs: m}
}

// DefaultSpecs возвращает набор методов оплаты приложения.
func DefaultSpecs() []domain.PaymentMethodSpec {
	return []domain.PaymentMethodSpec{
		{
			MethodID:    "paypal",
			DisplayName: "PayPal",
			RequiredFields: []domain.FieldSpec{
				{Name: "paypalEmail", Label: "PayPal email"},
			},
			VerificationMedium: domain.VerificationMediumEmail,
		},
		{
			MethodID:    "bank_transfer",
			DisplayName: "Bank transfer",
			RequiredFields: []domain.FieldSpec{
				{Name: "bankName", Label: "Bank name"},
				{Name: "accountName", Label: "Account holder name"},
				{Name: "accountNumber", Label: "Account number"},
			},
			VerificationMedium: domain.VerificationMediumSMS,
		},
		{
			MethodID:    "mobile_money",
			DisplayName: "Mobile money",
			RequiredFields: []domain.FieldSpec{
				{Name: "provider", Label: "Provider"},
				{Name: "phoneNumber", Label: "Phone number"},
			},
			VerificationMedium: domain.VerificationMediumSMS,
		},
	}
}

// GetSpec возвращает схему метода оплаты.
func (r *Registry) GetSpec(methodID string) (domain.PaymentMethodSpec, error) {
	spec, exists := r.specs[methodID]
	if !exists {
		return domain.PaymentMethodSpec{}, domain.ErrUnknownMethod
	}
	return spec, nil
}

// Validate проверяет присутствие всех обязательных полей метода.
// Значения остаются непрозрачными строками: проверяется только наличие
// и непустота, без валидации формата.
func (r *Registry) Validate(methodID string, fields map[string]string) error {
	spec, err := r.GetSpec(methodID)
	if err != nil {
		return err
	}

	var missing []string
	for _, f := range spec.RequiredFields {
		if strings.TrimSpace(fields[f.Name]) == "" {
			missing = append(missing, f.Name)
		}
	}

	if len(missing) > 0 {
		return &domain.MissingFieldsError{MethodID: methodID, Fields: missing}
	}
	return nil
}
