package methods

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
)

func TestGetSpec(t *testing.T) {
	registry := NewRegistry(DefaultSpecs())

	spec, err := registry.GetSpec("paypal")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationMediumEmail, spec.VerificationMedium)
	require.Len(t, spec.RequiredFields, 1)
	assert.Equal(t, "paypalEmail", spec.RequiredFields[0].Name)

	_, err = registry.GetSpec("crypto")
	assert.ErrorIs(t, err, domain.ErrUnknownMethod)
}

func TestValidateMissingFields(t *testing.T) {
	registry := NewRegistry(DefaultSpecs())

	// Отсутствует и пустое поле считаются одинаково.
	err := registry.Validate("bank_transfer", map[string]string{
		"bankName":    "First Bank",
		"accountName": "   ",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	var missing *domain.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"accountName", "accountNumber"}, missing.Fields)
}

func TestValidateComplete(t *testing.T) {
	registry := NewRegistry(DefaultSpecs())

	err := registry.Validate("mobile_money", map[string]string{
		"provider":    "MTN",
		"phoneNumber": "+233201234567",
	})
	assert.NoError(t, err)
}

func TestValidateOpaqueValues(t *testing.T) {
	registry := NewRegistry(DefaultSpecs())

	// Формат значений не проверяется: любая непустая строка проходит.
	err := registry.Validate("paypal", map[string]string{
		"paypalEmail": "not-an-email",
	})
	assert.NoError(t, err)
}

func TestValidateUnknownMethod(t *testing.T) {
	registry := NewRegistry(DefaultSpecs())

	err := registry.Validate("crypto", map[string]string{"wallet": "0xabc"})
	assert.ErrorIs(t, err, domain.ErrUnknownMethod)
}
