package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingCycleDuration(t *testing.T) {
	tests := []struct {
		cycle    BillingCycle
		expected time.Duration
	}{
		{BillingCycleWeekly, 7 * 24 * time.Hour},
		{BillingCycleMonthly, 30 * 24 * time.Hour},
		{BillingCycleAnnually, 365 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(string(tt.cycle), func(t *testing.T) {
			d, err := tt.cycle.Duration()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestBillingCycleDurationUnknown(t *testing.T) {
	_, err := BillingCycle("quarterly").Duration()
	require.Error(t, err)

	var unknownCycle *UnknownCycleError
	require.ErrorAs(t, err, &unknownCycle)
	assert.Equal(t, "quarterly", unknownCycle.Cycle)
}

func TestComputeEndDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	end, err := ComputeEndDate(now, BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), end)

	_, err = ComputeEndDate(now, BillingCycle("daily"))
	assert.Error(t, err)
}

func TestHasPaymentForAttempt(t *testing.T) {
	sub := Subscription{
		PaymentHistory: []PaymentRecord{
			{ID: "p1", AttemptID: "attempt-1"},
			{ID: "p2", AttemptID: "attempt-2"},
		},
	}

	assert.True(t, sub.HasPaymentForAttempt("attempt-1"))
	assert.False(t, sub.HasPaymentForAttempt("attempt-3"))
}

func TestNewTrialSubscription(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sub := NewTrialSubscription("admin-1", now)

	assert.Equal(t, "admin-1", sub.AdminID)
	assert.Equal(t, SubscriptionStatusTrial, sub.Status)
	assert.Empty(t, sub.PaymentHistory)
	assert.False(t, sub.AutoRenew)
}

func TestErrorMatching(t *testing.T) {
	missing := &MissingFieldsError{MethodID: "bank_transfer", Fields: []string{"accountNumber"}}
	assert.True(t, errors.Is(missing, ErrMissingFields))
	assert.Contains(t, missing.Error(), "accountNumber")

	invalid := NewInvalidTransition("verifying", "initiateUpgrade")
	assert.True(t, errors.Is(invalid, ErrInvalidTransition))
	assert.Contains(t, invalid.Error(), "verifying")
	assert.Contains(t, invalid.Error(), "initiateUpgrade")
}
