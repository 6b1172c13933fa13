package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

func newTestCatalog() *Catalog {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return NewCatalog(DefaultPlans(now), logger.NewNop())
}

func TestGetPrice(t *testing.T) {
	catalog := newTestCatalog()

	price, err := catalog.GetPrice("premium", domain.BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, 59.99, price)

	price, err = catalog.GetPrice("basic", domain.BillingCycleWeekly)
	require.NoError(t, err)
	assert.Equal(t, 4.99, price)
}

func TestGetPriceUnknownPlan(t *testing.T) {
	catalog := newTestCatalog()

	_, err := catalog.GetPrice("enterprise", domain.BillingCycleMonthly)
	assert.ErrorIs(t, err, domain.ErrUnknownPlan)
}

func TestGetPriceUnknownCycle(t *testing.T) {
	catalog := newTestCatalog()

	_, err := catalog.GetPrice("basic", domain.BillingCycle("daily"))
	var unknownCycle *domain.UnknownCycleError
	assert.ErrorAs(t, err, &unknownCycle)
}

func TestSetPrice(t *testing.T) {
	catalog := newTestCatalog()

	require.NoError(t, catalog.SetPrice("standard", domain.BillingCycleMonthly, 34.99))

	price, err := catalog.GetPrice("standard", domain.BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, 34.99, price)

	// Остальные периоды плана не затронуты.
	price, err = catalog.GetPrice("standard", domain.BillingCycleAnnually)
	require.NoError(t, err)
	assert.Equal(t, 299.99, price)
}

func TestSetPriceRejectsInvalidAmount(t *testing.T) {
	catalog := newTestCatalog()

	assert.ErrorIs(t, catalog.SetPrice("basic", domain.BillingCycleMonthly, 0), domain.ErrInvalidAmount)
	assert.ErrorIs(t, catalog.SetPrice("basic", domain.BillingCycleMonthly, -5), domain.ErrInvalidAmount)

	// Цена не изменилась.
	price, err := catalog.GetPrice("basic", domain.BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, 14.99, price)
}

func TestSetPriceUnknownPlanAndCycle(t *testing.T) {
	catalog := newTestCatalog()

	assert.ErrorIs(t, catalog.SetPrice("enterprise", domain.BillingCycleMonthly, 10), domain.ErrUnknownPlan)

	var unknownCycle *domain.UnknownCycleError
	assert.ErrorAs(t, catalog.SetPrice("basic", domain.BillingCycle("daily"), 10), &unknownCycle)
}

func TestListPlansSorted(t *testing.T) {
	catalog := newTestCatalog()

	plans := catalog.ListPlans()
	require.Len(t, plans, 3)
	assert.Equal(t, "basic", plans[0].ID)
	assert.Equal(t, "premium", plans[1].ID)
	assert.Equal(t, "standard", plans[2].ID)
}
