package pricing

import (
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// Catalog хранит соответствие план -> {период -> цена}.
// Чтение доступно всем компонентам, изменение цен — только владельцу
// (контроль роли выполняется на уровне API).
type Catalog struct {
	mu    sync.RWMutex
	plans map[string]domain.Plan
	log   *logger.Logger
}

// NewCatalog создает каталог с указанными планами.
func NewCatalog(plans []domain.Plan, log *logger.Logger) *Catalog {
	m := make(map[string]domain.Plan, len(plans))
	for _, p := range plans {
		m[p.ID] = p
	}
	return &Catalog{
		plans: m,
		log:   log,
	}
}

// DefaultPlans возвращает стандартный набор планов приложения.
func DefaultPlans(now time.Time) []domain.Plan {
	return []domain.Plan{
		{
			ID:   "basic",
			Name: "Basic",
			Price: map[domain.BillingCycle]float64{
				domain.BillingCycleWeekly:   4.99,
				domain.BillingCycleMonthly:  14.99,
				domain.BillingCycleAnnually: 149.99,
			},
			Features:  []string{"inventory", "sales", "reports"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:   "standard",
			Name: "Standard",
			Price: map[domain.BillingCycle]float64{
				domain.BillingCycleWeekly:   9.99,
				domain.BillingCycleMonthly:  29.99,
				domain.BillingCycleAnnually: 299.99,
			},
			Features:  []string{"inventory", "sales", "reports", "staff-accounts"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:   "premium",
			Name: "Premium",
			Price: map[domain.BillingCycle]float64{
				domain.BillingCycleWeekly:   19.99,
				domain.BillingCycleMonthly:  59.99,
				domain.BillingCycleAnnually: 599.99,
			},
			Features:  []string{"inventory", "sales", "reports", "staff-accounts", "analytics", "priority-support"},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// GetPrice возвращает цену плана для указанного периода.
func (c *Catalog) GetPrice(planID string, cycle domain.BillingCycle) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, exists := c.plans[planID]
	if !exists {
		return 0, domain.ErrUnknownPlan
	}

	price, exists := plan.Price[cycle]
	if !exists {
		return 0, &domain.UnknownCycleError{Cycle: string(cycle)}
	}

	return price, nil
}

// SetPrice устанавливает цену плана для периода. Операция владельца.
// Изменение действует немедленно, но не затрагивает Amount уже
// существующих подписок.
func (c *Catalog) SetPrice(planID string, cycle domain.BillingCycle, amount float64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if !cycle.Valid() {
		return &domain.UnknownCycleError{Cycle: string(cycle)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	plan, exists := c.plans[planID]
	if !exists {
		return domain.ErrUnknownPlan
	}

	// Карта цен заменяется целиком: опубликованный план неизменяем,
	// владелец публикует новую версию карты.
	prices := make(map[domain.BillingCycle]float64, len(plan.Price))
	for k, v := range plan.Price {
		prices[k] = v
	}
	prices[cycle] = amount
	plan.Price = prices
	plan.UpdatedAt = time.Now()
	c.plans[planID] = plan

	c.log.Infow("Plan price updated", "planID", planID, "cycle", cycle, "amount", amount)
	return nil
}

// GetPlan возвращает план по идентификатору.
func (c *Catalog) GetPlan(planID string) (domain.Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, exists := c.plans[planID]
	if !exists {
		return domain.Plan{}, domain.ErrUnknownPlan
	}
	return plan, nil
}

// ListPlans возвращает все планы, отсортированные по идентификатору.
func (c *Catalog) ListPlans() []domain.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plans := make([]domain.Plan, 0, len(c.plans))
	for _, p := range c.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans
}
