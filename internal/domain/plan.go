package domain

import "time"

// Plan представляет тарифный план. После публикации план не изменяется;
// карту цен может заменить только владелец через каталог.
type Plan struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Price     map[BillingCycle]float64 `json:"price"`
	Features  []string                 `json:"features,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}
