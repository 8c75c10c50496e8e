package model

import (
	"time"

	"subscription-commerce/internal/domain"
)

// Plan is a canonical offering. Read-only to the capture engine; resolved by
// slug first, then by case-insensitive name.
type Plan struct {
	ID           string
	Slug         string
	Name         string
	Status       string // "active" | "retired"
	PriceMonthly int64  // minor units
	PriceYearly  int64  // minor units
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

func NewPlan(id, slug, name string, priceMonthly, priceYearly int64) (*Plan, error) {
	if id == "" || slug == "" || name == "" || priceMonthly < 0 || priceYearly < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Slug:         slug,
		Name:         name,
		Status:       "active",
		PriceMonthly: priceMonthly,
		PriceYearly:  priceYearly,
		CreatedAt:    time.Now(),
	}, nil
}
