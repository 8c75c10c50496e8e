package model

import (
	"time"

	"subscription-commerce/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// OpenSubscriptionStatuses are the states that count as "current": at most
// one subscription per user may be in any of them.
var OpenSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrial,
	SubscriptionStatusPaused,
}

func (s SubscriptionStatus) IsOpen() bool {
	for _, o := range OpenSubscriptionStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// AppliedDiscount records a discount applied to a billing period.
type AppliedDiscount struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"` // minor units
}

// Subscription is the billing-cycle record, distinct from the denormalized
// overlay on User.
type Subscription struct {
	ID            string
	UserID        string
	PlanID        *string // nil when no plan could be resolved
	Status        SubscriptionStatus
	PeriodStart   time.Time
	PeriodEnd     time.Time
	BillingCycle  BillingCycle
	Price         int64 // minor units per period
	Currency      string
	PaymentMethod string // provider descriptor
	Discounts     []AppliedDiscount
	AutoRenew     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewSubscription(id, userID string, cycle BillingCycle, price int64, currency string) (*Subscription, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:           id,
		UserID:       userID,
		Status:       SubscriptionStatusActive,
		PeriodStart:  now,
		PeriodEnd:    PeriodEndFor(now, cycle),
		BillingCycle: cycle,
		Price:        price,
		Currency:     currency,
		AutoRenew:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// PeriodEndFor computes the end of a billing period starting at start.
func PeriodEndFor(start time.Time, cycle BillingCycle) time.Time {
	if cycle == BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
