package model

import (
	"strings"
	"time"

	"subscription-commerce/internal/domain"

	"github.com/google/uuid"
)

// User is an identity record with the denormalized subscription overlay the
// support tooling reads. The Subscription entity remains the billing source
// of truth; these fields are updated on every successful payment.
type User struct {
	ID            string
	Email         string // stored lowercase; unique among non-deleted accounts
	Name          string
	Phone         string
	IsPendingUser bool // created from a payment, owner has not activated yet
	EmailVerified bool

	ActivationToken     *string
	ActivationExpiresAt *time.Time

	SubscriptionName   string
	SubscriptionStatus SubscriptionStatus
	SubscriptionStart  *time.Time
	SubscriptionEnd    *time.Time
	NextBillingAt      *time.Time
	LastBillingAt      *time.Time
	LastPaymentAmount  int64 // minor units
	TotalSpent         int64 // minor units, cumulative
	LifetimeValue      int64 // minor units, cumulative
	PlanID             *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPendingUser creates an account from a successful payment for an unknown
// email. The owner activates it later via the emailed token.
func NewPendingUser(email, name string) (*User, error) {
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:                 uuid.NewString(),
		Email:              NormalizeEmail(email),
		Name:               name,
		IsPendingUser:      true,
		SubscriptionStatus: SubscriptionStatusNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// SetActivationToken rotates the activation token and its expiry.
func (u *User) SetActivationToken(token string, expiresAt time.Time) {
	u.ActivationToken = &token
	u.ActivationExpiresAt = &expiresAt
	u.UpdatedAt = time.Now()
}

// Activate consumes the token: pending -> active exactly once.
func (u *User) Activate() {
	u.IsPendingUser = false
	u.EmailVerified = true
	u.ActivationToken = nil
	u.ActivationExpiresAt = nil
	u.UpdatedAt = time.Now()
}

// NormalizeEmail lowercases for the case-insensitive uniqueness invariant.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
