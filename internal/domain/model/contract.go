package model

import (
	"fmt"
	"time"

	"subscription-commerce/internal/domain"
)

type ContractStatus string

const (
	ContractStatusPaymentPending ContractStatus = "payment_pending" // signed, awaiting capture
	ContractStatusCompleted      ContractStatus = "completed"       // terminal: paid and provisioned
	ContractStatusCancelled      ContractStatus = "cancelled"       // terminal: declined or abandoned
)

type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderPayPal PaymentProvider = "paypal"
	ProviderFree   PaymentProvider = "free"
)

func ParseProvider(s string) (PaymentProvider, error) {
	switch PaymentProvider(s) {
	case ProviderStripe, ProviderPayPal, ProviderFree:
		return PaymentProvider(s), nil
	}
	return "", fmt.Errorf("%w: payment provider %q", domain.ErrInvalidArgument, s)
}

// contractTransitions is the full transition table. Terminal states have no
// outgoing edges, which is what makes duplicate captures converge.
var contractTransitions = map[ContractStatus]map[ContractStatus]bool{
	ContractStatusPaymentPending: {
		ContractStatusCompleted: true,
		ContractStatusCancelled: true,
	},
	ContractStatusCompleted: {},
	ContractStatusCancelled: {},
}

// Contract is a signed agreement pending or resolved payment.
type Contract struct {
	ID               string
	UserID           *string // nil for guest checkout until provisioned
	Email            string
	ProductType      string
	DeclaredAmount   int64 // minor units, as declared by the client at signing
	DiscountCode     *string
	DiscountAmount   *int64 // minor units
	Status           ContractStatus
	Provider         PaymentProvider
	ProviderRef      string // provider order / payment-intent id
	ProviderTxID     string // provider transaction id after capture
	SubscriptionType BillingCycle
	FinalAmount      *int64 // minor units actually charged, set on completion
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	Guest            bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewContract(id, email, productType string, declaredAmount int64, cycle BillingCycle, provider PaymentProvider) (*Contract, error) {
	if id == "" || email == "" || productType == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Contract{
		ID:               id,
		Email:            email,
		ProductType:      productType,
		DeclaredAmount:   declaredAmount,
		Status:           ContractStatusPaymentPending,
		Provider:         provider,
		SubscriptionType: cycle,
		Guest:            true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (c *Contract) IsTerminal() bool {
	return len(contractTransitions[c.Status]) == 0
}

func (c *Contract) CanTransition(next ContractStatus) bool {
	return contractTransitions[c.Status][next]
}

// Transition moves the contract to next or fails with ErrContractNotEligible.
// Callers that need replay-safety should treat the error as "already
// processed" when the contract is terminal.
func (c *Contract) Transition(next ContractStatus) error {
	if !c.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrContractNotEligible, c.Status, next)
	}
	c.Status = next
	c.UpdatedAt = time.Now()
	return nil
}
