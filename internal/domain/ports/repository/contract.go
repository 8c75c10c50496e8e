package repository

import (
	"context"
	"time"

	"subscription-commerce/internal/domain/model"
)

// ContractCompletion carries everything persisted when a contract reaches a
// terminal successful state.
type ContractCompletion struct {
	Provider       model.PaymentProvider
	ProviderRef    string
	ProviderTxID   string
	FinalAmount    int64
	Cycle          model.BillingCycle
	PeriodStart    time.Time
	PeriodEnd      time.Time
	DiscountCode   *string
	DiscountAmount *int64
}

type ContractRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Contract) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Contract, error)
	FindByProviderRef(ctx context.Context, tx Tx, providerRef string) (*model.Contract, error)

	// SetProviderRef records the provider order/intent id after order creation.
	SetProviderRef(ctx context.Context, tx Tx, id string, provider model.PaymentProvider, providerRef string) error

	// CompleteIfPending atomically transitions payment_pending -> completed and
	// persists the completion data. Returns false when the contract was already
	// terminal; this is the idempotency boundary for duplicate captures.
	CompleteIfPending(ctx context.Context, tx Tx, id string, done ContractCompletion) (bool, error)

	// CancelIfPending atomically transitions payment_pending -> cancelled.
	CancelIfPending(ctx context.Context, tx Tx, id string, provider model.PaymentProvider, providerRef string) (bool, error)

	// LinkUser sets the owning user when the contract was signed as a guest.
	LinkUser(ctx context.Context, tx Tx, id, userID string) error

	// ListPendingOlderThan feeds the capture reconciler.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Contract, error)
}
