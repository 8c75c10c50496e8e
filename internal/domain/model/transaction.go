package model

import (
	"time"

	"subscription-commerce/internal/domain"
)

const (
	TransactionTypeCharge      = "charge"
	TransactionStatusSucceeded = "succeeded"
)

// Transaction is an immutable ledger entry for one successful capture.
// Amounts are integer minor units. Rows are append-only; a failed append is
// logged as a reconciliation gap, never retried against committed state.
type Transaction struct {
	ID            string // ULID, sortable by creation time
	UserID        string
	ContractID    string
	Type          string
	Status        string
	Gross         int64
	Fee           int64
	Net           int64
	Tax           int64
	Discount      int64
	Currency      string
	Provider      PaymentProvider
	ProviderRef   string // provider transaction id
	PaymentMethod string
	Meta          map[string]interface{} // contract id, product name, line items
	CreatedAt     time.Time
}

func NewTransaction(id, userID string, gross, discount int64, currency string, provider PaymentProvider, providerRef string) (*Transaction, error) {
	if id == "" || userID == "" || gross < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Transaction{
		ID:          id,
		UserID:      userID,
		Type:        TransactionTypeCharge,
		Status:      TransactionStatusSucceeded,
		Gross:       gross,
		Net:         gross,
		Discount:    discount,
		Currency:    currency,
		Provider:    provider,
		ProviderRef: providerRef,
		CreatedAt:   time.Now(),
	}, nil
}
