package repository

import (
	"context"

	"subscription-commerce/internal/domain/model"
)

// TransactionRepository is the append-only ledger. There is deliberately no
// update or delete.
type TransactionRepository interface {
	Append(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByProviderRef(ctx context.Context, tx Tx, providerRef string) (*model.Transaction, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Transaction, error)
	// SumByPeriod totals gross amounts of succeeded charges since the start of
	// the current period ("week" | "month" | "year").
	SumByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
