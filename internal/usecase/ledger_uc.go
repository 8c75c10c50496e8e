package usecase

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

type LedgerUseCase interface {
	// RecordCharge appends one immutable transaction for a captured contract.
	// A failure is returned for logging but must never roll back the capture;
	// it is counted as a reconciliation gap.
	RecordCharge(ctx context.Context, user *model.User, c *model.Contract, quote *PriceQuote, amount, discount int64, currency, providerTxID string) (*model.Transaction, error)
	SumByPeriod(ctx context.Context, period string) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Transaction, error)
}

type ledgerUC struct {
	ledger repository.TransactionRepository
	log    *zerolog.Logger
}

func NewLedgerUseCase(ledger repository.TransactionRepository, logger *zerolog.Logger) *ledgerUC {
	return &ledgerUC{ledger: ledger, log: logger}
}

func (l *ledgerUC) RecordCharge(ctx context.Context, user *model.User, c *model.Contract, quote *PriceQuote, amount, discount int64, currency, providerTxID string) (*model.Transaction, error) {
	defer logging.TraceDuration(l.log, "LedgerUC.RecordCharge")()

	t, err := model.NewTransaction(ulid.Make().String(), user.ID, amount, discount, currency, c.Provider, providerTxID)
	if err != nil {
		metrics.IncLedgerWriteFailure()
		return nil, err
	}
	t.ContractID = c.ID
	t.PaymentMethod = string(c.Provider)
	t.Meta = map[string]interface{}{
		"contract_id":  c.ID,
		"product":      quote.DisplayName,
		"product_key":  quote.Key,
		"billing":      string(c.SubscriptionType),
		"provider_ref": c.ProviderRef,
	}

	if err := l.ledger.Append(ctx, repository.NoTX, t); err != nil {
		metrics.IncLedgerWriteFailure()
		return nil, err
	}
	return t, nil
}

func (l *ledgerUC) SumByPeriod(ctx context.Context, period string) (int64, error) {
	return l.ledger.SumByPeriod(ctx, repository.NoTX, period)
}

func (l *ledgerUC) ListForUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	return l.ledger.ListByUser(ctx, repository.NoTX, userID)
}
