package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	// Totals returns user count and open subscriptions grouped by plan.
	Totals(ctx context.Context) (users int, openByPlan map[string]int, err error)
	// Revenue returns ledger gross sums for the current week, month, and year.
	Revenue(ctx context.Context) (week, month, year int64, err error)
}

type statsUC struct {
	users  repository.UserRepository
	subs   repository.SubscriptionRepository
	ledger repository.TransactionRepository
	log    *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, ledger repository.TransactionRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, subs: subs, ledger: ledger, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, map[string]int, error) {
	users, err := s.users.Count(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, err
	}
	byPlan, err := s.subs.CountOpenByPlan(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, err
	}
	return users, byPlan, nil
}

func (s *statsUC) Revenue(ctx context.Context) (int64, int64, int64, error) {
	week, err := s.ledger.SumByPeriod(ctx, repository.NoTX, "week")
	if err != nil {
		return 0, 0, 0, err
	}
	month, err := s.ledger.SumByPeriod(ctx, repository.NoTX, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	year, err := s.ledger.SumByPeriod(ctx, repository.NoTX, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	return week, month, year, nil
}
