package repository

import (
	"context"

	"subscription-commerce/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindOpenByUser returns the user's single subscription with status in
	// {active, trial, paused}, or ErrNotFound.
	FindOpenByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	CountOpenByPlan(ctx context.Context, tx Tx) (map[string]int, error)
}
