package repository

import (
	"context"

	"subscription-commerce/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// FindByEmail matches case-insensitively against non-deleted accounts.
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	FindByActivationToken(ctx context.Context, tx Tx, token string) (*model.User, error)
	Count(ctx context.Context, tx Tx) (int, error)
}
