package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userCols = `id, email, name, phone, is_pending, email_verified, activation_token, activation_expires_at, subscription_name, subscription_status, subscription_start, subscription_end, next_billing_at, last_billing_at, last_payment_amount, total_spent, lifetime_value, plan_id, created_at, updated_at`

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (` + userCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
ON CONFLICT (id) DO UPDATE SET
  email=$2, name=$3, phone=$4, is_pending=$5, email_verified=$6,
  activation_token=$7, activation_expires_at=$8, subscription_name=$9,
  subscription_status=$10, subscription_start=$11, subscription_end=$12,
  next_billing_at=$13, last_billing_at=$14, last_payment_amount=$15,
  total_spent=$16, lifetime_value=$17, plan_id=$18, updated_at=$20;`

	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, model.NormalizeEmail(u.Email), u.Name, u.Phone, u.IsPendingUser, u.EmailVerified,
		u.ActivationToken, u.ActivationExpiresAt, u.SubscriptionName, u.SubscriptionStatus,
		u.SubscriptionStart, u.SubscriptionEnd, u.NextBillingAt, u.LastBillingAt,
		u.LastPaymentAmount, u.TotalSpent, u.LifetimeValue, u.PlanID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=LOWER($1) LIMIT 1;`
	return r.scanOne(ctx, tx, q, email)
}

func (r *userRepo) FindByActivationToken(ctx context.Context, tx repository.Tx, token string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE activation_token=$1 LIMIT 1;`
	return r.scanOne(ctx, tx, q, token)
}

func (r *userRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(1) FROM users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *userRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.IsPendingUser, &u.EmailVerified,
		&u.ActivationToken, &u.ActivationExpiresAt, &u.SubscriptionName, &u.SubscriptionStatus,
		&u.SubscriptionStart, &u.SubscriptionEnd, &u.NextBillingAt, &u.LastBillingAt,
		&u.LastPaymentAmount, &u.TotalSpent, &u.LifetimeValue, &u.PlanID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}
