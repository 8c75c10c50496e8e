package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subCols = `id, user_id, plan_id, status, period_start, period_end, billing_cycle, price, currency, payment_method, discounts, auto_renew, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	discounts, err := json.Marshal(s.Discounts)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO subscriptions (` + subCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  plan_id=$3, status=$4, period_start=$5, period_end=$6, billing_cycle=$7,
  price=$8, currency=$9, payment_method=$10, discounts=$11, auto_renew=$12, updated_at=$14;`

	_, err = execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.Status, s.PeriodStart, s.PeriodEnd,
		s.BillingCycle, s.Price, s.Currency, s.PaymentMethod, discounts,
		s.AutoRenew, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subCols + ` FROM subscriptions WHERE id=$1;`
	return r.scanOne(ctx, tx, q, id)
}

// FindOpenByUser relies on the partial unique index on (user_id) WHERE status
// IN ('active','trial','paused'): zero or one row.
func (r *subscriptionRepo) FindOpenByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `SELECT ` + subCols + ` FROM subscriptions
 WHERE user_id=$1 AND status IN ('active','trial','paused') LIMIT 1;`
	return r.scanOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `SELECT ` + subCols + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) CountOpenByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `
SELECT COALESCE(p.name, 'unresolved'), COUNT(1)
  FROM subscriptions s
  LEFT JOIN plans p ON p.id = s.plan_id
 WHERE s.status IN ('active','trial','paused')
 GROUP BY 1;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[name] = n
	}
	return out, nil
}

func (r *subscriptionRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var discounts []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.PeriodStart, &s.PeriodEnd,
		&s.BillingCycle, &s.Price, &s.Currency, &s.PaymentMethod, &discounts,
		&s.AutoRenew, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(discounts) > 0 {
		if err := json.Unmarshal(discounts, &s.Discounts); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return s, nil
}
