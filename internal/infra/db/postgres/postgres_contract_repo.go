package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
)

var _ repository.ContractRepository = (*contractRepo)(nil)

type contractRepo struct{ pool *pgxpool.Pool }

func NewContractRepo(pool *pgxpool.Pool) *contractRepo {
	return &contractRepo{pool: pool}
}

const contractCols = `id, user_id, email, product_type, declared_amount, discount_code, discount_amount, status, provider, provider_ref, provider_tx_id, subscription_type, final_amount, period_start, period_end, guest, created_at, updated_at`

func (r *contractRepo) Save(ctx context.Context, tx repository.Tx, c *model.Contract) error {
	const q = `
INSERT INTO contracts (` + contractCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  user_id=$2, email=$3, product_type=$4, declared_amount=$5, discount_code=$6,
  discount_amount=$7, status=$8, provider=$9, provider_ref=$10, provider_tx_id=$11,
  subscription_type=$12, final_amount=$13, period_start=$14, period_end=$15,
  guest=$16, updated_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.UserID, c.Email, c.ProductType, c.DeclaredAmount, c.DiscountCode,
		c.DiscountAmount, c.Status, c.Provider, c.ProviderRef, c.ProviderTxID,
		c.SubscriptionType, c.FinalAmount, c.PeriodStart, c.PeriodEnd,
		c.Guest, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *contractRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Contract, error) {
	const q = `SELECT ` + contractCols + ` FROM contracts WHERE id=$1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *contractRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Contract, error) {
	const q = `SELECT ` + contractCols + ` FROM contracts WHERE provider_ref=$1 LIMIT 1;`
	return r.scanOne(ctx, tx, q, ref)
}

func (r *contractRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Contract, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	c := &model.Contract{}
	if err := row.Scan(&c.ID, &c.UserID, &c.Email, &c.ProductType, &c.DeclaredAmount,
		&c.DiscountCode, &c.DiscountAmount, &c.Status, &c.Provider, &c.ProviderRef,
		&c.ProviderTxID, &c.SubscriptionType, &c.FinalAmount, &c.PeriodStart,
		&c.PeriodEnd, &c.Guest, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *contractRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, ref string) error {
	const q = `UPDATE contracts SET provider=$2, provider_ref=$3, updated_at=NOW() WHERE id=$1 AND status='payment_pending';`
	_, err := execSQL(ctx, r.pool, tx, q, id, provider, ref)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// CompleteIfPending flips payment_pending -> completed atomically. The WHERE
// guard makes duplicate captures a no-op at the storage level.
func (r *contractRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, done repository.ContractCompletion) (bool, error) {
	const q = `
UPDATE contracts
   SET status='completed',
       provider=$2,
       provider_ref=$3,
       provider_tx_id=$4,
       final_amount=$5,
       subscription_type=$6,
       period_start=$7,
       period_end=$8,
       discount_code=COALESCE($9, discount_code),
       discount_amount=COALESCE($10, discount_amount),
       updated_at=NOW()
 WHERE id=$1 AND status='payment_pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id,
		done.Provider, done.ProviderRef, done.ProviderTxID, done.FinalAmount,
		done.Cycle, done.PeriodStart, done.PeriodEnd, done.DiscountCode, done.DiscountAmount)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *contractRepo) CancelIfPending(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, ref string) (bool, error) {
	const q = `
UPDATE contracts
   SET status='cancelled', provider=$2, provider_ref=$3, updated_at=NOW()
 WHERE id=$1 AND status='payment_pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, provider, ref)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *contractRepo) LinkUser(ctx context.Context, tx repository.Tx, id, userID string) error {
	const q = `UPDATE contracts SET user_id=$2, guest=false, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, userID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *contractRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Contract, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + contractCols + ` FROM contracts
 WHERE status='payment_pending' AND provider_ref <> '' AND created_at < $1
 ORDER BY created_at ASC LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Contract
	for rows.Next() {
		c := new(model.Contract)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Email, &c.ProductType, &c.DeclaredAmount,
			&c.DiscountCode, &c.DiscountAmount, &c.Status, &c.Provider, &c.ProviderRef,
			&c.ProviderTxID, &c.SubscriptionType, &c.FinalAmount, &c.PeriodStart,
			&c.PeriodEnd, &c.Guest, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, nil
}
