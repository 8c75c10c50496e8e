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

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const txnCols = `id, user_id, contract_id, type, status, gross, fee, net, tax, discount, currency, provider, provider_ref, payment_method, meta, created_at`

// Append is insert-only. Ledger rows are never updated after the fact.
func (r *transactionRepo) Append(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	meta, err := json.Marshal(t.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO transactions (` + txnCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`

	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.UserID, t.ContractID, t.Type, t.Status, t.Gross, t.Fee, t.Net,
		t.Tax, t.Discount, t.Currency, t.Provider, t.ProviderRef, t.PaymentMethod,
		meta, t.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Transaction, error) {
	const q = `SELECT ` + txnCols + ` FROM transactions WHERE provider_ref=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	const q = `SELECT ` + txnCols + ` FROM transactions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// SumByPeriod totals succeeded charges since the start of the current
// period. period is a DATE_TRUNC field name: 'week', 'month' or 'year'.
func (r *transactionRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	switch period {
	case "week", "month", "year":
	default:
		return 0, domain.ErrInvalidArgument
	}
	const q = `
SELECT COALESCE(SUM(gross), 0) FROM transactions
 WHERE status='succeeded' AND type='charge'
   AND created_at >= DATE_TRUNC($1, NOW());`

	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	var meta []byte
	if err := row.Scan(&t.ID, &t.UserID, &t.ContractID, &t.Type, &t.Status,
		&t.Gross, &t.Fee, &t.Net, &t.Tax, &t.Discount, &t.Currency,
		&t.Provider, &t.ProviderRef, &t.PaymentMethod, &meta, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Meta); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return t, nil
}
