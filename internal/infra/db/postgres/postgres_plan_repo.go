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

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planCols = `id, slug, name, status, price_monthly, price_yearly, created_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (` + planCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  slug=$2, name=$3, status=$4, price_monthly=$5, price_yearly=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Slug, p.Name, p.Status, p.PriceMonthly, p.PriceYearly, p.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT ` + planCols + ` FROM plans WHERE id=$1;`
	return r.scanOne(ctx, tx, q, id)
}

func (r *planRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	const q = `SELECT ` + planCols + ` FROM plans WHERE slug=$1 AND status='active' LIMIT 1;`
	return r.scanOne(ctx, tx, q, slug)
}

func (r *planRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	const q = `SELECT ` + planCols + ` FROM plans WHERE LOWER(name)=LOWER($1) AND status='active' LIMIT 1;`
	return r.scanOne(ctx, tx, q, name)
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT ` + planCols + ` FROM plans ORDER BY name;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p := new(model.Plan)
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Status, &p.PriceMonthly, &p.PriceYearly, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *planRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Status, &p.PriceMonthly, &p.PriceYearly, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
