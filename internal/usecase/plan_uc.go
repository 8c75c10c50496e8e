package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

type PlanUseCase interface {
	Create(ctx context.Context, slug, name string, priceMonthly, priceYearly int64) (*model.Plan, error)
	List(ctx context.Context) ([]*model.Plan, error)
	// FindBySlugOrName is the lookup the provisioning pipeline and the admin
	// layer share: slug first, then case-insensitive name.
	FindBySlugOrName(ctx context.Context, slugOrName string) (*model.Plan, error)
}

type planUC struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *planUC {
	return &planUC{plans: plans, log: logger}
}

func (u *planUC) Create(ctx context.Context, slug, name string, priceMonthly, priceYearly int64) (*model.Plan, error) {
	p, err := model.NewPlan(uuid.NewString(), slug, name, priceMonthly, priceYearly)
	if err != nil {
		return nil, err
	}
	if err := u.plans.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *planUC) List(ctx context.Context) ([]*model.Plan, error) {
	return u.plans.ListAll(ctx, repository.NoTX)
}

func (u *planUC) FindBySlugOrName(ctx context.Context, slugOrName string) (*model.Plan, error) {
	if p, err := u.plans.FindBySlug(ctx, repository.NoTX, slugOrName); err == nil && !p.IsZero() {
		return p, nil
	}
	if p, err := u.plans.FindByName(ctx, repository.NoTX, slugOrName); err == nil && !p.IsZero() {
		return p, nil
	}
	return nil, domain.ErrNotFound
}
