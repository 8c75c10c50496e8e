package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// UserLocker serializes subscription upserts per user so two concurrent
// captures cannot create two open subscriptions. Satisfied by the redis
// Locker.
type UserLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type SubscriptionUseCase interface {
	// RecordPayment upserts the user's open subscription for a captured
	// contract and refreshes the denormalized fields on the user record.
	RecordPayment(ctx context.Context, user *model.User, c *model.Contract, quote *PriceQuote, amount int64, currency string) (*model.Subscription, error)
	// CurrentForUser returns the user's open subscription, if any.
	CurrentForUser(ctx context.Context, userID string) (*model.Subscription, error)
	CountOpenByPlan(ctx context.Context) (map[string]int, error)
}

type subscriptionUC struct {
	subs   repository.SubscriptionRepository
	plans  repository.PlanRepository
	users  repository.UserRepository
	locker UserLocker
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, plans repository.PlanRepository, users repository.UserRepository, locker UserLocker, tm repository.TransactionManager, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{subs: subs, plans: plans, users: users, locker: locker, tm: tm, log: logger}
}

const upsertLockTTL = 10 * time.Second

func (u *subscriptionUC) RecordPayment(ctx context.Context, user *model.User, c *model.Contract, quote *PriceQuote, amount int64, currency string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.RecordPayment")()

	key := "subs:upsert:" + user.ID
	token, err := u.locker.TryLock(ctx, key, upsertLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrLockNotAcquired, user.ID)
	}
	defer func() { _ = u.locker.Unlock(ctx, key, token) }()

	plan, planName := u.resolvePlan(ctx, quote)

	now := time.Now()
	periodEnd := model.PeriodEndFor(now, c.SubscriptionType)

	var discounts []model.AppliedDiscount
	if c.DiscountAmount != nil && *c.DiscountAmount > 0 {
		code := ""
		if c.DiscountCode != nil {
			code = *c.DiscountCode
		}
		discounts = []model.AppliedDiscount{{Code: code, Amount: *c.DiscountAmount}}
	}

	// The subscription row and the denormalized user overlay move together;
	// the admin surface must never observe one without the other.
	var out *model.Subscription
	txErr := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindOpenByUser(ctx, tx, user.ID)
		switch {
		case err == nil && sub != nil:
			// Second successful payment while an open subscription exists:
			// update in place, never create a duplicate.
			sub.PeriodStart = now
			sub.PeriodEnd = periodEnd
			sub.BillingCycle = c.SubscriptionType
			sub.Price = amount
			sub.Currency = currency
			sub.PaymentMethod = string(c.Provider)
			sub.Discounts = discounts
			sub.Status = model.SubscriptionStatusActive
			sub.UpdatedAt = now
			if !plan.IsZero() {
				sub.PlanID = &plan.ID
			}
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			metrics.IncSubscriptionUpsert("updated")
		case err == domain.ErrNotFound || sub == nil:
			sub, err = model.NewSubscription(uuid.NewString(), user.ID, c.SubscriptionType, amount, currency)
			if err != nil {
				return err
			}
			sub.PaymentMethod = string(c.Provider)
			sub.Discounts = discounts
			if !plan.IsZero() {
				sub.PlanID = &plan.ID
			}
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			metrics.IncSubscriptionUpsert("created")
		default:
			return err
		}

		u.applyToUser(user, sub, plan, planName, amount)
		if err := u.users.Save(ctx, tx, user); err != nil {
			return fmt.Errorf("update user subscription fields: %w", err)
		}
		out = sub
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return out, nil
}

// resolvePlan looks up the plan by slug, then by case-insensitive name, and
// finally falls back to a capitalized product key so an unresolved plan never
// blocks the pipeline.
func (u *subscriptionUC) resolvePlan(ctx context.Context, quote *PriceQuote) (*model.Plan, string) {
	if p, err := u.plans.FindBySlug(ctx, repository.NoTX, quote.Key); err == nil && !p.IsZero() {
		return p, p.Name
	}
	if p, err := u.plans.FindByName(ctx, repository.NoTX, quote.DisplayName); err == nil && !p.IsZero() {
		return p, p.Name
	}
	name := quote.DisplayName
	if name == "" {
		name = capitalizeKey(quote.Key)
	}
	u.log.Debug().Str("product", quote.Key).Msg("no plan resolved; using fallback name")
	return nil, name
}

func capitalizeKey(key string) string {
	parts := strings.Split(key, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// applyToUser refreshes the denormalized subscription overlay and cumulative
// spend counters. Runs regardless of whether a Subscription row was touched.
func (u *subscriptionUC) applyToUser(user *model.User, sub *model.Subscription, plan *model.Plan, planName string, amount int64) {
	now := time.Now()
	user.SubscriptionName = planName
	user.SubscriptionStatus = model.SubscriptionStatusActive
	user.SubscriptionStart = &sub.PeriodStart
	user.SubscriptionEnd = &sub.PeriodEnd
	user.NextBillingAt = &sub.PeriodEnd
	user.LastBillingAt = &now
	user.LastPaymentAmount = amount
	user.TotalSpent += amount
	user.LifetimeValue += amount
	if !plan.IsZero() {
		user.PlanID = &plan.ID
	}
	user.UpdatedAt = now
}

func (u *subscriptionUC) CurrentForUser(ctx context.Context, userID string) (*model.Subscription, error) {
	return u.subs.FindOpenByUser(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) CountOpenByPlan(ctx context.Context) (map[string]int, error) {
	return u.subs.CountOpenByPlan(ctx, repository.NoTX)
}
