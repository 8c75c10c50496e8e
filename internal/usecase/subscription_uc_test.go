//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/usecase"
)

type subFixture struct {
	subs   *memSubscriptionRepo
	plans  *memPlanRepo
	users  *memUserRepo
	locker *MockLocker
	tm     *memTxManager
	uc     usecase.SubscriptionUseCase
}

func newSubFixture() *subFixture {
	f := &subFixture{
		subs:   newMemSubscriptionRepo(),
		plans:  newMemPlanRepo(),
		users:  newMemUserRepo(),
		locker: &MockLocker{},
		tm:     &memTxManager{},
	}
	f.uc = usecase.NewSubscriptionUseCase(f.subs, f.plans, f.users, f.locker, f.tm, newTestLogger())
	return f
}

func (f *subFixture) seedUser(t *testing.T) *model.User {
	t.Helper()
	u, err := model.NewPendingUser("buyer@example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.users.Save(context.Background(), repository.NoTX, u); err != nil {
		t.Fatal(err)
	}
	return u
}

func completedContract(t *testing.T) *model.Contract {
	t.Helper()
	c, err := model.NewContract(uuid.NewString(), "buyer@example.com", "basic-subscription", 3700, model.BillingCycleMonthly, model.ProviderStripe)
	if err != nil {
		t.Fatal(err)
	}
	c.Status = model.ContractStatusCompleted
	return c
}

func TestRecordPayment_SingleOpenSubscriptionAcrossPayments(t *testing.T) {
	f := newSubFixture()
	ctx := context.Background()
	u := f.seedUser(t)
	quote := &usecase.PriceQuote{Key: "basic", DisplayName: "Basic", Amount: 3700}

	var first *model.Subscription
	for i := 0; i < 3; i++ {
		sub, err := f.uc.RecordPayment(ctx, u, completedContract(t), quote, 3700, "usd")
		if err != nil {
			t.Fatalf("RecordPayment #%d: %v", i, err)
		}
		if first == nil {
			first = sub
		} else if sub.ID != first.ID {
			t.Fatalf("payment #%d created a new subscription %s, want update of %s", i, sub.ID, first.ID)
		}
	}
	if f.subs.count() != 1 {
		t.Errorf("subscription rows = %d, want 1", f.subs.count())
	}
	if f.locker.Locks != 3 || f.locker.Unlocks != 3 {
		t.Errorf("locks=%d unlocks=%d, want 3/3", f.locker.Locks, f.locker.Unlocks)
	}
	if f.tm.Calls != 3 {
		t.Errorf("transactions = %d, want one per upsert", f.tm.Calls)
	}

	stored, _ := f.users.FindByID(ctx, repository.NoTX, u.ID)
	if stored.TotalSpent != 3*3700 {
		t.Errorf("TotalSpent = %d, want %d", stored.TotalSpent, 3*3700)
	}
	if stored.LastPaymentAmount != 3700 {
		t.Errorf("LastPaymentAmount = %d", stored.LastPaymentAmount)
	}
	if stored.SubscriptionStatus != model.SubscriptionStatusActive {
		t.Errorf("SubscriptionStatus = %s", stored.SubscriptionStatus)
	}
}

func TestRecordPayment_ResolvesPlanBySlug(t *testing.T) {
	f := newSubFixture()
	ctx := context.Background()
	u := f.seedUser(t)

	plan, err := model.NewPlan(uuid.NewString(), "basic", "Basic", 3700, 37000)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.plans.Save(ctx, repository.NoTX, plan); err != nil {
		t.Fatal(err)
	}

	quote := &usecase.PriceQuote{Key: "basic", DisplayName: "Basic", Amount: 3700}
	sub, err := f.uc.RecordPayment(ctx, u, completedContract(t), quote, 3700, "usd")
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if sub.PlanID == nil || *sub.PlanID != plan.ID {
		t.Errorf("PlanID = %v, want %s", sub.PlanID, plan.ID)
	}
	stored, _ := f.users.FindByID(ctx, repository.NoTX, u.ID)
	if stored.PlanID == nil || *stored.PlanID != plan.ID {
		t.Errorf("user PlanID = %v", stored.PlanID)
	}
	if stored.SubscriptionName != "Basic" {
		t.Errorf("SubscriptionName = %q", stored.SubscriptionName)
	}
}

func TestRecordPayment_FallbackNameWhenNoPlanResolves(t *testing.T) {
	f := newSubFixture()
	ctx := context.Background()
	u := f.seedUser(t)

	quote := &usecase.PriceQuote{Key: "trading-tutor", DisplayName: "Trading Tutor", Amount: 49700}
	sub, err := f.uc.RecordPayment(ctx, u, completedContract(t), quote, 49700, "usd")
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if sub.PlanID != nil {
		t.Errorf("PlanID = %v, want nil for unresolved plan", sub.PlanID)
	}
	stored, _ := f.users.FindByID(ctx, repository.NoTX, u.ID)
	if stored.SubscriptionName != "Trading Tutor" {
		t.Errorf("SubscriptionName = %q", stored.SubscriptionName)
	}
}

func TestRecordPayment_DiscountRecordedOnSubscription(t *testing.T) {
	f := newSubFixture()
	ctx := context.Background()
	u := f.seedUser(t)

	c := completedContract(t)
	code := "WELCOME10"
	amount := int64(1000)
	c.DiscountCode = &code
	c.DiscountAmount = &amount

	quote := &usecase.PriceQuote{Key: "basic", DisplayName: "Basic", Amount: 3700}
	sub, err := f.uc.RecordPayment(ctx, u, c, quote, 2700, "usd")
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if len(sub.Discounts) != 1 || sub.Discounts[0].Code != "WELCOME10" || sub.Discounts[0].Amount != 1000 {
		t.Errorf("Discounts = %+v", sub.Discounts)
	}
	if sub.Price != 2700 {
		t.Errorf("Price = %d, want 2700", sub.Price)
	}
}

func TestRecordPayment_LockFailure(t *testing.T) {
	f := newSubFixture()
	ctx := context.Background()
	u := f.seedUser(t)
	f.locker.FailLock = true

	quote := &usecase.PriceQuote{Key: "basic", DisplayName: "Basic", Amount: 3700}
	_, err := f.uc.RecordPayment(ctx, u, completedContract(t), quote, 3700, "usd")
	if !errors.Is(err, domain.ErrLockNotAcquired) {
		t.Fatalf("err = %v, want ErrLockNotAcquired", err)
	}
	if f.subs.count() != 0 {
		t.Errorf("no subscription must be written without the lock")
	}
}

func TestRecordPayment_UserSaveFailureSurfaces(t *testing.T) {
	f := newSubFixture()
	ctx := context.Background()
	u := f.seedUser(t)
	f.users.SaveFunc = func(ctx context.Context, _ *model.User) error {
		return domain.ErrOperationFailed
	}

	quote := &usecase.PriceQuote{Key: "basic", DisplayName: "Basic", Amount: 3700}
	sub, err := f.uc.RecordPayment(ctx, u, completedContract(t), quote, 3700, "usd")
	if !errors.Is(err, domain.ErrOperationFailed) {
		t.Fatalf("err = %v, want ErrOperationFailed", err)
	}
	if sub != nil {
		t.Errorf("subscription = %+v, want nil when the overlay write fails", sub)
	}
}

func TestCurrentForUser(t *testing.T) {
	f := newSubFixture()
	ctx := context.Background()
	u := f.seedUser(t)

	if _, err := f.uc.CurrentForUser(ctx, u.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before any payment", err)
	}

	quote := &usecase.PriceQuote{Key: "basic", DisplayName: "Basic", Amount: 3700}
	if _, err := f.uc.RecordPayment(ctx, u, completedContract(t), quote, 3700, "usd"); err != nil {
		t.Fatal(err)
	}
	sub, err := f.uc.CurrentForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("CurrentForUser: %v", err)
	}
	if sub.UserID != u.ID || !sub.Status.IsOpen() {
		t.Errorf("sub = %+v", sub)
	}
}
