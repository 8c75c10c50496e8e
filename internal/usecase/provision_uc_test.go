//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/usecase"
)

type provisionFixture struct {
	users     *memUserRepo
	contracts *memContractRepo
	mailer    *MockMailer
	uc        usecase.ProvisionUseCase
}

func newProvisionFixture() *provisionFixture {
	f := &provisionFixture{
		users:     newMemUserRepo(),
		contracts: newMemContractRepo(),
		mailer:    &MockMailer{},
	}
	f.uc = usecase.NewProvisionUseCase(f.users, f.contracts, f.mailer, "https://shop.example/return", false, newTestLogger())
	return f
}

func (f *provisionFixture) seedContract(t *testing.T, id, email string) *model.Contract {
	t.Helper()
	c, err := model.NewContract(id, email, "basic-subscription", 3700, model.BillingCycleMonthly, model.ProviderStripe)
	if err != nil {
		t.Fatalf("NewContract: %v", err)
	}
	if err := f.contracts.Save(context.Background(), repository.NoTX, c); err != nil {
		t.Fatalf("save contract: %v", err)
	}
	return c
}

func TestProvision_CreatesPendingUserForUnknownEmail(t *testing.T) {
	f := newProvisionFixture()
	ctx := context.Background()
	c := f.seedContract(t, "ct-1", "new@example.com")

	out := f.uc.ProvisionForContract(ctx, c)
	if out.Status != usecase.ProvisionCreatedPendingUser {
		t.Fatalf("status = %s", out.Status)
	}
	if out.User == nil || !out.User.IsPendingUser {
		t.Fatalf("user = %+v", out.User)
	}
	if out.User.ActivationToken == nil || len(*out.User.ActivationToken) != 64 {
		t.Errorf("activation token = %v, want 64 hex chars", out.User.ActivationToken)
	}
	if c.UserID == nil || *c.UserID != out.User.ID {
		t.Error("contract not linked to the new user")
	}
	saved, _ := f.contracts.FindByID(ctx, repository.NoTX, "ct-1")
	if saved.Guest {
		t.Error("contract must not remain a guest contract after linking")
	}
	if len(f.mailer.Sent) != 1 || f.mailer.Sent[0].Kind != "activation" {
		t.Errorf("mailer = %+v", f.mailer.Sent)
	}
}

func TestProvision_RotatesTokenForPendingUser(t *testing.T) {
	f := newProvisionFixture()
	ctx := context.Background()
	c := f.seedContract(t, "ct-1", "pending@example.com")

	first := f.uc.ProvisionForContract(ctx, c)
	if first.Status != usecase.ProvisionCreatedPendingUser {
		t.Fatalf("first status = %s", first.Status)
	}
	firstToken := *first.User.ActivationToken

	c2 := f.seedContract(t, "ct-2", "pending@example.com")
	second := f.uc.ProvisionForContract(ctx, c2)
	if second.Status != usecase.ProvisionUpdatedPendingUser {
		t.Fatalf("second status = %s", second.Status)
	}
	if second.User.ID != first.User.ID {
		t.Error("a second payment for the same email must reuse the account")
	}
	if *second.User.ActivationToken == firstToken {
		t.Error("activation token must rotate on re-provision")
	}
	if len(f.mailer.Sent) != 2 {
		t.Errorf("emails sent = %d, want 2", len(f.mailer.Sent))
	}
}

func TestProvision_ActiveUserGetsWelcome(t *testing.T) {
	f := newProvisionFixture()
	ctx := context.Background()

	u, _ := model.NewPendingUser("active@example.com", "Jo")
	u.Activate()
	if err := f.users.Save(ctx, repository.NoTX, u); err != nil {
		t.Fatal(err)
	}

	c := f.seedContract(t, "ct-1", "active@example.com")
	out := f.uc.ProvisionForContract(ctx, c)
	if out.Status != usecase.ProvisionExistingActivated {
		t.Fatalf("status = %s", out.Status)
	}
	if len(f.mailer.Sent) != 1 || f.mailer.Sent[0].Kind != "welcome" {
		t.Errorf("mailer = %+v", f.mailer.Sent)
	}
	if c.UserID == nil || *c.UserID != u.ID {
		t.Error("contract not linked")
	}
}

func TestProvision_LinkedActiveUserIsIdempotentReplay(t *testing.T) {
	f := newProvisionFixture()
	ctx := context.Background()

	u, _ := model.NewPendingUser("owner@example.com", "")
	u.Activate()
	if err := f.users.Save(ctx, repository.NoTX, u); err != nil {
		t.Fatal(err)
	}
	c := f.seedContract(t, "ct-1", "owner@example.com")
	c.UserID = &u.ID

	out := f.uc.ProvisionForContract(ctx, c)
	if out.Status != usecase.ProvisionExistingActiveUser {
		t.Fatalf("status = %s", out.Status)
	}
	if len(f.mailer.Sent) != 0 {
		t.Errorf("replay must not send email, got %+v", f.mailer.Sent)
	}
}

func TestProvision_SaveFailureDegrades(t *testing.T) {
	f := newProvisionFixture()
	ctx := context.Background()
	f.users.SaveFunc = func(ctx context.Context, u *model.User) error {
		return domain.ErrOperationFailed
	}
	c := f.seedContract(t, "ct-1", "new@example.com")

	out := f.uc.ProvisionForContract(ctx, c)
	if out.Status != usecase.ProvisionFailed {
		t.Fatalf("status = %s, want account_processing_failed", out.Status)
	}
	if out.Degraded == nil {
		t.Error("degraded cause missing")
	}
}

func TestActivate(t *testing.T) {
	f := newProvisionFixture()
	ctx := context.Background()
	c := f.seedContract(t, "ct-1", "new@example.com")

	out := f.uc.ProvisionForContract(ctx, c)
	token := *out.User.ActivationToken

	t.Run("valid token activates once", func(t *testing.T) {
		u, err := f.uc.Activate(ctx, token)
		if err != nil {
			t.Fatalf("Activate: %v", err)
		}
		if u.IsPendingUser || !u.EmailVerified {
			t.Errorf("user = %+v", u)
		}
		if u.ActivationToken != nil {
			t.Error("token must be cleared on activation")
		}
	})

	t.Run("reuse fails as used", func(t *testing.T) {
		_, err := f.uc.Activate(ctx, token)
		if !errors.Is(err, domain.ErrActivationTokenUsed) {
			t.Errorf("err = %v, want ErrActivationTokenUsed", err)
		}
	})

	t.Run("expired token fails as expired", func(t *testing.T) {
		u, _ := model.NewPendingUser("stale@example.com", "")
		u.SetActivationToken("deadbeef", time.Now().Add(-time.Hour))
		if err := f.users.Save(ctx, repository.NoTX, u); err != nil {
			t.Fatal(err)
		}
		_, err := f.uc.Activate(ctx, "deadbeef")
		if !errors.Is(err, domain.ErrActivationTokenExpired) {
			t.Errorf("err = %v, want ErrActivationTokenExpired", err)
		}
	})

	t.Run("empty token is invalid", func(t *testing.T) {
		_, err := f.uc.Activate(ctx, "")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})
}
