//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewUserRepo(testPool)
	ctx := context.Background()

	t.Run("activation clears the token against the live schema", func(t *testing.T) {
		cleanup(t)

		u, err := model.NewPendingUser("buyer@example.com", "Jo")
		if err != nil {
			t.Fatalf("NewPendingUser: %v", err)
		}
		u.SetActivationToken("deadbeefcafe", time.Now().Add(24*time.Hour))
		if err := repo.Save(ctx, nil, u); err != nil {
			t.Fatalf("save pending user: %v", err)
		}

		found, err := repo.FindByActivationToken(ctx, nil, "deadbeefcafe")
		if err != nil {
			t.Fatalf("find by activation token: %v", err)
		}
		if found.ID != u.ID || !found.IsPendingUser {
			t.Fatalf("found = %+v", found)
		}

		// Activation nils the token; the row must still persist.
		found.Activate()
		if err := repo.Save(ctx, nil, found); err != nil {
			t.Fatalf("save after activation: %v", err)
		}

		back, err := repo.FindByID(ctx, nil, u.ID)
		if err != nil {
			t.Fatalf("find by id: %v", err)
		}
		if back.IsPendingUser || !back.EmailVerified {
			t.Errorf("user = pending %v, verified %v; want active", back.IsPendingUser, back.EmailVerified)
		}
		if back.ActivationToken != nil {
			t.Errorf("activation token = %q, want cleared", *back.ActivationToken)
		}
		if _, err := repo.FindByActivationToken(ctx, nil, "deadbeefcafe"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("consumed token lookup err = %v, want ErrNotFound", err)
		}
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		cleanup(t)

		u, err := model.NewPendingUser("Mixed.Case@Example.com", "")
		if err != nil {
			t.Fatalf("NewPendingUser: %v", err)
		}
		if err := repo.Save(ctx, nil, u); err != nil {
			t.Fatalf("save: %v", err)
		}
		found, err := repo.FindByEmail(ctx, nil, "MIXED.CASE@example.COM")
		if err != nil {
			t.Fatalf("find by email: %v", err)
		}
		if found.ID != u.ID {
			t.Errorf("found %s, want %s", found.ID, u.ID)
		}
	})
}
