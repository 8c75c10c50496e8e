package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/adapter"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/infra/metrics"
)

// Compile-time check
var _ ProvisionUseCase = (*provisionUC)(nil)

type ProvisionStatus string

const (
	ProvisionExistingActiveUser ProvisionStatus = "existing_active_user"
	ProvisionCreatedPendingUser ProvisionStatus = "created_pending_user"
	ProvisionUpdatedPendingUser ProvisionStatus = "updated_pending_user"
	ProvisionExistingActivated  ProvisionStatus = "existing_user_activated"
	ProvisionFailed             ProvisionStatus = "account_processing_failed"
)

// ProvisionOutcome is the result of mapping a paid contract to an account.
// Degraded carries the swallowed cause when Status is account_processing_failed:
// the payment already succeeded, so the failure is surfaced to operators
// instead of the customer.
type ProvisionOutcome struct {
	Status   ProvisionStatus
	User     *model.User
	Degraded error
}

type ProvisionUseCase interface {
	// ProvisionForContract creates, refreshes, or confirms the account owning a
	// paid contract. It never returns an error; failures degrade the outcome.
	ProvisionForContract(ctx context.Context, c *model.Contract) ProvisionOutcome
	// Activate consumes an activation token, flipping pending -> active once.
	Activate(ctx context.Context, token string) (*model.User, error)
}

type provisionUC struct {
	users     repository.UserRepository
	contracts repository.ContractRepository
	mailer    adapter.Mailer
	log       *zerolog.Logger
	returnURL string
	dev       bool // dev runs log PII unredacted
}

func NewProvisionUseCase(users repository.UserRepository, contracts repository.ContractRepository, mailer adapter.Mailer, returnURL string, dev bool, logger *zerolog.Logger) *provisionUC {
	return &provisionUC{users: users, contracts: contracts, mailer: mailer, returnURL: returnURL, dev: dev, log: logger}
}

func (p *provisionUC) ProvisionForContract(ctx context.Context, c *model.Contract) ProvisionOutcome {
	defer logging.TraceDuration(p.log, "ProvisionUC.ProvisionForContract")()

	out := p.provision(ctx, c)
	metrics.IncProvisionOutcome(string(out.Status))
	if out.Status == ProvisionFailed {
		p.log.Error().Err(out.Degraded).
			Str("contract_id", c.ID).
			Str("email", logging.Redact(c.Email, p.dev)).
			Msg("account provisioning degraded after successful payment; needs manual reconciliation")
	}
	return out
}

func (p *provisionUC) provision(ctx context.Context, c *model.Contract) ProvisionOutcome {
	// 1. Contract already linked to a non-pending user: idempotent replay.
	if c.UserID != nil && *c.UserID != "" {
		u, err := p.users.FindByID(ctx, repository.NoTX, *c.UserID)
		if err == nil && !u.IsZero() && !u.IsPendingUser {
			return ProvisionOutcome{Status: ProvisionExistingActiveUser, User: u}
		}
	}

	u, err := p.users.FindByEmail(ctx, repository.NoTX, c.Email)
	switch {
	case err == nil && u != nil && u.IsPendingUser:
		return p.refreshPending(ctx, c, u)
	case err == nil && u != nil:
		return p.confirmActive(ctx, c, u)
	case err == domain.ErrNotFound || u == nil:
		return p.createPending(ctx, c)
	default:
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
}

// 2. No account for this email: create a pending one and send the activation link.
func (p *provisionUC) createPending(ctx context.Context, c *model.Contract) ProvisionOutcome {
	u, err := model.NewPendingUser(c.Email, "")
	if err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	token, err := newActivationToken()
	if err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	u.SetActivationToken(token, time.Now().Add(activationTokenTTL))

	if err := p.users.Save(ctx, repository.NoTX, u); err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	if err := p.contracts.LinkUser(ctx, repository.NoTX, c.ID, u.ID); err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	c.UserID = &u.ID

	if err := p.mailer.SendActivationEmail(ctx, u.Email, u.Name, token, c.ProductType, p.returnURL); err != nil {
		// Account exists and is linked; a lost email is re-sendable by support.
		p.log.Warn().Err(err).Str("contract_id", c.ID).Msg("activation email send failed")
	}
	return ProvisionOutcome{Status: ProvisionCreatedPendingUser, User: u}
}

// 3. Pending account: rotate the token, relink, resend.
func (p *provisionUC) refreshPending(ctx context.Context, c *model.Contract, u *model.User) ProvisionOutcome {
	token, err := newActivationToken()
	if err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	u.SetActivationToken(token, time.Now().Add(activationTokenTTL))
	if err := p.users.Save(ctx, repository.NoTX, u); err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	if err := p.linkIfUnlinked(ctx, c, u); err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	if err := p.mailer.SendActivationEmail(ctx, u.Email, u.Name, token, c.ProductType, p.returnURL); err != nil {
		p.log.Warn().Err(err).Str("contract_id", c.ID).Msg("activation email send failed")
	}
	return ProvisionOutcome{Status: ProvisionUpdatedPendingUser, User: u}
}

// 4. Active account: link and confirm.
func (p *provisionUC) confirmActive(ctx context.Context, c *model.Contract, u *model.User) ProvisionOutcome {
	if err := p.linkIfUnlinked(ctx, c, u); err != nil {
		return ProvisionOutcome{Status: ProvisionFailed, Degraded: err}
	}
	if err := p.mailer.SendWelcomeEmail(ctx, u.Email, u.Name, c.ProductType, p.returnURL); err != nil {
		p.log.Warn().Err(err).Str("contract_id", c.ID).Msg("welcome email send failed")
	}
	return ProvisionOutcome{Status: ProvisionExistingActivated, User: u}
}

func (p *provisionUC) linkIfUnlinked(ctx context.Context, c *model.Contract, u *model.User) error {
	if c.UserID != nil && *c.UserID == u.ID {
		return nil
	}
	if err := p.contracts.LinkUser(ctx, repository.NoTX, c.ID, u.ID); err != nil {
		return err
	}
	c.UserID = &u.ID
	return nil
}

func (p *provisionUC) Activate(ctx context.Context, token string) (*model.User, error) {
	defer logging.TraceDuration(p.log, "ProvisionUC.Activate")()

	if token == "" {
		return nil, domain.ErrInvalidArgument
	}
	u, err := p.users.FindByActivationToken(ctx, repository.NoTX, token)
	if err != nil || u == nil {
		// Consumed tokens are cleared on activation, so not-found covers reuse.
		return nil, domain.ErrActivationTokenUsed
	}
	if u.ActivationExpiresAt == nil || time.Now().After(*u.ActivationExpiresAt) {
		return nil, domain.ErrActivationTokenExpired
	}
	u.Activate()
	if err := p.users.Save(ctx, repository.NoTX, u); err != nil {
		return nil, fmt.Errorf("persist activation: %w", err)
	}
	return u, nil
}
