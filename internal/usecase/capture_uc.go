package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/adapter"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/infra/metrics"
)

// Compile-time check
var _ CaptureUseCase = (*captureUC)(nil)

// freeRefPrefix marks synthetic references for zero-price charges that never
// touched a gateway.
const freeRefPrefix = "free_"

// OrderRequest mirrors the order/capture request bodies. Amounts are minor
// units; nil means "not supplied".
type OrderRequest struct {
	ContractID       string
	SubscriptionType model.BillingCycle
	DiscountCode     *string
	DiscountAmount   *int64
	Amount           *int64 // client-declared final amount
}

type OrderResult struct {
	ProviderRef  string
	ClientHandle string
	Amount       int64 // minor units actually to be charged
	Currency     string
}

type CaptureResult struct {
	ContractID       string
	Status           model.ContractStatus
	AlreadyProcessed bool
	PaymentID        string // provider transaction id
	Amount           int64
	Currency         string
	Provision        ProvisionOutcome
	Subscription     *model.Subscription
}

type CaptureUseCase interface {
	// CreateOrder resolves and reconciles the price, then creates the
	// provider-side payment object and records its reference on the contract.
	CreateOrder(ctx context.Context, provider model.PaymentProvider, req OrderRequest) (*OrderResult, error)
	// Capture turns a provider confirmation into consistent internal state:
	// contract transition, account provisioning, subscription upsert, ledger
	// append. Replay-safe: a terminal contract short-circuits.
	Capture(ctx context.Context, provider model.PaymentProvider, orderID string, req OrderRequest) (*CaptureResult, error)
}

type captureUC struct {
	contracts repository.ContractRepository
	pricing   PricingUseCase
	gateways  map[model.PaymentProvider]adapter.PaymentGateway
	provision ProvisionUseCase
	subs      SubscriptionUseCase
	ledger    LedgerUseCase
	currency  string
	log       *zerolog.Logger
}

func NewCaptureUseCase(
	contracts repository.ContractRepository,
	pricing PricingUseCase,
	gateways map[model.PaymentProvider]adapter.PaymentGateway,
	provision ProvisionUseCase,
	subs SubscriptionUseCase,
	ledger LedgerUseCase,
	currency string,
	logger *zerolog.Logger,
) *captureUC {
	return &captureUC{
		contracts: contracts,
		pricing:   pricing,
		gateways:  gateways,
		provision: provision,
		subs:      subs,
		ledger:    ledger,
		currency:  currency,
		log:       logger,
	}
}

func (u *captureUC) CreateOrder(ctx context.Context, provider model.PaymentProvider, req OrderRequest) (*OrderResult, error) {
	defer logging.TraceDuration(u.log, "CaptureUC.CreateOrder")()

	c, err := u.contracts.FindByID(ctx, repository.NoTX, req.ContractID)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return nil, fmt.Errorf("%w: contract %s already %s", domain.ErrContractNotEligible, c.ID, c.Status)
	}

	amount, quote, err := u.reconciledAmount(ctx, provider, c, req)
	if err != nil {
		return nil, err
	}

	if amount == 0 {
		// Zero-price checkout never touches a gateway.
		ref := freeRefPrefix + uuid.NewString()
		if err := u.contracts.SetProviderRef(ctx, repository.NoTX, c.ID, model.ProviderFree, ref); err != nil {
			return nil, err
		}
		return &OrderResult{ProviderRef: ref, Amount: 0, Currency: u.currency}, nil
	}

	gw, err := u.gateway(provider)
	if err != nil {
		return nil, err
	}
	intent, err := gw.CreateIntent(ctx, adapter.CreateIntentRequest{
		ContractID: c.ID,
		Amount:     amount,
		Currency:   u.currency,
		Metadata: map[string]string{
			"contract_id": c.ID,
			"product":     quote.DisplayName,
			"email":       c.Email,
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			metrics.IncGatewayError(string(provider))
		}
		return nil, err
	}
	if err := u.contracts.SetProviderRef(ctx, repository.NoTX, c.ID, provider, intent.ProviderRef); err != nil {
		return nil, err
	}
	return &OrderResult{
		ProviderRef:  intent.ProviderRef,
		ClientHandle: intent.ClientHandle,
		Amount:       amount,
		Currency:     u.currency,
	}, nil
}

func (u *captureUC) Capture(ctx context.Context, provider model.PaymentProvider, orderID string, req OrderRequest) (*CaptureResult, error) {
	defer logging.TraceDuration(u.log, "CaptureUC.Capture")()

	c, err := u.findContract(ctx, orderID, req)
	if err != nil {
		return nil, err
	}

	// Primary idempotency boundary: a terminal contract short-circuits before
	// any pricing, gateway, or provisioning work re-runs.
	if c.IsTerminal() {
		metrics.IncCapture(string(provider), "replayed")
		return u.replayResult(c), nil
	}

	amount, quote, err := u.reconciledAmount(ctx, provider, c, req)
	if err != nil {
		return nil, err
	}
	// A contract already routed to the free provider has no gateway object to
	// settle against; a bare retry must not re-price it at the full base.
	if c.Provider == model.ProviderFree || strings.HasPrefix(orderID, freeRefPrefix) {
		amount = 0
	}

	providerTxID, effectiveProvider, err := u.settle(ctx, provider, c, orderID, amount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	done := repository.ContractCompletion{
		Provider:       effectiveProvider,
		ProviderRef:    orderID,
		ProviderTxID:   providerTxID,
		FinalAmount:    amount,
		Cycle:          c.SubscriptionType,
		PeriodStart:    now,
		PeriodEnd:      model.PeriodEndFor(now, c.SubscriptionType),
		DiscountCode:   firstNonNil(req.DiscountCode, c.DiscountCode),
		DiscountAmount: firstNonNil(req.DiscountAmount, c.DiscountAmount),
	}
	ok, err := u.contracts.CompleteIfPending(ctx, repository.NoTX, c.ID, done)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against a concurrent capture; converge on its result.
		fresh, err := u.contracts.FindByID(ctx, repository.NoTX, c.ID)
		if err != nil {
			return nil, err
		}
		metrics.IncCapture(string(provider), "replayed")
		return u.replayResult(fresh), nil
	}

	c.Status = model.ContractStatusCompleted
	c.Provider = effectiveProvider
	c.ProviderRef = orderID
	c.ProviderTxID = providerTxID
	c.FinalAmount = &amount
	c.SubscriptionType = done.Cycle
	c.DiscountCode = done.DiscountCode
	c.DiscountAmount = done.DiscountAmount
	c.PeriodStart = &done.PeriodStart
	c.PeriodEnd = &done.PeriodEnd

	metrics.IncCapture(string(effectiveProvider), "succeeded")
	metrics.AddCaptureRevenue(u.currency, amount)

	result := &CaptureResult{
		ContractID: c.ID,
		Status:     model.ContractStatusCompleted,
		PaymentID:  providerTxID,
		Amount:     amount,
		Currency:   u.currency,
	}

	// From here on the charge is committed: downstream failures degrade the
	// response, they never revert it.
	result.Provision = u.provision.ProvisionForContract(ctx, c)
	if result.Provision.User != nil {
		discount := int64(0)
		if done.DiscountAmount != nil {
			discount = *done.DiscountAmount
		}
		sub, err := u.subs.RecordPayment(ctx, result.Provision.User, c, quote, amount, u.currency)
		if err != nil {
			u.log.Error().Err(err).Str("contract_id", c.ID).Msg("subscription upsert failed after capture; needs manual reconciliation")
		}
		result.Subscription = sub

		if _, err := u.ledger.RecordCharge(ctx, result.Provision.User, c, quote, amount, discount, u.currency, providerTxID); err != nil {
			u.log.Error().Err(err).Str("contract_id", c.ID).Msg("ledger append failed after capture; reconciliation gap recorded")
		}
	}
	return result, nil
}

// settle runs the provider round trip, or the synthetic free path when the
// reconciled amount is zero. On a decline the contract is cancelled before
// the error propagates.
func (u *captureUC) settle(ctx context.Context, provider model.PaymentProvider, c *model.Contract, orderID string, amount int64) (string, model.PaymentProvider, error) {
	if amount == 0 {
		ref := orderID
		if ref == "" {
			ref = freeRefPrefix + uuid.NewString()
		}
		return ref, model.ProviderFree, nil
	}

	gw, err := u.gateway(provider)
	if err != nil {
		return "", provider, err
	}
	outcome, err := gw.Capture(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentDeclined) {
			u.cancel(ctx, c, provider, orderID)
			metrics.IncCapture(string(provider), "declined")
			return "", provider, err
		}
		metrics.IncCapture(string(provider), "unavailable")
		metrics.IncGatewayError(string(provider))
		return "", provider, err
	}
	switch outcome.Status {
	case adapter.CaptureStatusSucceeded:
		return outcome.ProviderTxID, provider, nil
	case adapter.CaptureStatusPending:
		metrics.IncCapture(string(provider), "unavailable")
		return "", provider, fmt.Errorf("%w: provider still settling", domain.ErrGatewayUnavailable)
	default:
		u.cancel(ctx, c, provider, orderID)
		metrics.IncCapture(string(provider), "declined")
		return "", provider, fmt.Errorf("%w: provider status %s", domain.ErrPaymentDeclined, outcome.Status)
	}
}

func (u *captureUC) cancel(ctx context.Context, c *model.Contract, provider model.PaymentProvider, orderID string) {
	ok, err := u.contracts.CancelIfPending(ctx, repository.NoTX, c.ID, provider, orderID)
	if err != nil {
		u.log.Error().Err(err).Str("contract_id", c.ID).Msg("failed to cancel contract after decline")
		return
	}
	if ok {
		c.Status = model.ContractStatusCancelled
	}
}

func (u *captureUC) findContract(ctx context.Context, orderID string, req OrderRequest) (*model.Contract, error) {
	if req.ContractID != "" {
		return u.contracts.FindByID(ctx, repository.NoTX, req.ContractID)
	}
	return u.contracts.FindByProviderRef(ctx, repository.NoTX, orderID)
}

// reconciledAmount resolves the canonical price and applies discount
// reconciliation plus provider minimums.
func (u *captureUC) reconciledAmount(ctx context.Context, provider model.PaymentProvider, c *model.Contract, req OrderRequest) (int64, *PriceQuote, error) {
	cycle := c.SubscriptionType
	if req.SubscriptionType != "" {
		cycle = req.SubscriptionType
	}
	if cycle == "" {
		cycle = model.BillingCycleMonthly
	}
	c.SubscriptionType = cycle

	quote, err := u.pricing.Resolve(ctx, c.ProductType, cycle)
	if err != nil {
		return 0, nil, err
	}

	discount := firstNonNil(req.DiscountAmount, c.DiscountAmount)
	clientFinal := req.Amount
	// The signing-time declared amount stands in for the client final only
	// when the request carries neither its own amount nor a discount;
	// otherwise it would shadow the discount recomputation.
	if clientFinal == nil && req.DiscountAmount == nil && c.DeclaredAmount > 0 {
		declared := c.DeclaredAmount
		clientFinal = &declared
	}

	amount, err := u.pricing.Reconcile(ctx, quote, discount, clientFinal)
	if err != nil {
		return 0, nil, err
	}
	return u.pricing.ChargeAmount(provider, amount), quote, nil
}

func (u *captureUC) gateway(provider model.PaymentProvider) (adapter.PaymentGateway, error) {
	gw, ok := u.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: no gateway for provider %q", domain.ErrInvalidArgument, provider)
	}
	return gw, nil
}

func (u *captureUC) replayResult(c *model.Contract) *CaptureResult {
	amount := int64(0)
	if c.FinalAmount != nil {
		amount = *c.FinalAmount
	}
	res := &CaptureResult{
		ContractID:       c.ID,
		Status:           c.Status,
		AlreadyProcessed: true,
		PaymentID:        c.ProviderTxID,
		Amount:           amount,
		Currency:         u.currency,
	}
	if c.UserID != nil {
		res.Provision = ProvisionOutcome{Status: ProvisionExistingActiveUser}
	}
	return res
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
