package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/adapter"
	"subscription-commerce/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway drives Stripe PaymentIntents. The frontend confirms the
// intent with the client secret; Capture then reads the settled intent back.
type StripeGateway struct {
	log *zerolog.Logger
}

// NewStripeGateway sets the global Stripe API key. One tenant, one key.
func NewStripeGateway(secretKey string, logger *zerolog.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe: secret key is empty")
	}
	stripe.Key = secretKey
	return &StripeGateway{log: logger}, nil
}

func (g *StripeGateway) Name() model.PaymentProvider { return model.ProviderStripe }

func (g *StripeGateway) CreateIntent(ctx context.Context, req adapter.CreateIntentRequest) (*adapter.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	// Same contract, same intent: Stripe replays the original on a retry.
	params.IdempotencyKey = stripe.String("contract-" + req.ContractID)
	if len(req.Metadata) > 0 {
		params.Metadata = req.Metadata
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		metrics.IncGatewayError(string(model.ProviderStripe))
		g.log.Error().Err(err).Str("contract_id", req.ContractID).Msg("stripe: create intent failed")
		return nil, g.mapError(err)
	}

	return &adapter.Intent{
		ProviderRef:  pi.ID,
		ClientHandle: pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) Capture(ctx context.Context, providerRef string) (*adapter.CaptureOutcome, error) {
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	pi, err := paymentintent.Get(providerRef, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing {
			return nil, fmt.Errorf("%w: payment intent %s", domain.ErrNotFound, providerRef)
		}
		metrics.IncGatewayError(string(model.ProviderStripe))
		return nil, g.mapError(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		txID := ""
		if pi.LatestCharge != nil {
			txID = pi.LatestCharge.ID
		}
		return &adapter.CaptureOutcome{
			Status:        adapter.CaptureStatusSucceeded,
			ProviderTxID:  txID,
			AmountCharged: pi.AmountReceived,
		}, nil
	case stripe.PaymentIntentStatusProcessing:
		return &adapter.CaptureOutcome{Status: adapter.CaptureStatusPending}, nil
	default:
		// requires_payment_method, requires_action, canceled: the customer
		// never paid or the payment failed.
		g.log.Warn().Str("provider_ref", providerRef).Str("status", string(pi.Status)).
			Msg("stripe: intent not payable")
		return &adapter.CaptureOutcome{Status: adapter.CaptureStatusDeclined}, nil
	}
}

func (g *StripeGateway) mapError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.Type == stripe.ErrorTypeCard {
			return fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, se.Code)
		}
		if se.Type == stripe.ErrorTypeInvalidRequest {
			return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, se.Code)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
}
