package adapter

import (
	"context"

	"subscription-commerce/internal/domain/model"
)

// CaptureStatus is the provider-reported outcome of a capture attempt.
type CaptureStatus string

const (
	CaptureStatusSucceeded CaptureStatus = "succeeded"
	CaptureStatusPending   CaptureStatus = "pending" // provider still settling; retryable
	CaptureStatusDeclined  CaptureStatus = "declined"
)

// CreateIntentRequest describes the provider-side payment object to create.
type CreateIntentRequest struct {
	ContractID string
	Amount     int64 // minor units
	Currency   string
	Metadata   map[string]string
}

// Intent is the created provider payment object.
type Intent struct {
	ProviderRef  string // PaymentIntent id / Order id
	ClientHandle string // client secret / approval URL for the frontend
}

// CaptureOutcome reports a settled capture.
type CaptureOutcome struct {
	Status        CaptureStatus
	ProviderTxID  string
	AmountCharged int64 // minor units, as reported by the provider
}

// PaymentGateway is the port both provider variants implement.
// Network and auth failures surface as domain.ErrGatewayUnavailable
// (retryable); a provider-reported decline surfaces as
// domain.ErrPaymentDeclined (terminal).
type PaymentGateway interface {
	Name() model.PaymentProvider
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	Capture(ctx context.Context, providerRef string) (*CaptureOutcome, error)
}
