package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/adapter"
	"subscription-commerce/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*PayPalGateway)(nil)

const (
	paypalLiveURL    = "https://api-m.paypal.com"
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"

	// Refresh the cached token this long before PayPal expires it.
	tokenRefreshSkew = 5 * time.Minute
)

// PayPalGateway implements the gateway port against the PayPal Orders v2 API
// using direct HTTP calls. Access tokens are cached until near expiry and
// refreshed through singleflight so concurrent captures trigger one refresh.
type PayPalGateway struct {
	clientID string
	secret   string
	baseURL  string
	client   *http.Client
	log      *zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	refresh   singleflight.Group
}

func NewPayPalGateway(clientID, secret string, sandbox bool, logger *zerolog.Logger) *PayPalGateway {
	baseURL := paypalLiveURL
	if sandbox {
		baseURL = paypalSandboxURL
	}
	return &PayPalGateway{
		clientID: clientID,
		secret:   secret,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      logger,
	}
}

func (g *PayPalGateway) Name() model.PaymentProvider { return model.ProviderPayPal }

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Links         []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string       `json:"id"`
				Status string       `json:"status"`
				Amount paypalAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.token != "" && time.Until(g.expiresAt) > tokenRefreshSkew {
		tok := g.token
		g.mu.Unlock()
		return tok, nil
	}
	g.mu.Unlock()

	v, err, _ := g.refresh.Do("token", func() (interface{}, error) {
		return g.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *PayPalGateway) fetchToken(ctx context.Context) (string, error) {
	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth(g.clientID, g.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: paypal token endpoint returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var tr paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	g.mu.Lock()
	g.token = tr.AccessToken
	g.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	g.mu.Unlock()

	return tr.AccessToken, nil
}

func (g *PayPalGateway) CreateIntent(ctx context.Context, req adapter.CreateIntentRequest) (*adapter.Intent, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.ContractID,
			"custom_id":    req.ContractID,
			"amount": paypalAmount{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        model.FormatMoney(req.Amount),
			},
		}},
	}

	var order paypalOrderResponse
	status, err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		metrics.IncGatewayError(string(model.ProviderPayPal))
		return nil, fmt.Errorf("%w: paypal order create returned %d", domain.ErrGatewayUnavailable, status)
	}

	approval := ""
	for _, l := range order.Links {
		if l.Rel == "approve" {
			approval = l.Href
			break
		}
	}
	return &adapter.Intent{ProviderRef: order.ID, ClientHandle: approval}, nil
}

func (g *PayPalGateway) Capture(ctx context.Context, providerRef string) (*adapter.CaptureOutcome, error) {
	var order paypalOrderResponse
	status, err := g.call(ctx, http.MethodPost, "/v2/checkout/orders/"+providerRef+"/capture", struct{}{}, &order)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusCreated || status == http.StatusOK:
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: paypal order %s", domain.ErrNotFound, providerRef)
	case status == http.StatusUnprocessableEntity:
		// ORDER_NOT_APPROVED, INSTRUMENT_DECLINED and friends.
		g.log.Warn().Str("provider_ref", providerRef).Msg("paypal: capture rejected")
		return &adapter.CaptureOutcome{Status: adapter.CaptureStatusDeclined}, nil
	default:
		metrics.IncGatewayError(string(model.ProviderPayPal))
		return nil, fmt.Errorf("%w: paypal capture returned %d", domain.ErrGatewayUnavailable, status)
	}

	switch order.Status {
	case "COMPLETED":
		txID := ""
		var amount int64
		if len(order.PurchaseUnits) > 0 && len(order.PurchaseUnits[0].Payments.Captures) > 0 {
			c := order.PurchaseUnits[0].Payments.Captures[0]
			txID = c.ID
			amount, _ = model.ParseMoney(c.Amount.Value)
		}
		return &adapter.CaptureOutcome{
			Status:        adapter.CaptureStatusSucceeded,
			ProviderTxID:  txID,
			AmountCharged: amount,
		}, nil
	case "PENDING", "APPROVED", "SAVED", "PAYER_ACTION_REQUIRED", "CREATED":
		return &adapter.CaptureOutcome{Status: adapter.CaptureStatusPending}, nil
	default:
		return &adapter.CaptureOutcome{Status: adapter.CaptureStatusDeclined}, nil
	}
}

// call performs an authenticated JSON request, retrying once on a 401 after
// discarding the cached token.
func (g *PayPalGateway) call(ctx context.Context, method, path string, payload, out interface{}) (int, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := g.accessToken(ctx)
		if err != nil {
			return 0, err
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}

		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := g.client.Do(req)
		if err != nil {
			metrics.IncGatewayError(string(model.ProviderPayPal))
			return 0, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			g.mu.Lock()
			g.token = ""
			g.mu.Unlock()
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		if len(raw) > 0 && out != nil {
			if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode < 300 {
				return 0, fmt.Errorf("%w: decode paypal response: %v", domain.ErrGatewayUnavailable, err)
			}
		}
		return resp.StatusCode, nil
	}
	return 0, fmt.Errorf("%w: paypal auth retry exhausted", domain.ErrGatewayUnavailable)
}
