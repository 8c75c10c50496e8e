package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/usecase"
)

// Every response is wrapped: {"success":true,"data":...} or
// {"success":false,"error":{"reason":...,"message":...}}.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	reason, status := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: &apiError{
		Reason:  reason,
		Message: err.Error(),
	}})
}

// classify maps domain sentinels to a stable machine-readable reason and an
// HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrUnknownProduct):
		return "unknown_product", http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidPrice):
		return "invalid_price", http.StatusBadRequest
	case errors.Is(err, domain.ErrPaymentDeclined):
		return "payment_declined", http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_request", http.StatusBadRequest
	case errors.Is(err, domain.ErrContractNotEligible):
		return "contract_not_eligible", http.StatusConflict
	case errors.Is(err, domain.ErrActivationTokenUsed):
		return "activation_token_used", http.StatusConflict
	case errors.Is(err, domain.ErrActivationTokenExpired):
		return "activation_token_expired", http.StatusGone
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "gateway_unavailable", http.StatusBadGateway
	case errors.Is(err, domain.ErrLockNotAcquired):
		return "busy", http.StatusServiceUnavailable
	default:
		return "internal_error", http.StatusInternalServerError
	}
}

// ===== Payment endpoints =====

// Wire amounts are major-unit decimals; everything internal is minor units.
type orderRequest struct {
	ContractID       string       `json:"contract_id"`
	SubscriptionType string       `json:"subscription_type"`
	DiscountCode     *string      `json:"discount_code"`
	DiscountAmount   *json.Number `json:"discount_amount"`
	Amount           *json.Number `json:"amount"`
}

func (req *orderRequest) toUseCase() (usecase.OrderRequest, error) {
	out := usecase.OrderRequest{
		ContractID:   req.ContractID,
		DiscountCode: req.DiscountCode,
	}
	if req.SubscriptionType != "" {
		cycle, err := model.ParseBillingCycle(req.SubscriptionType)
		if err != nil {
			return out, err
		}
		out.SubscriptionType = cycle
	}
	if req.DiscountAmount != nil {
		minor, err := model.ParseMoney(req.DiscountAmount.String())
		if err != nil {
			return out, err
		}
		out.DiscountAmount = &minor
	}
	if req.Amount != nil {
		minor, err := model.ParseMoney(req.Amount.String())
		if err != nil {
			return out, err
		}
		out.Amount = &minor
	}
	return out, nil
}

func decodeOrderBody(r *http.Request) (usecase.OrderRequest, error) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return usecase.OrderRequest{}, domain.ErrInvalidArgument
	}
	return req.toUseCase()
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	provider, err := model.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := decodeOrderBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.ContractID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	res, err := s.captureUC.CreateOrder(r.Context(), provider, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{
		"order_id":      res.ProviderRef,
		"client_handle": res.ClientHandle,
		"amount":        model.ToMajor(res.Amount),
		"currency":      res.Currency,
	})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	provider, err := model.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, err)
		return
	}
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	req, err := decodeOrderBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.captureUC.Capture(r.Context(), provider, orderID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, captureResponse(res))
}

func captureResponse(res *usecase.CaptureResult) map[string]interface{} {
	data := map[string]interface{}{
		"payment_id":        res.PaymentID,
		"status":            string(res.Status),
		"already_processed": res.AlreadyProcessed,
		"amount":            model.ToMajor(res.Amount),
		"currency":          res.Currency,
	}
	if res.Subscription != nil {
		data["subscription"] = subscriptionView(res.Subscription)
	}
	account := map[string]interface{}{
		"status": string(res.Provision.Status),
	}
	if u := res.Provision.User; u != nil {
		account["user_id"] = u.ID
		account["email"] = u.Email
		account["is_pending"] = u.IsPendingUser
	}
	data["user_account"] = account
	return data
}

func subscriptionView(sub *model.Subscription) map[string]interface{} {
	return map[string]interface{}{
		"id":            sub.ID,
		"status":        string(sub.Status),
		"billing_cycle": string(sub.BillingCycle),
		"price":         model.ToMajor(sub.Price),
		"currency":      sub.Currency,
		"period_start":  sub.PeriodStart,
		"period_end":    sub.PeriodEnd,
		"auto_renew":    sub.AutoRenew,
	}
}

// ===== Account activation =====

type activateRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	u, err := s.provisionUC.Activate(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"user_id": u.ID,
		"email":   u.Email,
		"name":    u.Name,
	})
}

// ===== Admin read surface =====

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.contracts.FindByID(r.Context(), repository.NoTX, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) handleUserSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.subUC.CurrentForUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, subscriptionView(sub))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	users, byPlan, err := s.statsUC.Totals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	week, month, year, err := s.statsUC.Revenue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"total_users":       users,
		"open_subs_by_plan": byPlan,
		"revenue": map[string]float64{
			"week":  model.ToMajor(week),
			"month": model.ToMajor(month),
			"year":  model.ToMajor(year),
		},
	})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

type planCreateRequest struct {
	Slug         string      `json:"slug"`
	Name         string      `json:"name"`
	PriceMonthly json.Number `json:"price_monthly"`
	PriceYearly  json.Number `json:"price_yearly"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	monthly, err := model.ParseMoney(req.PriceMonthly.String())
	if err != nil {
		writeError(w, err)
		return
	}
	yearly, err := model.ParseMoney(req.PriceYearly.String())
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := s.planUC.Create(r.Context(), req.Slug, req.Name, monthly, yearly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
