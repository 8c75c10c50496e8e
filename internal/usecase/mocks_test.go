//go:build !integration

package usecase_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/adapter"
	"subscription-commerce/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// In-memory repositories
// =============================

// ---- Contracts ----

type memContractRepo struct {
	mu        sync.Mutex
	contracts map[string]*model.Contract
}

var _ repository.ContractRepository = (*memContractRepo)(nil)

func newMemContractRepo() *memContractRepo {
	return &memContractRepo{contracts: map[string]*model.Contract{}}
}

func (r *memContractRepo) Save(ctx context.Context, tx repository.Tx, c *model.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contracts[c.ID] = &cp
	return nil
}

func (r *memContractRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memContractRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contracts {
		if c.ProviderRef == ref {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memContractRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Status != model.ContractStatusPaymentPending {
		return nil
	}
	c.Provider = provider
	c.ProviderRef = ref
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memContractRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, done repository.ContractCompletion) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.Status != model.ContractStatusPaymentPending {
		return false, nil
	}
	c.Status = model.ContractStatusCompleted
	c.Provider = done.Provider
	c.ProviderRef = done.ProviderRef
	c.ProviderTxID = done.ProviderTxID
	amount := done.FinalAmount
	c.FinalAmount = &amount
	c.SubscriptionType = done.Cycle
	start, end := done.PeriodStart, done.PeriodEnd
	c.PeriodStart = &start
	c.PeriodEnd = &end
	if done.DiscountCode != nil {
		c.DiscountCode = done.DiscountCode
	}
	if done.DiscountAmount != nil {
		c.DiscountAmount = done.DiscountAmount
	}
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *memContractRepo) CancelIfPending(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.Status != model.ContractStatusPaymentPending {
		return false, nil
	}
	c.Status = model.ContractStatusCancelled
	c.Provider = provider
	c.ProviderRef = ref
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *memContractRepo) LinkUser(ctx context.Context, tx repository.Tx, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return domain.ErrNotFound
	}
	uid := userID
	c.UserID = &uid
	c.Guest = false
	return nil
}

func (r *memContractRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Contract
	for _, c := range r.contracts {
		if c.Status == model.ContractStatusPaymentPending && c.ProviderRef != "" && c.CreatedAt.Before(olderThan) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Users ----

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	SaveFunc func(ctx context.Context, u *model.User) error
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*model.User{}}
}

func (r *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		if err := r.SaveFunc(ctx, u); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	norm := model.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == norm {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepo) FindByActivationToken(ctx context.Context, tx repository.Tx, token string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ActivationToken != nil && *u.ActivationToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

// ---- Plans ----

type memPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.Plan
}

var _ repository.PlanRepository = (*memPlanRepo)(nil)

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: map[string]*model.Plan{}}
}

func (r *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPlanRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.Slug == slug && p.Status == "active" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPlanRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if strings.EqualFold(p.Name, name) && p.Status == "active" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Subscriptions ----

type memSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription

	SaveFunc func(ctx context.Context, s *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: map[string]*model.Subscription{}}
}

func (r *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.SaveFunc != nil {
		if err := r.SaveFunc(ctx, s); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.subs[s.ID] = &cp
	return nil
}

func (r *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSubscriptionRepo) FindOpenByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.UserID == userID && s.Status.IsOpen() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSubscriptionRepo) CountOpenByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, s := range r.subs {
		if !s.Status.IsOpen() {
			continue
		}
		key := "unresolved"
		if s.PlanID != nil {
			key = *s.PlanID
		}
		out[key]++
	}
	return out, nil
}

func (r *memSubscriptionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// ---- Transactions ----

type memTransactionRepo struct {
	mu      sync.Mutex
	entries []*model.Transaction

	AppendFunc func(ctx context.Context, t *model.Transaction) error
}

var _ repository.TransactionRepository = (*memTransactionRepo)(nil)

func newMemTransactionRepo() *memTransactionRepo { return &memTransactionRepo{} }

func (r *memTransactionRepo) Append(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if r.AppendFunc != nil {
		if err := r.AppendFunc(ctx, t); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memTransactionRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.entries {
		if t.ProviderRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memTransactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.entries {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, t := range r.entries {
		if t.Status == model.TransactionStatusSucceeded && t.Type == model.TransactionTypeCharge {
			sum += t.Gross
		}
	}
	return sum, nil
}

func (r *memTransactionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	mu       sync.Mutex
	provider model.PaymentProvider
	Intents  []adapter.CreateIntentRequest
	Captures []string

	CreateIntentFunc func(ctx context.Context, req adapter.CreateIntentRequest) (*adapter.Intent, error)
	CaptureFunc      func(ctx context.Context, providerRef string) (*adapter.CaptureOutcome, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func newMockGateway(provider model.PaymentProvider) *MockGateway {
	return &MockGateway{provider: provider}
}

func (m *MockGateway) Name() model.PaymentProvider { return m.provider }

func (m *MockGateway) CreateIntent(ctx context.Context, req adapter.CreateIntentRequest) (*adapter.Intent, error) {
	m.mu.Lock()
	m.Intents = append(m.Intents, req)
	m.mu.Unlock()
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, req)
	}
	return &adapter.Intent{ProviderRef: "ref_" + req.ContractID, ClientHandle: "secret_" + req.ContractID}, nil
}

func (m *MockGateway) Capture(ctx context.Context, providerRef string) (*adapter.CaptureOutcome, error) {
	m.mu.Lock()
	m.Captures = append(m.Captures, providerRef)
	m.mu.Unlock()
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, providerRef)
	}
	return &adapter.CaptureOutcome{Status: adapter.CaptureStatusSucceeded, ProviderTxID: "tx_" + providerRef}, nil
}

// ---- Mock Mailer ----

type sentEmail struct {
	Kind    string // "activation" | "welcome"
	Email   string
	Token   string
	Product string
}

type MockMailer struct {
	mu   sync.Mutex
	Sent []sentEmail

	SendActivationFunc func(ctx context.Context, email, name, token, product, returnURL string) error
}

var _ adapter.Mailer = (*MockMailer)(nil)

func (m *MockMailer) SendActivationEmail(ctx context.Context, email, name, token, product, returnURL string) error {
	if m.SendActivationFunc != nil {
		return m.SendActivationFunc(ctx, email, name, token, product, returnURL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentEmail{Kind: "activation", Email: email, Token: token, Product: product})
	return nil
}

func (m *MockMailer) SendWelcomeEmail(ctx context.Context, email, name, product, returnURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentEmail{Kind: "welcome", Email: email, Product: product})
	return nil
}

// ---- Mock transaction manager ----

// memTxManager runs the callback without a real transaction and counts
// invocations so tests can assert the upsert went through it.
type memTxManager struct {
	mu    sync.Mutex
	Calls int
}

var _ repository.TransactionManager = (*memTxManager)(nil)

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// ---- Mock Locker ----

type MockLocker struct {
	mu       sync.Mutex
	FailLock bool
	Locks    int
	Unlocks  int
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLock {
		return "", domain.ErrLockNotAcquired
	}
	m.Locks++
	return "token", nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unlocks++
	return nil
}
