//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func tkey(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "|" + p
	}
	return out
}

// =============================
// Transaction manager
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately with NoTX. Tests that need to observe
// transactional behavior assign WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Dispatcher
// =============================

// syncDispatcher runs submitted tasks inline so tests observe downstream
// effects without timing games.
type syncDispatcher struct {
	mu        sync.Mutex
	Submitted int
	Errs      []error
}

func (d *syncDispatcher) Submit(task func(ctx context.Context) error) error {
	d.mu.Lock()
	d.Submitted++
	d.mu.Unlock()
	err := task(context.Background())
	d.mu.Lock()
	d.Errs = append(d.Errs, err)
	d.mu.Unlock()
	return nil
}

// =============================
// Notifier
// =============================

type MockNotifier struct {
	mu     sync.Mutex
	Sent   []string
	Alerts []string
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) NotifyUser(ctx context.Context, externalID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, text)
	return nil
}

func (m *MockNotifier) AlertOperator(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, text)
	return nil
}

// =============================
// Payment provider + registry
// =============================

type MockProvider struct {
	NameVal string

	CreatePaymentFunc func(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error)
	ParseCallbackFunc func(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error)
}

var _ adapter.PaymentProvider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	ref := "REF-" + uuid.NewString()
	return &adapter.CreatePaymentResult{ProviderRef: ref, PayURL: "https://pay.example/" + ref}, nil
}

func (m *MockProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	if m.ParseCallbackFunc != nil {
		return m.ParseCallbackFunc(ctx, tenantID, rawBody, headers)
	}
	return nil, domain.ErrInvalidSignature
}

type MockRegistry struct {
	providers map[string]adapter.PaymentProvider
}

func NewMockRegistry(provs ...adapter.PaymentProvider) *MockRegistry {
	r := &MockRegistry{providers: make(map[string]adapter.PaymentProvider)}
	for _, p := range provs {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *MockRegistry) Get(name string) (adapter.PaymentProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// =============================
// Repositories
// =============================

// ---- TransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Transaction // by id
	byRef map[string]string             // tenant|provider|external_ref -> id

	SaveFunc func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
}

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{store: map[string]*model.Transaction{}, byRef: map[string]string{}}
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ExternalRef != "" {
		ref := tkey(t.TenantID, t.Provider, t.ExternalRef)
		if existing, ok := m.byRef[ref]; ok && existing != t.ID {
			return domain.ErrDuplicateEvent
		}
		m.byRef[ref] = t.ID
	}
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || t.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTransactionRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, tenantID, provider, externalRef string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[tkey(tenantID, provider, externalRef)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.store[id]
	return &cp, nil
}

func (m *MockTransactionRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, completedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || t.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	if t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = model.TransactionStatusCompleted
	t.CompletedAt = &completedAt
	return true, nil
}

func (m *MockTransactionRepo) FailIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || t.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	if t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = model.TransactionStatusFailed
	t.FailReason = reason
	return true, nil
}

func (m *MockTransactionRepo) SumCompletedByUser(ctx context.Context, tx repository.Tx, tenantID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.store {
		if t.TenantID != tenantID || t.UserID != userID || t.Status != model.TransactionStatusCompleted {
			continue
		}
		switch t.Type {
		case model.TransactionTypeDeposit, model.TransactionTypeSubscriptionPayment:
			a := t.Amount
			if a < 0 {
				a = -a
			}
			sum += a
		}
	}
	return sum, nil
}

func (m *MockTransactionRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, tenantID, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.store {
		if t.TenantID == tenantID && t.Status == model.TransactionStatusCompleted && t.Amount > 0 {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (m *MockTransactionRepo) ListByUser(ctx context.Context, tx repository.Tx, tenantID, userID string, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.TenantID == tenantID && t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan) {
			cp := *t
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Get returns the stored row for assertions, bypassing tenant scoping.
func (m *MockTransactionRepo) Get(id string) *model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.store[id]; ok {
		cp := *t
		return &cp
	}
	return nil
}

// ---- UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	store map[string]*model.User // by id
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: map[string]*model.User{}}
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || u.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByExternalID(ctx context.Context, tx repository.Tx, tenantID string, externalID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if u.TenantID == tenantID && u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) AdjustBalance(ctx context.Context, tx repository.Tx, tenantID, id string, delta int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || u.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	if u.Balance+delta < 0 {
		return false, nil
	}
	u.Balance += delta
	return true, nil
}

func (m *MockUserRepo) AddLifetimeSpend(ctx context.Context, tx repository.Tx, tenantID, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || u.TenantID != tenantID {
		return domain.ErrNotFound
	}
	u.LifetimeSpend += amount
	return nil
}

func (m *MockUserRepo) SetPromoGroup(ctx context.Context, tx repository.Tx, tenantID, id, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || u.TenantID != tenantID {
		return domain.ErrNotFound
	}
	g := groupID
	u.PromoGroupID = &g
	return nil
}

func (m *MockUserRepo) SetTrialUsed(ctx context.Context, tx repository.Tx, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || u.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	if u.TrialUsedAt != nil {
		return false, nil
	}
	now := time.Now()
	u.TrialUsedAt = &now
	return true, nil
}

func (m *MockUserRepo) ListReferrals(ctx context.Context, tx repository.Tx, tenantID, referrerID string) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.store {
		if u.TenantID == tenantID && u.ReferredByID != nil && *u.ReferredByID == referrerID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockUserRepo) CountByTenant(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.store {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (m *MockUserRepo) Get(id string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.store[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

// ---- SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription // by id
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: map[string]*model.Subscription{}}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, tenantID, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.TenantID == tenantID && s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, tenantID, id string, to model.SubscriptionStatus, from ...model.SubscriptionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	for _, f := range from {
		if s.Status == f {
			s.Status = to
			s.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MockSubscriptionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if (s.Status == model.SubscriptionStatusActive || s.Status == model.SubscriptionStatusTrial) && s.EndDate.Before(now) {
			cp := *s
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListAutopayDue(ctx context.Context, tx repository.Tx, within time.Duration, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cut := time.Now().Add(within)
	var out []*model.Subscription
	for _, s := range m.store {
		if s.AutopayEnabled && s.Status == model.SubscriptionStatusActive && s.EndDate.Before(cut) {
			cp := *s
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx, tenantID string) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range m.store {
		if s.TenantID == tenantID {
			out[s.Status]++
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) Get(id string) *model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.store[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// ---- PaymentAttemptRepository ----

type MockPaymentAttemptRepo struct {
	mu    sync.Mutex
	store map[string]*model.PaymentAttempt
	byRef map[string]string // tenant|provider|provider_ref -> id
}

func NewMockPaymentAttemptRepo() *MockPaymentAttemptRepo {
	return &MockPaymentAttemptRepo{store: map[string]*model.PaymentAttempt{}, byRef: map[string]string{}}
}

var _ repository.PaymentAttemptRepository = (*MockPaymentAttemptRepo)(nil)

func (m *MockPaymentAttemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := tkey(a.TenantID, a.Provider, a.ProviderRef)
	if existing, ok := m.byRef[ref]; ok && existing != a.ID {
		return domain.ErrDuplicateEvent
	}
	m.byRef[ref] = a.ID
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *MockPaymentAttemptRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, tenantID, provider, providerRef string) (*model.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[tkey(tenantID, provider, providerRef)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.store[id]
	return &cp, nil
}

func (m *MockPaymentAttemptRepo) FindByTransaction(ctx context.Context, tx repository.Tx, tenantID, transactionID string) ([]*model.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentAttempt
	for _, a := range m.store {
		if a.TenantID == tenantID && a.TransactionID == transactionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentAttemptRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, status model.PaymentAttemptStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok || a.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	if a.Status != model.PaymentAttemptStatusPending {
		return false, nil
	}
	a.Status = status
	if paidAt != nil {
		a.PaidAt = paidAt
	}
	return true, nil
}

func (m *MockPaymentAttemptRepo) Get(id string) *model.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.store[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

// ---- Promo repositories ----

type MockPromoGroupRepo struct {
	mu    sync.Mutex
	store map[string]*model.PromoGroup
}

func NewMockPromoGroupRepo() *MockPromoGroupRepo {
	return &MockPromoGroupRepo{store: map[string]*model.PromoGroup{}}
}

var _ repository.PromoGroupRepository = (*MockPromoGroupRepo)(nil)

func (m *MockPromoGroupRepo) Save(ctx context.Context, tx repository.Tx, g *model.PromoGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.store[g.ID] = &cp
	return nil
}

func (m *MockPromoGroupRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.PromoGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.store[id]
	if !ok || g.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *MockPromoGroupRepo) ListByTenant(ctx context.Context, tx repository.Tx, tenantID string) ([]*model.PromoGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PromoGroup
	for _, g := range m.store {
		if g.TenantID == tenantID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPromoGroupRepo) FindBestForSpend(ctx context.Context, tx repository.Tx, tenantID string, spend int64) (*model.PromoGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.PromoGroup
	for _, g := range m.store {
		if g.TenantID != tenantID || g.SpendThreshold > spend {
			continue
		}
		if best == nil || g.Priority > best.Priority {
			best = g
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

type MockPromoCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*model.PromoCode
	uses  map[string]*model.PromoCodeUse // code_id|user_id
}

func NewMockPromoCodeRepo() *MockPromoCodeRepo {
	return &MockPromoCodeRepo{codes: map[string]*model.PromoCode{}, uses: map[string]*model.PromoCodeUse{}}
}

var _ repository.PromoCodeRepository = (*MockPromoCodeRepo)(nil)

func (m *MockPromoCodeRepo) Save(ctx context.Context, tx repository.Tx, c *model.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes[c.ID] = &cp
	return nil
}

func (m *MockPromoCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, tenantID, code string) (*model.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.TenantID == tenantID && c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPromoCodeRepo) IncrementUsesIfAvailable(ctx context.Context, tx repository.Tx, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok || c.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	if c.CurrentUses >= c.MaxUses {
		return false, nil
	}
	c.CurrentUses++
	return true, nil
}

func (m *MockPromoCodeRepo) SaveUse(ctx context.Context, tx repository.Tx, use *model.PromoCodeUse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tkey(use.CodeID, use.UserID)
	if _, ok := m.uses[k]; ok {
		return domain.ErrPromoCodeUsed
	}
	cp := *use
	m.uses[k] = &cp
	return nil
}

func (m *MockPromoCodeRepo) Uses(codeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.codes[codeID]; ok {
		return c.CurrentUses
	}
	return 0
}

type MockDiscountOfferRepo struct {
	mu    sync.Mutex
	store map[string]*model.DiscountOffer
}

func NewMockDiscountOfferRepo() *MockDiscountOfferRepo {
	return &MockDiscountOfferRepo{store: map[string]*model.DiscountOffer{}}
}

var _ repository.DiscountOfferRepository = (*MockDiscountOfferRepo)(nil)

func (m *MockDiscountOfferRepo) Save(ctx context.Context, tx repository.Tx, o *model.DiscountOffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *MockDiscountOfferRepo) ListActiveByUser(ctx context.Context, tx repository.Tx, tenantID, userID string) ([]*model.DiscountOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DiscountOffer
	for _, o := range m.store {
		if o.TenantID == tenantID && o.UserID == userID && o.UsedAt == nil {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockDiscountOfferRepo) MarkUsed(ctx context.Context, tx repository.Tx, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok || o.TenantID != tenantID {
		return domain.ErrNotFound
	}
	now := time.Now()
	o.UsedAt = &now
	return nil
}

// ---- ReferralEarningRepository ----

type MockReferralEarningRepo struct {
	mu       sync.Mutex
	store    map[string]*model.ReferralEarning
	bySource map[string]string
}

func NewMockReferralEarningRepo() *MockReferralEarningRepo {
	return &MockReferralEarningRepo{store: map[string]*model.ReferralEarning{}, bySource: map[string]string{}}
}

var _ repository.ReferralEarningRepository = (*MockReferralEarningRepo)(nil)

func (m *MockReferralEarningRepo) Save(ctx context.Context, tx repository.Tx, e *model.ReferralEarning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySource[e.SourceTransactionID]; ok {
		return domain.ErrDuplicateEvent
	}
	m.bySource[e.SourceTransactionID] = e.ID
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *MockReferralEarningRepo) FindBySourceTransaction(ctx context.Context, tx repository.Tx, tenantID, transactionID string) (*model.ReferralEarning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySource[transactionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.store[id]
	return &cp, nil
}

func (m *MockReferralEarningRepo) ListByReferrer(ctx context.Context, tx repository.Tx, tenantID, referrerID string, limit int) ([]*model.ReferralEarning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ReferralEarning
	for _, e := range m.store {
		if e.TenantID == tenantID && e.ReferrerID == referrerID {
			cp := *e
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockReferralEarningRepo) SumByReferrer(ctx context.Context, tx repository.Tx, tenantID, referrerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.store {
		if e.TenantID == tenantID && e.ReferrerID == referrerID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *MockReferralEarningRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// ---- CardToCardRepository ----

type MockCardToCardRepo struct {
	mu    sync.Mutex
	store map[string]*model.CardToCardPayment
}

func NewMockCardToCardRepo() *MockCardToCardRepo {
	return &MockCardToCardRepo{store: map[string]*model.CardToCardPayment{}}
}

var _ repository.CardToCardRepository = (*MockCardToCardRepo)(nil)

func (m *MockCardToCardRepo) Save(ctx context.Context, tx repository.Tx, p *model.CardToCardPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockCardToCardRepo) FindByTrackingNumber(ctx context.Context, tx repository.Tx, tenantID, trackingNumber string) (*model.CardToCardPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.TenantID == tenantID && p.TrackingNumber == trackingNumber {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCardToCardRepo) ListPending(ctx context.Context, tx repository.Tx, tenantID string, limit int) ([]*model.CardToCardPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CardToCardPayment
	for _, p := range m.store {
		if p.TenantID == tenantID && p.Status == model.CardToCardStatusPending {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockCardToCardRepo) AttachReceipt(ctx context.Context, tx repository.Tx, tenantID, id, receipt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.TenantID != tenantID {
		return domain.ErrNotFound
	}
	p.Receipt = receipt
	return nil
}

func (m *MockCardToCardRepo) DecideIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, status model.CardToCardStatus, reviewerID string, reviewedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.TenantID != tenantID {
		return false, domain.ErrNotFound
	}
	if p.Status != model.CardToCardStatusPending {
		return false, nil
	}
	p.Status = status
	p.ReviewerID = &reviewerID
	p.ReviewedAt = &reviewedAt
	return true, nil
}

func (m *MockCardToCardRepo) Get(id string) *model.CardToCardPayment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.store[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// ---- TenantSettingsRepository ----

type MockSettingsRepo struct {
	mu    sync.Mutex
	store map[string]*model.TenantSettings

	GetFunc func(ctx context.Context, tenantID string) (*model.TenantSettings, error)
}

func NewMockSettingsRepo() *MockSettingsRepo {
	return &MockSettingsRepo{store: map[string]*model.TenantSettings{}}
}

var _ repository.TenantSettingsRepository = (*MockSettingsRepo)(nil)

func (m *MockSettingsRepo) Put(s *model.TenantSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.TenantID] = s
}

func (m *MockSettingsRepo) Get(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, tenantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}
