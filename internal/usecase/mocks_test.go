//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/model"
	"ai-credits-billing/internal/domain/ports/adapter"
	"ai-credits-billing/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- Mock AccountRepository ----

type MockAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]model.Account

	SaveFunc           func(ctx context.Context, tx repository.Tx, a *model.Account) error
	CreateIfAbsentFunc func(ctx context.Context, tx repository.Tx, a *model.Account) error
	FindByUserFunc     func(ctx context.Context, tx repository.Tx, userID string) (*model.Account, error)
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{accounts: map[string]model.Account{}}
}

func (m *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.UserID] = *a
	return nil
}

func (m *MockAccountRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.CreateIfAbsentFunc != nil {
		return m.CreateIfAbsentFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.UserID]; ok {
		return nil
	}
	m.accounts[a.UserID] = *a
	return nil
}

func (m *MockAccountRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Account, error) {
	if m.FindByUserFunc != nil {
		return m.FindByUserFunc(ctx, tx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (m *MockAccountRepo) CountAccounts(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), nil
}

// Get is a test helper for assertions.
func (m *MockAccountRepo) Get(userID string) (model.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	return a, ok
}

// Put is a test helper for seeding state.
func (m *MockAccountRepo) Put(a model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.UserID] = a
}

// ---- Mock ProcessedEventRepository ----

type MockProcessedEventRepo struct {
	mu     sync.Mutex
	events map[string]model.ProcessedEvent

	MarkProcessedFunc func(ctx context.Context, tx repository.Tx, rec *model.ProcessedEvent) (bool, error)
}

var _ repository.ProcessedEventRepository = (*MockProcessedEventRepo)(nil)

func NewMockProcessedEventRepo() *MockProcessedEventRepo {
	return &MockProcessedEventRepo{events: map[string]model.ProcessedEvent{}}
}

func (m *MockProcessedEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, rec *model.ProcessedEvent) (bool, error) {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[rec.EventID]; ok {
		return false, nil
	}
	m.events[rec.EventID] = *rec
	return true, nil
}

func (m *MockProcessedEventRepo) Exists(ctx context.Context, tx repository.Tx, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

// Delete is a test helper emulating the rollback of an idempotency record
// when the surrounding transaction fails.
func (m *MockProcessedEventRepo) Delete(eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, eventID)
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the function immediately without a real transaction. Tests
// that need rollback semantics assign a custom WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// ---- Mock CheckoutGateway ----

type MockCheckoutGateway struct {
	mu       sync.Mutex
	Requests []adapter.CheckoutRequest

	CreateSessionFunc func(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error)
}

var _ adapter.CheckoutGateway = (*MockCheckoutGateway)(nil)

func (m *MockCheckoutGateway) Name() string { return "mock" }

func (m *MockCheckoutGateway) CreateSession(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, req)
	}
	return &adapter.CheckoutSession{ID: "cs_test_1", URL: "https://pay.example.com/cs_test_1"}, nil
}

func (m *MockCheckoutGateway) LastRequest() *adapter.CheckoutRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	req := m.Requests[len(m.Requests)-1]
	return &req
}

// ---- Mock EventSeenCache ----

type MockEventCache struct {
	mu   sync.Mutex
	seen map[string]bool

	SeenErr error
}

func NewMockEventCache() *MockEventCache {
	return &MockEventCache{seen: map[string]bool{}}
}

func (c *MockEventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SeenErr != nil {
		return false, c.SeenErr
	}
	return c.seen[eventID], nil
}

func (c *MockEventCache) MarkSeen(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[eventID] = true
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
