package testutil

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/outbox"
	"github.com/cassiomorais/realestate/internal/domain/stats"
	"github.com/cassiomorais/realestate/internal/providers"
	"github.com/google/uuid"
)

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	return nil
}

// --- Payment Gateway Mock ---

// MockCharger approves every charge unless ChargeFunc says otherwise.
type MockCharger struct {
	ChargeFunc func(ctx context.Context, req providers.ChargeRequest) (*providers.Result, error)
	calls      atomic.Int32
}

func (m *MockCharger) Charge(ctx context.Context, req providers.ChargeRequest) (*providers.Result, error) {
	m.calls.Add(1)
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, req)
	}
	return &providers.Result{TransactionID: "txn_test", Status: "success"}, nil
}

func (m *MockCharger) Calls() int {
	return int(m.calls.Load())
}

// --- Locker Mock ---

// MockLocker is an in-process lock table keyed like the Redis checkout locks.
type MockLocker struct {
	mu          sync.Mutex
	held        map[string]bool
	TryLockFunc func(ctx context.Context, key string) (func(context.Context) error, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) TryLock(ctx context.Context, key string) (func(context.Context) error, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, domainErrors.ErrLockAcquisitionFailed
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.held[key] {
			return domainErrors.ErrLockNotHeld
		}
		delete(m.held, key)
		return nil
	}, nil
}

// Held reports whether key is currently locked.
func (m *MockLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

// --- Stats Cache Mock ---

// MockStatsCache keeps the report in memory and counts invalidations.
type MockStatsCache struct {
	mu            sync.Mutex
	report        stats.Report
	invalidations int
	GetErr        error
}

func (m *MockStatsCache) Get(context.Context) (stats.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return maps.Clone(m.report), nil
}

func (m *MockStatsCache) Set(_ context.Context, report stats.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = maps.Clone(report)
	return nil
}

func (m *MockStatsCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = nil
	m.invalidations++
	return nil
}

func (m *MockStatsCache) Invalidations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidations
}
