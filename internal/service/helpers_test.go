package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/repository"
	"cart-service/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin     = service.Identity{UserID: uuid.New(), Role: service.RoleAdmin}
	fastRetry = service.RetryOptions{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
)

func customer() service.Identity {
	return service.Identity{UserID: uuid.New(), Role: service.RoleCustomer}
}

// MockEventBus
type MockEventBus struct {
	PublishFunc func(ctx context.Context, e service.CartEvent) error

	mu     sync.Mutex
	events []service.CartEvent
}

func (m *MockEventBus) PublishCartEvent(ctx context.Context, e service.CartEvent) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, e)
	}
	return nil
}

func (m *MockEventBus) Types() []service.CartEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.CartEventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func (m *MockEventBus) Events() []service.CartEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.CartEvent(nil), m.events...)
}

// MockProductCache
type MockProductCache struct {
	GetProductFunc        func(ctx context.Context, id uuid.UUID) (*models.Product, error)
	SetProductFunc        func(ctx context.Context, p *models.Product) error
	InvalidateProductFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *MockProductCache) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockProductCache) SetProduct(ctx context.Context, p *models.Product) error {
	if m.SetProductFunc != nil {
		return m.SetProductFunc(ctx, p)
	}
	return nil
}

func (m *MockProductCache) InvalidateProduct(ctx context.Context, id uuid.UUID) error {
	if m.InvalidateProductFunc != nil {
		return m.InvalidateProductFunc(ctx, id)
	}
	return nil
}

type env struct {
	store   *repository.MemoryStore
	bus     *MockEventBus
	cart    service.CartService
	catalog service.CatalogService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := repository.NewMemory()
	bus := &MockEventBus{}
	log := zap.NewNop()
	return &env{
		store:   store,
		bus:     bus,
		cart:    service.NewCartService(store.Repository, bus, log, fastRetry),
		catalog: service.NewCatalogService(store.Repository, nil, log, fastRetry),
	}
}

func (e *env) product(t *testing.T, price string, stock int32) uuid.UUID {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), admin, service.ProductInput{
		SKU:          "SKU-" + uuid.NewString()[:8],
		Name:         "Product " + price,
		Price:        decimal.RequireFromString(price),
		IsActive:     true,
		InitialStock: stock,
	})
	require.NoError(t, err)
	return p.ID
}

func (e *env) stock(t *testing.T, productID uuid.UUID) int32 {
	t.Helper()
	n, err := e.catalog.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return n
}
