package grpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"cart-service/internal/auth"
	"cart-service/internal/repository"
	"cart-service/internal/service"
	gtransport "cart-service/internal/transport/grpc"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("google.golang.org/grpc/internal/transport.(*controlBuffer).get"),
	)
}

type harness struct {
	client  *gtransport.CartServiceClient
	health  grpc_health_v1.HealthClient
	tokens  *auth.HSProvider
	catalog service.CatalogService
}

func setup(t *testing.T) *harness {
	t.Helper()
	store := repository.NewMemory()
	log := zap.NewNop()
	retry := service.DefaultRetryOptions()
	cart := service.NewCartService(store.Repository, nil, log, retry)
	catalog := service.NewCatalogService(store.Repository, nil, log, retry)
	tokens := auth.NewHSProvider("test-secret", "auth", "storefront")

	lis := bufconn.Listen(bufSize)
	srv := gtransport.NewServer(gtransport.NewHandler(cart, catalog), tokens, log)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = lis.Close()
	})

	return &harness{
		client:  gtransport.NewCartServiceClient(conn),
		health:  grpc_health_v1.NewHealthClient(conn),
		tokens:  tokens,
		catalog: catalog,
	}
}

func (h *harness) as(t *testing.T, uid uuid.UUID) context.Context {
	t.Helper()
	tok, _, err := h.tokens.SignAccess(context.Background(), uid, service.RoleCustomer, time.Minute)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
}

func (h *harness) product(t *testing.T, stock int32) uuid.UUID {
	t.Helper()
	admin := service.Identity{UserID: uuid.New(), Role: service.RoleAdmin}
	p, err := h.catalog.CreateProduct(context.Background(), admin, service.ProductInput{
		SKU: "G-" + uuid.NewString()[:8], Name: "Mug", Price: decimal.RequireFromString("7.25"),
		IsActive: true, InitialStock: stock,
	})
	require.NoError(t, err)
	return p.ID
}

func TestCartService_Flow(t *testing.T) {
	h := setup(t)
	ctx := h.as(t, uuid.New())
	pid := h.product(t, 5)

	added, err := h.client.AddToCart(ctx, &gtransport.AddToCartRequest{ProductID: pid.String(), Quantity: 3})
	require.NoError(t, err)
	require.NotNil(t, added.Item)
	assert.Equal(t, int32(3), added.Item.Quantity)

	stock, err := h.client.GetStock(ctx, &gtransport.GetStockRequest{ProductID: pid.String()})
	require.NoError(t, err)
	assert.Equal(t, int32(2), stock.StockQuantity)

	upd, err := h.client.UpdateQuantity(ctx, &gtransport.UpdateQuantityRequest{ItemID: added.Item.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(1), upd.Item.Quantity)

	cart, err := h.client.GetCart(ctx, &gtransport.GetCartRequest{})
	require.NoError(t, err)
	require.Len(t, cart.Cart.Items, 1)
	assert.True(t, cart.Cart.TotalPrice.Equal(decimal.RequireFromString("7.25")))

	_, err = h.client.RemoveFromCart(ctx, &gtransport.RemoveFromCartRequest{ItemID: added.Item.ID})
	require.NoError(t, err)

	stock, err = h.client.GetStock(ctx, &gtransport.GetStockRequest{ProductID: pid.String()})
	require.NoError(t, err)
	assert.Equal(t, int32(5), stock.StockQuantity)
}

func TestCartService_UpdateToZeroRemoves(t *testing.T) {
	h := setup(t)
	ctx := h.as(t, uuid.New())
	pid := h.product(t, 2)

	added, err := h.client.AddToCart(ctx, &gtransport.AddToCartRequest{ProductID: pid.String(), Quantity: 2})
	require.NoError(t, err)

	resp, err := h.client.UpdateQuantity(ctx, &gtransport.UpdateQuantityRequest{ItemID: added.Item.ID, Quantity: 0})
	require.NoError(t, err)
	assert.True(t, resp.Removed)
	assert.Nil(t, resp.Item)

	cleared, err := h.client.ClearCart(ctx, &gtransport.ClearCartRequest{})
	require.NoError(t, err)
	assert.Zero(t, cleared.Released)
}

func TestCartService_ErrorCodes(t *testing.T) {
	h := setup(t)
	ctx := h.as(t, uuid.New())
	pid := h.product(t, 1)

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"no token", func() error {
			_, err := h.client.GetCart(context.Background(), &gtransport.GetCartRequest{})
			return err
		}, codes.Unauthenticated},
		{"bad token", func() error {
			bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
			_, err := h.client.GetCart(bad, &gtransport.GetCartRequest{})
			return err
		}, codes.Unauthenticated},
		{"bad uuid", func() error {
			_, err := h.client.AddToCart(ctx, &gtransport.AddToCartRequest{ProductID: "x", Quantity: 1})
			return err
		}, codes.InvalidArgument},
		{"zero qty", func() error {
			_, err := h.client.AddToCart(ctx, &gtransport.AddToCartRequest{ProductID: pid.String(), Quantity: 0})
			return err
		}, codes.InvalidArgument},
		{"unknown product", func() error {
			_, err := h.client.AddToCart(ctx, &gtransport.AddToCartRequest{ProductID: uuid.NewString(), Quantity: 1})
			return err
		}, codes.NotFound},
		{"insufficient stock", func() error {
			_, err := h.client.AddToCart(ctx, &gtransport.AddToCartRequest{ProductID: pid.String(), Quantity: 2})
			return err
		}, codes.FailedPrecondition},
		{"unknown item", func() error {
			_, err := h.client.RemoveFromCart(ctx, &gtransport.RemoveFromCartRequest{ItemID: uuid.NewString()})
			return err
		}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err), err.Error())
		})
	}
}

func TestCartService_PublicMethods(t *testing.T) {
	h := setup(t)
	pid := h.product(t, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stock, err := h.client.GetStock(ctx, &gtransport.GetStockRequest{ProductID: pid.String()})
	require.NoError(t, err)
	assert.Equal(t, int32(4), stock.StockQuantity)

	resp, err := h.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: gtransport.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
