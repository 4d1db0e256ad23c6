package grpc

import (
	"context"
	"errors"

	"cart-service/internal/service"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Handler struct {
	cart    service.CartService
	catalog service.CatalogService
}

func NewHandler(cart service.CartService, catalog service.CatalogService) *Handler {
	return &Handler{cart: cart, catalog: catalog}
}

var _ CartServiceServer = (*Handler)(nil)

func (h *Handler) AddToCart(ctx context.Context, req *AddToCartRequest) (*CartItemResponse, error) {
	pid, err := fromUUID(req.ProductID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid product_id: %v", err)
	}
	item, err := h.cart.AddToCart(ctx, service.IdentityFromContext(ctx), pid, req.Quantity)
	if err != nil {
		return nil, toStatusErr(err)
	}
	return &CartItemResponse{Item: toCartItem(item)}, nil
}

func (h *Handler) UpdateQuantity(ctx context.Context, req *UpdateQuantityRequest) (*CartItemResponse, error) {
	id, err := fromUUID(req.ItemID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid item_id: %v", err)
	}
	item, err := h.cart.UpdateQuantity(ctx, service.IdentityFromContext(ctx), id, req.Quantity)
	if err != nil {
		return nil, toStatusErr(err)
	}
	if item == nil {
		return &CartItemResponse{Removed: true}, nil
	}
	return &CartItemResponse{Item: toCartItem(item)}, nil
}

func (h *Handler) RemoveFromCart(ctx context.Context, req *RemoveFromCartRequest) (*RemoveFromCartResponse, error) {
	id, err := fromUUID(req.ItemID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid item_id: %v", err)
	}
	if err := h.cart.RemoveFromCart(ctx, service.IdentityFromContext(ctx), id); err != nil {
		return nil, toStatusErr(err)
	}
	return &RemoveFromCartResponse{}, nil
}

func (h *Handler) ClearCart(ctx context.Context, _ *ClearCartRequest) (*ClearCartResponse, error) {
	n, err := h.cart.ClearCart(ctx, service.IdentityFromContext(ctx))
	if err != nil {
		return nil, toStatusErr(err)
	}
	return &ClearCartResponse{Released: int32(n)}, nil
}

func (h *Handler) GetCart(ctx context.Context, _ *GetCartRequest) (*GetCartResponse, error) {
	cart, err := h.cart.GetCart(ctx, service.IdentityFromContext(ctx))
	if err != nil {
		return nil, toStatusErr(err)
	}
	return &GetCartResponse{Cart: *cart}, nil
}

func (h *Handler) GetStock(ctx context.Context, req *GetStockRequest) (*GetStockResponse, error) {
	pid, err := fromUUID(req.ProductID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid product_id: %v", err)
	}
	n, err := h.catalog.GetStock(ctx, pid)
	if err != nil {
		return nil, toStatusErr(err)
	}
	return &GetStockResponse{ProductID: pid.String(), StockQuantity: n}, nil
}

func fromUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

func toStatusErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case service.IsAlreadyExists(err):
		return status.Error(codes.AlreadyExists, err.Error())
	case service.IsFailedPrecondition(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrStorageConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "internal: %v", err)
	}
}
