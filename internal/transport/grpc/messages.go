package grpc

import (
	"time"

	"cart-service/internal/models"
	"cart-service/internal/service"
)

type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type UpdateQuantityRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int32  `json:"quantity"`
}

type RemoveFromCartRequest struct {
	ItemID string `json:"item_id"`
}

type ClearCartRequest struct{}

type GetCartRequest struct{}

type GetStockRequest struct {
	ProductID string `json:"product_id"`
}

type CartItem struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartItemResponse struct {
	Item    *CartItem `json:"item,omitempty"`
	Removed bool      `json:"removed,omitempty"`
}

type RemoveFromCartResponse struct{}

type ClearCartResponse struct {
	Released int32 `json:"released"`
}

type GetCartResponse struct {
	Cart service.Cart `json:"cart"`
}

type GetStockResponse struct {
	ProductID     string `json:"product_id"`
	StockQuantity int32  `json:"stock_quantity"`
}

func toCartItem(it *models.CartItem) *CartItem {
	if it == nil {
		return nil
	}
	return &CartItem{
		ID:        it.ID.String(),
		ProductID: it.ProductID.String(),
		Quantity:  it.Quantity,
		UpdatedAt: it.UpdatedAt,
	}
}
