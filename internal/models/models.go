package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Category) TableName() string {
	return "categories"
}

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CategoryID  *uuid.UUID      `gorm:"type:uuid;index" json:"category_id,omitempty"`
	SKU         string          `gorm:"type:text;not null" json:"sku"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string          `gorm:"type:text" json:"image_url,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Inventory: строка учёта свободного остатка, 1:1 с products.
// StockQuantity не включает то, что уже лежит в корзинах.
type Inventory struct {
	ProductID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	StockQuantity int32     `gorm:"not null;default:0" json:"stock_quantity"`

	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Inventory) TableName() string {
	return "inventories"
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_cart_items_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_cart_items_user_product" json:"product_id"`
	Quantity  int32     `gorm:"not null" json:"quantity"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

type WishlistItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_wishlist_items_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_wishlist_items_user_product" json:"product_id"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (WishlistItem) TableName() string {
	return "wishlist_items"
}
