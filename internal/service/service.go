package service

import (
	"context"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductInput struct {
	CategoryID   *uuid.UUID
	SKU          string
	Name         string
	Description  string
	ImageURL     string
	Price        decimal.Decimal
	IsActive     bool
	InitialStock int32
}

type ProductPatch struct {
	CategoryID    *uuid.UUID
	ClearCategory bool
	SKU           *string
	Name          *string
	Description   *string
	ImageURL      *string
	Price         *decimal.Decimal
	IsActive      *bool
}

type ProductListFilter struct {
	CategoryID      *uuid.UUID
	Query           string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Sort            repository.ProductSort
	IncludeInactive bool // только для админа
	Limit           int
	Offset          int
}

type CategoryInput struct {
	Name        string
	Description string
}

// ProductView: товар каталога вместе с текущим свободным остатком.
type ProductView struct {
	models.Product
	StockQuantity int32 `json:"stock_quantity"`
}

type CategoryView struct {
	models.Category
	ProductCount int64 `json:"product_count"`
}

type CartLine struct {
	ItemID      uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	ImageURL    string          `json:"image_url,omitempty"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Cart struct {
	UserID     uuid.UUID       `json:"user_id"`
	Items      []CartLine      `json:"items"`
	TotalItems int64           `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type WishlistEntry struct {
	ID      uuid.UUID   `json:"id"`
	AddedAt time.Time   `json:"added_at"`
	Product ProductView `json:"product"`
}

type DashboardStats struct {
	TotalProducts   int64           `json:"total_products"`
	TotalCategories int64           `json:"total_categories"`
	CartItems       int64           `json:"cart_items"`
	CartTotal       decimal.Decimal `json:"cart_total"`
	WishlistSize    int64           `json:"wishlist_size"`
}

type ReleaseResult struct {
	Users int `json:"users"`
	Items int `json:"items"`
}

// CartService: движок резервирования: переносит количество между
// складом и корзиной одной транзакцией.
type CartService interface {
	AddToCart(ctx context.Context, who Identity, productID uuid.UUID, qty int32) (*models.CartItem, error)
	// UpdateQuantity с newQty <= 0 удаляет позицию и возвращает nil, nil.
	UpdateQuantity(ctx context.Context, who Identity, itemID uuid.UUID, newQty int32) (*models.CartItem, error)
	RemoveFromCart(ctx context.Context, who Identity, itemID uuid.UUID) error
	ClearCart(ctx context.Context, who Identity) (int, error)

	GetCart(ctx context.Context, who Identity) (*Cart, error)
	GetTotalPrice(ctx context.Context, who Identity) (decimal.Decimal, error)
	GetTotalItems(ctx context.Context, who Identity) (int64, error)

	// ReleaseStaleCarts возвращает на склад корзины, не менявшиеся с cutoff.
	ReleaseStaleCarts(ctx context.Context, cutoff time.Time) (ReleaseResult, error)
}

type CatalogService interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductView, error)
	ListProducts(ctx context.Context, who Identity, f ProductListFilter) ([]ProductView, int64, error)
	BatchGetProducts(ctx context.Context, ids []uuid.UUID) ([]ProductView, error)
	ListCategories(ctx context.Context) ([]CategoryView, error)
	GetStock(ctx context.Context, productID uuid.UUID) (int32, error)

	// admin
	CreateProduct(ctx context.Context, who Identity, in ProductInput) (*ProductView, error)
	UpdateProduct(ctx context.Context, who Identity, productID uuid.UUID, patch ProductPatch) (*ProductView, error)
	DeleteProduct(ctx context.Context, who Identity, productID uuid.UUID) error
	CreateCategory(ctx context.Context, who Identity, in CategoryInput) (*models.Category, error)
	SetStock(ctx context.Context, who Identity, productID uuid.UUID, stock int32) (int32, error)
	AdjustStock(ctx context.Context, who Identity, productID uuid.UUID, delta int32) (int32, error)
}

type WishlistService interface {
	AddToWishlist(ctx context.Context, who Identity, productID uuid.UUID) (bool, error)
	RemoveFromWishlist(ctx context.Context, who Identity, productID uuid.UUID) error
	ListWishlist(ctx context.Context, who Identity) ([]WishlistEntry, error)
}

type DashboardService interface {
	Stats(ctx context.Context, who Identity) (*DashboardStats, error)
}

// ProductCache: кеш карточек товара (без остатков).
// GetProduct возвращает nil, nil при промахе.
type ProductCache interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	SetProduct(ctx context.Context, p *models.Product) error
	InvalidateProduct(ctx context.Context, id uuid.UUID) error
}

type NopCache struct{}

func (NopCache) GetProduct(context.Context, uuid.UUID) (*models.Product, error) { return nil, nil }
func (NopCache) SetProduct(context.Context, *models.Product) error              { return nil }
func (NopCache) InvalidateProduct(context.Context, uuid.UUID) error             { return nil }
