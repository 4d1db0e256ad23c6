package repository

import (
	"context"
	"errors"
	"math"

	"cart-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepo interface {
	Create(ctx context.Context, productID uuid.UUID, stock int32) error
	// Get возвращает nil, nil если строки нет.
	Get(ctx context.Context, productID uuid.UUID) (*models.Inventory, error)
	// GetForUpdate блокирует строку до конца транзакции (SELECT ... FOR UPDATE).
	GetForUpdate(ctx context.Context, productID uuid.UUID) (*models.Inventory, error)
	// LockMany блокирует строки в порядке возрастания product_id.
	LockMany(ctx context.Context, productIDs []uuid.UUID) ([]models.Inventory, error)
	ListByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int32, error)

	// ErrNotFound если строки нет, ErrNegativeStock если не хватает остатка,
	// ErrStockOverflow если результат не влезает в int32.
	Adjust(ctx context.Context, productID uuid.UUID, delta int32) (int32, error)
	Set(ctx context.Context, productID uuid.UUID, stock int32) error
}

type inventoryRepo struct{ db *gorm.DB }

func NewInventoryRepo(db *gorm.DB) InventoryRepo { return &inventoryRepo{db: db} }

func (r *inventoryRepo) Create(ctx context.Context, productID uuid.UUID, stock int32) error {
	inv := models.Inventory{ProductID: productID, StockQuantity: stock}
	return translate(r.db.WithContext(ctx).Create(&inv).Error)
}

func (r *inventoryRepo) Get(ctx context.Context, productID uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	err := r.db.WithContext(ctx).First(&inv, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r *inventoryRepo) GetForUpdate(ctx context.Context, productID uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&inv, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r *inventoryRepo) LockMany(ctx context.Context, productIDs []uuid.UUID) ([]models.Inventory, error) {
	if len(productIDs) == 0 {
		return []models.Inventory{}, nil
	}
	var list []models.Inventory
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id IN ?", productIDs).
		Order("product_id ASC").
		Find(&list).Error
	return list, translate(err)
}

func (r *inventoryRepo) ListByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int32, error) {
	out := make(map[uuid.UUID]int32, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var list []models.Inventory
	if err := r.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	for _, inv := range list {
		out[inv.ProductID] = inv.StockQuantity
	}
	return out, nil
}

func (r *inventoryRepo) Adjust(ctx context.Context, productID uuid.UUID, delta int32) (int32, error) {
	var inv models.Inventory
	tx := r.db.WithContext(ctx).
		Model(&inv).
		Clauses(clause.Returning{}).
		Where("product_id = ? AND stock_quantity::bigint + ? BETWEEN 0 AND ?", productID, delta, math.MaxInt32).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if tx.Error != nil {
		return 0, translate(tx.Error)
	}
	if tx.RowsAffected > 0 {
		return inv.StockQuantity, nil
	}

	// условие не прошло: строки нет, остатка мало или вышли за int32
	cur, err := r.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if cur == nil {
		return 0, ErrNotFound
	}
	if int64(cur.StockQuantity)+int64(delta) > math.MaxInt32 {
		return cur.StockQuantity, ErrStockOverflow
	}
	return cur.StockQuantity, ErrNegativeStock
}

func (r *inventoryRepo) Set(ctx context.Context, productID uuid.UUID, stock int32) error {
	tx := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("product_id = ?", productID).
		Update("stock_quantity", stock)
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
