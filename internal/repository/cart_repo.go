package repository

import (
	"context"
	"errors"
	"time"

	"cart-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartItemRepo interface {
	// Get/GetByID возвращают nil, nil если позиции нет.
	Get(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error)
	// Upsert ставит quantity для пары (user, product), создавая строку при необходимости.
	Upsert(ctx context.Context, userID, productID uuid.UUID, qty int32) (*models.CartItem, error)
	SetQuantity(ctx context.Context, id uuid.UUID, qty int32) (*models.CartItem, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	// DeleteItems удаляет только перечисленные позиции пользователя:
	// строки, добавленные параллельно, не задеваются.
	DeleteItems(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	// SumByProduct: сколько единиц товара лежит во всех корзинах.
	SumByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	// ListStaleUsers: пользователи, чья корзина не менялась с cutoff.
	ListStaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type cartItemRepo struct{ db *gorm.DB }

func NewCartItemRepo(db *gorm.DB) CartItemRepo { return &cartItemRepo{db: db} }

func (r *cartItemRepo) Get(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var it models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (r *cartItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	var it models.CartItem
	err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (r *cartItemRepo) Upsert(ctx context.Context, userID, productID uuid.UUID, qty int32) (*models.CartItem, error) {
	it := models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	}
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
				DoUpdates: clause.Assignments(map[string]any{"quantity": qty, "updated_at": gorm.Expr("now()")}),
			},
			clause.Returning{},
		).
		Create(&it).Error
	if err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (r *cartItemRepo) SetQuantity(ctx context.Context, id uuid.UUID, qty int32) (*models.CartItem, error) {
	var it models.CartItem
	tx := r.db.WithContext(ctx).
		Model(&it).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Update("quantity", qty)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (r *cartItemRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", id)
	return tx.RowsAffected > 0, translate(tx.Error)
}

func (r *cartItemRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var list []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&list).Error
	return list, translate(err)
}

func (r *cartItemRepo) DeleteItems(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).Delete(&models.CartItem{}, "user_id = ? AND id IN ?", userID, ids)
	return tx.RowsAffected, translate(tx.Error)
}

func (r *cartItemRepo) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("product_id = ?", productID).
		Count(&n).Error
	return n, translate(err)
}

func (r *cartItemRepo) SumByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ?", productID).
		Scan(&n).Error
	return n, translate(err)
}

func (r *cartItemRepo) ListStaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Group("user_id").
		Having("max(updated_at) < ?", cutoff).
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, translate(err)
}
