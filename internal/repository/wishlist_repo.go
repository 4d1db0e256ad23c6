package repository

import (
	"context"

	"cart-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WishlistRepo interface {
	// Add идемпотентен: повторное добавление возвращает false.
	Add(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type wishlistRepo struct{ db *gorm.DB }

func NewWishlistRepo(db *gorm.DB) WishlistRepo { return &wishlistRepo{db: db} }

func (r *wishlistRepo) Add(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	it := models.WishlistItem{UserID: userID, ProductID: productID}
	tx := r.db.WithContext(ctx).
		Omit("id").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&it)
	return tx.RowsAffected > 0, translate(tx.Error)
}

func (r *wishlistRepo) Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&models.WishlistItem{}, "user_id = ? AND product_id = ?", userID, productID)
	return tx.RowsAffected > 0, translate(tx.Error)
}

func (r *wishlistRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var list []models.WishlistItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, translate(err)
}

func (r *wishlistRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.WishlistItem{}).Where("user_id = ?", userID).Count(&n).Error
	return n, translate(err)
}
