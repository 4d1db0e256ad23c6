package repository

import (
	"context"

	"gorm.io/gorm"
)

type Repository struct {
	DB          *gorm.DB
	Products    ProductRepo
	Categories  CategoryRepo
	Inventories InventoryRepo
	CartItems   CartItemRepo
	Wishlist    WishlistRepo

	runTx func(ctx context.Context, fn func(tx *Repository) error) error
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:          db,
		Products:    NewProductRepo(db),
		Categories:  NewCategoryRepo(db),
		Inventories: NewInventoryRepo(db),
		CartItems:   NewCartItemRepo(db),
		Wishlist:    NewWishlistRepo(db),
	}
}

func New(db *gorm.DB) *Repository {
	r := buildRepository(db)
	r.runTx = func(ctx context.Context, fn func(tx *Repository) error) error {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ctxRepo := buildRepository(tx)
			// вложенный WithTx выполняется в той же транзакции
			ctxRepo.runTx = func(_ context.Context, inner func(tx *Repository) error) error {
				return inner(ctxRepo)
			}
			return fn(ctxRepo)
		})
		return translate(err)
	}
	return r
}

// Глобальная транзакция на весь набор репо.
// Внутри fn используйте только tx, не исходный Repository.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.runTx(ctx, fn)
}
