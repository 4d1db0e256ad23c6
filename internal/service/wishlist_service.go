package service

import (
	"context"
	"errors"

	"cart-service/internal/models"
	"cart-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Вишлист не резервирует остаток, это просто закладки.
type wishlistService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewWishlistService(repo *repository.Repository, log *zap.Logger) *wishlistService {
	if log == nil {
		log = zap.NewNop()
	}
	return &wishlistService{repo: repo, log: log}
}

func (s *wishlistService) AddToWishlist(ctx context.Context, who Identity, productID uuid.UUID) (bool, error) {
	if err := who.require(); err != nil {
		return false, err
	}
	p, err := s.repo.Products.GetByID(ctx, productID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, ErrProductNotFound
	}

	added, err := s.repo.Wishlist.Add(ctx, who.UserID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return false, ErrProductNotFound
		}
		return false, err
	}
	if added {
		s.log.Debug("wishlist item added",
			zap.String("user_id", who.UserID.String()),
			zap.String("product_id", productID.String()),
		)
	}
	return added, nil
}

func (s *wishlistService) RemoveFromWishlist(ctx context.Context, who Identity, productID uuid.UUID) error {
	if err := who.require(); err != nil {
		return err
	}
	ok, err := s.repo.Wishlist.Remove(ctx, who.UserID, productID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWishlistItemNotFound
	}
	return nil
}

func (s *wishlistService) ListWishlist(ctx context.Context, who Identity) ([]WishlistEntry, error) {
	if err := who.require(); err != nil {
		return nil, err
	}
	items, err := s.repo.Wishlist.ListByUser(ctx, who.UserID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.repo.Products.BatchGetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	stock, err := s.repo.Inventories.ListByProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]WishlistEntry, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		out = append(out, WishlistEntry{
			ID:      it.ID,
			AddedAt: it.CreatedAt,
			Product: ProductView{Product: p, StockQuantity: stock[p.ID]},
		})
	}
	return out, nil
}
