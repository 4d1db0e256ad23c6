package service

import (
	"context"

	"cart-service/internal/repository"
)

// CartReader: часть CartService, нужная дашборду.
type CartReader interface {
	GetCart(ctx context.Context, who Identity) (*Cart, error)
}

type dashboardService struct {
	repo  *repository.Repository
	carts CartReader
}

func NewDashboardService(repo *repository.Repository, carts CartReader) *dashboardService {
	return &dashboardService{repo: repo, carts: carts}
}

func (s *dashboardService) Stats(ctx context.Context, who Identity) (*DashboardStats, error) {
	if err := who.require(); err != nil {
		return nil, err
	}

	products, err := s.repo.Products.Count(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.Categories.Count(ctx)
	if err != nil {
		return nil, err
	}
	wishlist, err := s.repo.Wishlist.CountByUser(ctx, who.UserID)
	if err != nil {
		return nil, err
	}
	cart, err := s.carts.GetCart(ctx, who)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalProducts:   products,
		TotalCategories: categories,
		CartItems:       cart.TotalItems,
		CartTotal:       cart.TotalPrice,
		WishlistSize:    wishlist,
	}, nil
}
