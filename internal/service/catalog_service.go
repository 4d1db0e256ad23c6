package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"cart-service/internal/models"
	"cart-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type catalogService struct {
	repo  *repository.Repository
	tx    txRunner
	cache ProductCache
	log   *zap.Logger
}

func NewCatalogService(repo *repository.Repository, cache ProductCache, log *zap.Logger, retry RetryOptions) *catalogService {
	if cache == nil {
		cache = NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &catalogService{
		repo:  repo,
		tx:    newTxRunner(repo, retry, log),
		cache: cache,
		log:   log,
	}
}

// loadProduct читает карточку через кеш. Ошибки кеша не фатальны.
func (s *catalogService) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.cache.GetProduct(ctx, id)
	if err != nil {
		s.log.Warn("product cache get failed", zap.String("product_id", id.String()), zap.Error(err))
	}
	if p != nil {
		return p, nil
	}

	p, err = s.repo.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	if err := s.cache.SetProduct(ctx, p); err != nil {
		s.log.Warn("product cache set failed", zap.String("product_id", id.String()), zap.Error(err))
	}
	return p, nil
}

func (s *catalogService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.InvalidateProduct(ctx, id); err != nil {
		s.log.Warn("product cache invalidate failed", zap.String("product_id", id.String()), zap.Error(err))
	}
}

func (s *catalogService) withStock(ctx context.Context, products []models.Product) ([]ProductView, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	stock, err := s.repo.Inventories.ListByProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, ProductView{Product: p, StockQuantity: stock[p.ID]})
	}
	return out, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductView, error) {
	p, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.Inventories.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	view := &ProductView{Product: *p}
	if inv != nil {
		view.StockQuantity = inv.StockQuantity
	}
	return view, nil
}

func (s *catalogService) ListProducts(ctx context.Context, who Identity, f ProductListFilter) ([]ProductView, int64, error) {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return nil, 0, ErrInvalidPrice
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return nil, 0, ErrInvalidPrice
	}

	rf := repository.ProductListFilter{
		CategoryID: f.CategoryID,
		Query:      f.Query,
		MinPrice:   f.MinPrice,
		MaxPrice:   f.MaxPrice,
		Sort:       f.Sort,
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
	if !(f.IncludeInactive && who.IsAdmin()) {
		active := true
		rf.OnlyActive = &active
	}

	list, total, err := s.repo.Products.List(ctx, rf)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.withStock(ctx, list)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *catalogService) BatchGetProducts(ctx context.Context, ids []uuid.UUID) ([]ProductView, error) {
	list, err := s.repo.Products.BatchGetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.withStock(ctx, list)
}

func (s *catalogService) ListCategories(ctx context.Context) ([]CategoryView, error) {
	cats, err := s.repo.Categories.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.Products.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	byCat := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byCat[c.CategoryID] = c.Products
	}

	out := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryView{Category: c, ProductCount: byCat[c.ID]})
	}
	return out, nil
}

func (s *catalogService) GetStock(ctx context.Context, productID uuid.UUID) (int32, error) {
	inv, err := s.repo.Inventories.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if inv == nil {
		return 0, ErrProductNotFound
	}
	return inv.StockQuantity, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, who Identity, in ProductInput) (*ProductView, error) {
	if err := who.requireAdmin(); err != nil {
		return nil, err
	}

	p := &models.Product{
		CategoryID:  in.CategoryID,
		SKU:         strings.TrimSpace(in.SKU),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Price:       in.Price,
		IsActive:    in.IsActive,
	}
	switch {
	case p.SKU == "":
		return nil, ErrEmptySKU
	case p.Name == "":
		return nil, ErrEmptyName
	case p.Price.IsNegative():
		return nil, ErrInvalidPrice
	case in.InitialStock < 0:
		return nil, ErrInvalidStock
	}

	err := s.tx.run(ctx, "create product", func(tx *repository.Repository) error {
		if p.CategoryID != nil {
			c, err := tx.Categories.GetByID(ctx, *p.CategoryID)
			if err != nil {
				return err
			}
			if c == nil {
				return ErrCategoryNotFound
			}
		}
		if existing, err := tx.Products.GetBySKU(ctx, p.SKU); err != nil {
			return err
		} else if existing != nil {
			return ErrSKUAlreadyExists
		}

		p.ID = uuid.Nil
		if err := tx.Products.Create(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrSKUAlreadyExists
			}
			return err
		}
		// 1:1 строка в inventories
		return tx.Inventories.Create(ctx, p.ID, in.InitialStock)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", p.ID.String()),
		zap.String("sku", p.SKU),
		zap.Int32("stock", in.InitialStock),
	)
	return &ProductView{Product: *p, StockQuantity: in.InitialStock}, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, who Identity, productID uuid.UUID, patch ProductPatch) (*ProductView, error) {
	if err := who.requireAdmin(); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.SKU != nil {
		sku := strings.TrimSpace(*patch.SKU)
		if sku == "" {
			return nil, ErrEmptySKU
		}
		fields["sku"] = sku
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		fields["name"] = name
	}
	if patch.Description != nil {
		fields["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.ImageURL != nil {
		fields["image_url"] = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		fields["price"] = *patch.Price
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
	}
	if patch.ClearCategory {
		fields["category_id"] = nil
	} else if patch.CategoryID != nil {
		fields["category_id"] = *patch.CategoryID
	}

	err := s.tx.run(ctx, "update product", func(tx *repository.Repository) error {
		p, err := tx.Products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrProductNotFound
		}
		if len(fields) == 0 {
			return nil
		}

		if v, ok := fields["sku"]; ok {
			if existing, err := tx.Products.GetBySKU(ctx, v.(string)); err != nil {
				return err
			} else if existing != nil && existing.ID != p.ID {
				return ErrSKUAlreadyExists
			}
		}
		if v, ok := fields["category_id"].(uuid.UUID); ok {
			c, err := tx.Categories.GetByID(ctx, v)
			if err != nil {
				return err
			}
			if c == nil {
				return ErrCategoryNotFound
			}
		}

		if err := tx.Products.UpdateFields(ctx, productID, fields); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicate):
				return ErrSKUAlreadyExists
			case errors.Is(err, repository.ErrNotFound):
				return ErrProductNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, productID)
	if len(fields) > 0 {
		s.log.Info("product updated", zap.String("product_id", productID.String()), zap.Int("fields", len(fields)))
	}
	return s.GetProduct(ctx, productID)
}

func (s *catalogService) DeleteProduct(ctx context.Context, who Identity, productID uuid.UUID) error {
	if err := who.requireAdmin(); err != nil {
		return err
	}

	err := s.tx.run(ctx, "delete product", func(tx *repository.Repository) error {
		// блокировка склада не даёт параллельному AddToCart положить товар в корзину
		if _, err := tx.Inventories.GetForUpdate(ctx, productID); err != nil {
			return err
		}
		n, err := tx.CartItems.CountByProduct(ctx, productID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrProductInCarts
		}
		ok, err := tx.Products.Delete(ctx, productID)
		if err != nil {
			if errors.Is(err, repository.ErrReferenced) {
				return ErrProductInCarts
			}
			return err
		}
		if !ok {
			return ErrProductNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, productID)
	s.log.Info("product deleted", zap.String("product_id", productID.String()))
	return nil
}

func (s *catalogService) CreateCategory(ctx context.Context, who Identity, in CategoryInput) (*models.Category, error) {
	if err := who.requireAdmin(); err != nil {
		return nil, err
	}
	c := &models.Category{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
	}
	if c.Name == "" {
		return nil, ErrEmptyName
	}

	err := s.tx.run(ctx, "create category", func(tx *repository.Repository) error {
		if existing, err := tx.Categories.GetByName(ctx, c.Name); err != nil {
			return err
		} else if existing != nil {
			return ErrCategoryExists
		}
		c.ID = uuid.Nil
		if err := tx.Categories.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrCategoryExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("category created", zap.String("category_id", c.ID.String()), zap.String("name", c.Name))
	return c, nil
}

// SetStock и AdjustStock: единственные операции, меняющие общий
// остаток товара (склад + корзины).
func (s *catalogService) SetStock(ctx context.Context, who Identity, productID uuid.UUID, stock int32) (int32, error) {
	if err := who.requireAdmin(); err != nil {
		return 0, err
	}
	if stock < 0 {
		return 0, ErrInvalidStock
	}

	err := s.tx.run(ctx, "set stock", func(tx *repository.Repository) error {
		inv, err := tx.Inventories.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if inv == nil {
			return ErrProductNotFound
		}
		if err := checkStockLimit(ctx, tx, productID, int64(stock)); err != nil {
			return err
		}
		return stockErr(tx.Inventories.Set(ctx, productID, stock))
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("stock set", zap.String("product_id", productID.String()), zap.Int32("stock", stock))
	return stock, nil
}

func (s *catalogService) AdjustStock(ctx context.Context, who Identity, productID uuid.UUID, delta int32) (int32, error) {
	if err := who.requireAdmin(); err != nil {
		return 0, err
	}

	var left int32
	err := s.tx.run(ctx, "adjust stock", func(tx *repository.Repository) error {
		inv, err := tx.Inventories.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if inv == nil {
			return ErrProductNotFound
		}
		if delta > 0 {
			if err := checkStockLimit(ctx, tx, productID, int64(inv.StockQuantity)+int64(delta)); err != nil {
				return err
			}
		}
		left, err = tx.Inventories.Adjust(ctx, productID, delta)
		return stockErr(err)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("stock adjusted",
		zap.String("product_id", productID.String()),
		zap.Int32("delta", delta),
		zap.Int32("stock", left),
	)
	return left, nil
}

// checkStockLimit: склад вместе с зарезервированным в корзинах должен
// влезать в int32, иначе возврат позиций на склад переполнится.
// Вызывается под блокировкой строки склада.
func checkStockLimit(ctx context.Context, tx *repository.Repository, productID uuid.UUID, stock int64) error {
	held, err := tx.CartItems.SumByProduct(ctx, productID)
	if err != nil {
		return err
	}
	if stock+held > math.MaxInt32 {
		return ErrStockTooLarge
	}
	return nil
}
