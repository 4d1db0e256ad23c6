package repository

import (
	"bytes"
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"cart-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memState: снимок всех таблиц in-memory хранилища.
type memState struct {
	products    map[uuid.UUID]models.Product
	categories  map[uuid.UUID]models.Category
	inventories map[uuid.UUID]models.Inventory
	cartItems   map[uuid.UUID]models.CartItem
	wishlist    map[uuid.UUID]models.WishlistItem
}

func newMemState() *memState {
	return &memState{
		products:    map[uuid.UUID]models.Product{},
		categories:  map[uuid.UUID]models.Category{},
		inventories: map[uuid.UUID]models.Inventory{},
		cartItems:   map[uuid.UUID]models.CartItem{},
		wishlist:    map[uuid.UUID]models.WishlistItem{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.inventories {
		c.inventories[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.wishlist {
		c.wishlist[k] = v
	}
	return c
}

type memBackend struct {
	mu    sync.Mutex
	state *memState

	failCommits int
	failErr     error
}

// memView выполняет операции либо над состоянием транзакции (tx != nil,
// мьютекс уже захвачен), либо над общим состоянием под мьютексом.
type memView struct {
	b  *memBackend
	tx *memState
}

func (v memView) do(fn func(s *memState) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return fn(v.b.state)
}

// MemoryStore: in-memory реализация Repository для dev-режима и тестов.
// Транзакции сериализуются одним мьютексом; изменения применяются
// к копии состояния и подменяют его только при успешном коммите.
type MemoryStore struct {
	*Repository
	b *memBackend
}

func NewMemory() *MemoryStore {
	b := &memBackend{state: newMemState()}
	r := buildMemRepository(b, nil)
	r.runTx = func(ctx context.Context, fn func(tx *Repository) error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.mu.Lock()
		defer b.mu.Unlock()

		work := b.state.clone()
		txRepo := buildMemRepository(b, work)
		txRepo.runTx = func(_ context.Context, inner func(tx *Repository) error) error {
			return inner(txRepo)
		}
		if err := fn(txRepo); err != nil {
			return err
		}
		if b.failCommits > 0 {
			b.failCommits--
			return b.failErr
		}
		b.state = work
		return nil
	}
	return &MemoryStore{Repository: r, b: b}
}

func buildMemRepository(b *memBackend, tx *memState) *Repository {
	v := memView{b: b, tx: tx}
	return &Repository{
		Products:    memProductRepo{v},
		Categories:  memCategoryRepo{v},
		Inventories: memInventoryRepo{v},
		CartItems:   memCartItemRepo{v},
		Wishlist:    memWishlistRepo{v},
	}
}

// FailCommits заставляет следующие n транзакций откатиться с err на коммите.
func (m *MemoryStore) FailCommits(n int, err error) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.failCommits = n
	m.b.failErr = err
}

// TotalStock: остаток на складе плюс всё, что лежит в корзинах.
func (m *MemoryStore) TotalStock(productID uuid.UUID) int64 {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	var total int64
	if inv, ok := m.b.state.inventories[productID]; ok {
		total += int64(inv.StockQuantity)
	}
	for _, it := range m.b.state.cartItems {
		if it.ProductID == productID {
			total += int64(it.Quantity)
		}
	}
	return total
}

func lessUUID(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

func toDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x != nil {
			return *x
		}
	}
	return decimal.Zero
}

func toUUIDPtr(v any) *uuid.UUID {
	switch x := v.(type) {
	case uuid.UUID:
		return &x
	case *uuid.UUID:
		return x
	}
	return nil
}

// --- products ---

type memProductRepo struct{ v memView }

func (r memProductRepo) Create(_ context.Context, p *models.Product) error {
	return r.v.do(func(s *memState) error {
		for _, other := range s.products {
			if strings.EqualFold(other.SKU, p.SKU) {
				return ErrDuplicate
			}
		}
		now := time.Now().UTC()
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.CreatedAt, p.UpdatedAt = now, now
		s.products[p.ID] = *p
		return nil
	})
}

func (r memProductRepo) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.v.do(func(s *memState) error {
		p, ok := s.products[id]
		if !ok {
			return ErrNotFound
		}
		for k, val := range fields {
			switch k {
			case "name":
				p.Name = val.(string)
			case "description":
				p.Description = val.(string)
			case "image_url":
				p.ImageURL = val.(string)
			case "sku":
				sku := val.(string)
				for oid, other := range s.products {
					if oid != id && strings.EqualFold(other.SKU, sku) {
						return ErrDuplicate
					}
				}
				p.SKU = sku
			case "price":
				p.Price = toDecimal(val)
			case "is_active":
				p.IsActive = val.(bool)
			case "category_id":
				p.CategoryID = toUUIDPtr(val)
			}
		}
		p.UpdatedAt = time.Now().UTC()
		s.products[id] = p
		return nil
	})
}

func (r memProductRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	var out *models.Product
	err := r.v.do(func(s *memState) error {
		if p, ok := s.products[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r memProductRepo) GetBySKU(_ context.Context, sku string) (*models.Product, error) {
	var out *models.Product
	err := r.v.do(func(s *memState) error {
		for _, p := range s.products {
			if strings.EqualFold(p.SKU, sku) {
				p := p
				out = &p
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r memProductRepo) List(_ context.Context, f ProductListFilter) ([]models.Product, int64, error) {
	f.normalize()
	var matched []models.Product
	err := r.v.do(func(s *memState) error {
		q := strings.ToLower(strings.TrimSpace(f.Query))
		for _, p := range s.products {
			if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
				continue
			}
			if f.OnlyActive != nil && p.IsActive != *f.OnlyActive {
				continue
			}
			if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
				continue
			}
			if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
				continue
			}
			if q != "" && !strings.Contains(strings.ToLower(p.Name), q) &&
				!strings.Contains(strings.ToLower(p.Description), q) {
				continue
			}
			matched = append(matched, p)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case SortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case SortPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return lessUUID(a.ID, b.ID)
	})

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []models.Product{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], total, nil
}

func (r memProductRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.v.do(func(s *memState) error {
		if _, ok := s.products[id]; !ok {
			return nil
		}
		for _, it := range s.cartItems {
			if it.ProductID == id {
				return ErrReferenced
			}
		}
		delete(s.products, id)
		delete(s.inventories, id)
		for wid, w := range s.wishlist {
			if w.ProductID == id {
				delete(s.wishlist, wid)
			}
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (r memProductRepo) BatchGetByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	out := []models.Product{}
	err := r.v.do(func(s *memState) error {
		for _, id := range ids {
			if p, ok := s.products[id]; ok {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (r memProductRepo) Count(_ context.Context) (int64, error) {
	var n int64
	err := r.v.do(func(s *memState) error {
		n = int64(len(s.products))
		return nil
	})
	return n, err
}

func (r memProductRepo) CountByCategory(_ context.Context) ([]CategoryCount, error) {
	var out []CategoryCount
	err := r.v.do(func(s *memState) error {
		counts := map[uuid.UUID]int64{}
		for _, p := range s.products {
			if p.CategoryID != nil {
				counts[*p.CategoryID]++
			}
		}
		for id, n := range counts {
			out = append(out, CategoryCount{CategoryID: id, Products: n})
		}
		return nil
	})
	return out, err
}

// --- categories ---

type memCategoryRepo struct{ v memView }

func (r memCategoryRepo) Create(_ context.Context, c *models.Category) error {
	return r.v.do(func(s *memState) error {
		for _, other := range s.categories {
			if strings.EqualFold(other.Name, c.Name) {
				return ErrDuplicate
			}
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CreatedAt = time.Now().UTC()
		s.categories[c.ID] = *c
		return nil
	})
}

func (r memCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	var out *models.Category
	err := r.v.do(func(s *memState) error {
		if c, ok := s.categories[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r memCategoryRepo) GetByName(_ context.Context, name string) (*models.Category, error) {
	var out *models.Category
	err := r.v.do(func(s *memState) error {
		for _, c := range s.categories {
			if strings.EqualFold(c.Name, name) {
				c := c
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r memCategoryRepo) List(_ context.Context) ([]models.Category, error) {
	var out []models.Category
	err := r.v.do(func(s *memState) error {
		for _, c := range s.categories {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r memCategoryRepo) Count(_ context.Context) (int64, error) {
	var n int64
	err := r.v.do(func(s *memState) error {
		n = int64(len(s.categories))
		return nil
	})
	return n, err
}

// --- inventories ---

type memInventoryRepo struct{ v memView }

func (r memInventoryRepo) Create(_ context.Context, productID uuid.UUID, stock int32) error {
	return r.v.do(func(s *memState) error {
		if _, ok := s.inventories[productID]; ok {
			return ErrDuplicate
		}
		if stock < 0 {
			return ErrNegativeStock
		}
		s.inventories[productID] = models.Inventory{
			ProductID:     productID,
			StockQuantity: stock,
			UpdatedAt:     time.Now().UTC(),
		}
		return nil
	})
}

func (r memInventoryRepo) Get(_ context.Context, productID uuid.UUID) (*models.Inventory, error) {
	var out *models.Inventory
	err := r.v.do(func(s *memState) error {
		if inv, ok := s.inventories[productID]; ok {
			out = &inv
		}
		return nil
	})
	return out, err
}

// GetForUpdate: внутри транзакции весь стор уже заблокирован.
func (r memInventoryRepo) GetForUpdate(ctx context.Context, productID uuid.UUID) (*models.Inventory, error) {
	return r.Get(ctx, productID)
}

func (r memInventoryRepo) LockMany(_ context.Context, productIDs []uuid.UUID) ([]models.Inventory, error) {
	out := []models.Inventory{}
	err := r.v.do(func(s *memState) error {
		for _, id := range productIDs {
			if inv, ok := s.inventories[id]; ok {
				out = append(out, inv)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return lessUUID(out[i].ProductID, out[j].ProductID) })
	return out, err
}

func (r memInventoryRepo) ListByProducts(_ context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int32, error) {
	out := make(map[uuid.UUID]int32, len(productIDs))
	err := r.v.do(func(s *memState) error {
		for _, id := range productIDs {
			if inv, ok := s.inventories[id]; ok {
				out[id] = inv.StockQuantity
			}
		}
		return nil
	})
	return out, err
}

func (r memInventoryRepo) Adjust(_ context.Context, productID uuid.UUID, delta int32) (int32, error) {
	var result int32
	err := r.v.do(func(s *memState) error {
		inv, ok := s.inventories[productID]
		if !ok {
			return ErrNotFound
		}
		result = inv.StockQuantity
		next := int64(inv.StockQuantity) + int64(delta)
		if next < 0 {
			return ErrNegativeStock
		}
		if next > math.MaxInt32 {
			return ErrStockOverflow
		}
		inv.StockQuantity += delta
		inv.UpdatedAt = time.Now().UTC()
		s.inventories[productID] = inv
		result = inv.StockQuantity
		return nil
	})
	return result, err
}

func (r memInventoryRepo) Set(_ context.Context, productID uuid.UUID, stock int32) error {
	return r.v.do(func(s *memState) error {
		inv, ok := s.inventories[productID]
		if !ok {
			return ErrNotFound
		}
		if stock < 0 {
			return ErrNegativeStock
		}
		inv.StockQuantity = stock
		inv.UpdatedAt = time.Now().UTC()
		s.inventories[productID] = inv
		return nil
	})
}

// --- cart items ---

type memCartItemRepo struct{ v memView }

func findCartItem(s *memState, userID, productID uuid.UUID) (models.CartItem, bool) {
	for _, it := range s.cartItems {
		if it.UserID == userID && it.ProductID == productID {
			return it, true
		}
	}
	return models.CartItem{}, false
}

func (r memCartItemRepo) Get(_ context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var out *models.CartItem
	err := r.v.do(func(s *memState) error {
		if it, ok := findCartItem(s, userID, productID); ok {
			out = &it
		}
		return nil
	})
	return out, err
}

func (r memCartItemRepo) GetByID(_ context.Context, id uuid.UUID) (*models.CartItem, error) {
	var out *models.CartItem
	err := r.v.do(func(s *memState) error {
		if it, ok := s.cartItems[id]; ok {
			out = &it
		}
		return nil
	})
	return out, err
}

func (r memCartItemRepo) Upsert(_ context.Context, userID, productID uuid.UUID, qty int32) (*models.CartItem, error) {
	var out models.CartItem
	err := r.v.do(func(s *memState) error {
		if qty <= 0 {
			return ErrCheckViolation
		}
		if _, ok := s.products[productID]; !ok {
			return ErrReferenced
		}
		now := time.Now().UTC()
		it, ok := findCartItem(s, userID, productID)
		if !ok {
			it = models.CartItem{ID: uuid.New(), UserID: userID, ProductID: productID, CreatedAt: now}
		}
		it.Quantity = qty
		it.UpdatedAt = now
		s.cartItems[it.ID] = it
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memCartItemRepo) SetQuantity(_ context.Context, id uuid.UUID, qty int32) (*models.CartItem, error) {
	var out models.CartItem
	err := r.v.do(func(s *memState) error {
		if qty <= 0 {
			return ErrCheckViolation
		}
		it, ok := s.cartItems[id]
		if !ok {
			return ErrNotFound
		}
		it.Quantity = qty
		it.UpdatedAt = time.Now().UTC()
		s.cartItems[id] = it
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memCartItemRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.v.do(func(s *memState) error {
		if _, ok := s.cartItems[id]; ok {
			delete(s.cartItems, id)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (r memCartItemRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var out []models.CartItem
	err := r.v.do(func(s *memState) error {
		for _, it := range s.cartItems {
			if it.UserID == userID {
				out = append(out, it)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return lessUUID(out[i].ID, out[j].ID)
	})
	return out, err
}

func (r memCartItemRepo) DeleteItems(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var n int64
	err := r.v.do(func(s *memState) error {
		for _, id := range ids {
			if it, ok := s.cartItems[id]; ok && it.UserID == userID {
				delete(s.cartItems, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memCartItemRepo) CountByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.do(func(s *memState) error {
		for _, it := range s.cartItems {
			if it.ProductID == productID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memCartItemRepo) SumByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.do(func(s *memState) error {
		for _, it := range s.cartItems {
			if it.ProductID == productID {
				n += int64(it.Quantity)
			}
		}
		return nil
	})
	return n, err
}

func (r memCartItemRepo) ListStaleUsers(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []uuid.UUID
	err := r.v.do(func(s *memState) error {
		newest := map[uuid.UUID]time.Time{}
		for _, it := range s.cartItems {
			if it.UpdatedAt.After(newest[it.UserID]) {
				newest[it.UserID] = it.UpdatedAt
			}
		}
		for uid, ts := range newest {
			if ts.Before(cutoff) {
				out = append(out, uid)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return lessUUID(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// --- wishlist ---

type memWishlistRepo struct{ v memView }

func (r memWishlistRepo) Add(_ context.Context, userID, productID uuid.UUID) (bool, error) {
	var added bool
	err := r.v.do(func(s *memState) error {
		if _, ok := s.products[productID]; !ok {
			return ErrReferenced
		}
		for _, w := range s.wishlist {
			if w.UserID == userID && w.ProductID == productID {
				return nil
			}
		}
		w := models.WishlistItem{ID: uuid.New(), UserID: userID, ProductID: productID, CreatedAt: time.Now().UTC()}
		s.wishlist[w.ID] = w
		added = true
		return nil
	})
	return added, err
}

func (r memWishlistRepo) Remove(_ context.Context, userID, productID uuid.UUID) (bool, error) {
	var removed bool
	err := r.v.do(func(s *memState) error {
		for id, w := range s.wishlist {
			if w.UserID == userID && w.ProductID == productID {
				delete(s.wishlist, id)
				removed = true
			}
		}
		return nil
	})
	return removed, err
}

func (r memWishlistRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var out []models.WishlistItem
	err := r.v.do(func(s *memState) error {
		for _, w := range s.wishlist {
			if w.UserID == userID {
				out = append(out, w)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r memWishlistRepo) CountByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.do(func(s *memState) error {
		for _, w := range s.wishlist {
			if w.UserID == userID {
				n++
			}
		}
		return nil
	})
	return n, err
}
