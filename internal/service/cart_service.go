package service

import (
	"bytes"
	"context"
	"math"
	"sort"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const staleBatchSize = 200

type cartService struct {
	repo *repository.Repository
	tx   txRunner
	bus  EventBus
	log  *zap.Logger
	now  func() time.Time
}

func NewCartService(repo *repository.Repository, bus EventBus, log *zap.Logger, retry RetryOptions) *cartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &cartService{
		repo: repo,
		tx:   newTxRunner(repo, retry, log),
		bus:  bus,
		log:  log,
		now:  time.Now,
	}
}

func (s *cartService) publish(ctx context.Context, e CartEvent) {
	if s.bus == nil {
		return
	}
	e.OccurredAt = s.now().UTC()
	if err := s.bus.PublishCartEvent(ctx, e); err != nil {
		s.log.Warn("failed to publish cart event",
			zap.String("type", string(e.Type)),
			zap.String("user_id", e.UserID.String()),
			zap.Error(err),
		)
	}
}

func (s *cartService) AddToCart(ctx context.Context, who Identity, productID uuid.UUID, qty int32) (*models.CartItem, error) {
	if err := who.require(); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	var (
		item      *models.CartItem
		stockLeft int32
	)
	err := s.tx.run(ctx, "add to cart", func(tx *repository.Repository) error {
		inv, err := tx.Inventories.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if inv == nil {
			return ErrProductNotFound
		}

		p, err := tx.Products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrProductNotFound
		}
		if !p.IsActive {
			return ErrInactiveProduct
		}
		if inv.StockQuantity < qty {
			return ErrInsufficientStock
		}

		newQty := int64(qty)
		existing, err := tx.CartItems.Get(ctx, who.UserID, productID)
		if err != nil {
			return err
		}
		if existing != nil {
			newQty += int64(existing.Quantity)
		}
		if newQty > math.MaxInt32 {
			return ErrQuantityTooLarge
		}

		if stockLeft, err = tx.Inventories.Adjust(ctx, productID, -qty); err != nil {
			return stockErr(err)
		}
		item, err = tx.CartItems.Upsert(ctx, who.UserID, productID, int32(newQty))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item added to cart",
		zap.String("user_id", who.UserID.String()),
		zap.String("product_id", productID.String()),
		zap.Int32("qty", qty),
		zap.Int32("cart_qty", item.Quantity),
		zap.Int32("stock_left", stockLeft),
	)
	s.publish(ctx, CartEvent{
		Type:      EventItemAdded,
		UserID:    who.UserID,
		ItemID:    &item.ID,
		ProductID: &productID,
		Quantity:  item.Quantity,
		Delta:     int64(qty),
		StockLeft: &stockLeft,
	})
	return item, nil
}

// lockOwnedItem блокирует строку склада товара позиции и перечитывает
// позицию уже под блокировкой.
func lockOwnedItem(ctx context.Context, tx *repository.Repository, who Identity, itemID uuid.UUID) (*models.CartItem, *models.Inventory, error) {
	it, err := tx.CartItems.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if it == nil || it.UserID != who.UserID {
		return nil, nil, ErrCartItemNotFound
	}

	inv, err := tx.Inventories.GetForUpdate(ctx, it.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, ErrProductNotFound
	}

	it, err = tx.CartItems.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if it == nil || it.UserID != who.UserID {
		return nil, nil, ErrCartItemNotFound
	}
	return it, inv, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, who Identity, itemID uuid.UUID, newQty int32) (*models.CartItem, error) {
	if err := who.require(); err != nil {
		return nil, err
	}
	if newQty <= 0 {
		return nil, s.RemoveFromCart(ctx, who, itemID)
	}

	var (
		item      *models.CartItem
		delta     int32
		stockLeft int32
	)
	err := s.tx.run(ctx, "update cart item", func(tx *repository.Repository) error {
		it, inv, err := lockOwnedItem(ctx, tx, who, itemID)
		if err != nil {
			return err
		}

		delta = newQty - it.Quantity
		stockLeft = inv.StockQuantity
		if delta == 0 {
			item = it
			return nil
		}
		if delta > 0 {
			p, err := tx.Products.GetByID(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p == nil {
				return ErrProductNotFound
			}
			if !p.IsActive {
				return ErrInactiveProduct
			}
			if inv.StockQuantity < delta {
				return ErrInsufficientStock
			}
		}

		if stockLeft, err = tx.Inventories.Adjust(ctx, it.ProductID, -delta); err != nil {
			return stockErr(err)
		}
		item, err = tx.CartItems.SetQuantity(ctx, itemID, newQty)
		return err
	})
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return item, nil
	}

	s.log.Info("cart item updated",
		zap.String("user_id", who.UserID.String()),
		zap.String("item_id", itemID.String()),
		zap.Int32("qty", newQty),
		zap.Int32("delta", delta),
	)
	s.publish(ctx, CartEvent{
		Type:      EventItemUpdated,
		UserID:    who.UserID,
		ItemID:    &item.ID,
		ProductID: &item.ProductID,
		Quantity:  item.Quantity,
		Delta:     int64(delta),
		StockLeft: &stockLeft,
	})
	return item, nil
}

func (s *cartService) RemoveFromCart(ctx context.Context, who Identity, itemID uuid.UUID) error {
	if err := who.require(); err != nil {
		return err
	}

	var (
		removed   *models.CartItem
		stockLeft int32
	)
	err := s.tx.run(ctx, "remove cart item", func(tx *repository.Repository) error {
		it, _, err := lockOwnedItem(ctx, tx, who, itemID)
		if err != nil {
			return err
		}
		if stockLeft, err = tx.Inventories.Adjust(ctx, it.ProductID, it.Quantity); err != nil {
			return stockErr(err)
		}
		ok, err := tx.CartItems.Delete(ctx, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartItemNotFound
		}
		removed = it
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("cart item removed",
		zap.String("user_id", who.UserID.String()),
		zap.String("item_id", itemID.String()),
		zap.Int32("released", removed.Quantity),
	)
	s.publish(ctx, CartEvent{
		Type:      EventItemRemoved,
		UserID:    who.UserID,
		ItemID:    &removed.ID,
		ProductID: &removed.ProductID,
		Delta:     -int64(removed.Quantity),
		StockLeft: &stockLeft,
	})
	return nil
}

// clearInTx возвращает на склад все позиции пользователя и удаляет их.
// Строки склада блокируются по возрастанию product_id.
// При onlyIfStaleBefore != nil корзина, изменённая после этой отметки, не трогается.
func clearInTx(ctx context.Context, tx *repository.Repository, userID uuid.UUID, onlyIfStaleBefore *time.Time) ([]models.CartItem, error) {
	items, err := tx.CartItems.ListByUser(ctx, userID)
	if err != nil || len(items) == 0 {
		return nil, err
	}

	// Позиции по ещё не заблокированным товарам могут меняться параллельно,
	// поэтому блокируем, пока набор товаров корзины не перестанет расти.
	locked := make(map[uuid.UUID]struct{}, len(items))
	for {
		fresh := false
		for _, it := range items {
			if _, ok := locked[it.ProductID]; !ok {
				locked[it.ProductID] = struct{}{}
				fresh = true
			}
		}
		if !fresh {
			break
		}

		ids := make([]uuid.UUID, 0, len(locked))
		for id := range locked {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
		if _, err := tx.Inventories.LockMany(ctx, ids); err != nil {
			return nil, err
		}

		// перечитываем под блокировкой: набор мог измениться
		if items, err = tx.CartItems.ListByUser(ctx, userID); err != nil || len(items) == 0 {
			return nil, err
		}
	}

	if onlyIfStaleBefore != nil {
		for _, it := range items {
			if !it.UpdatedAt.Before(*onlyIfStaleBefore) {
				return nil, nil
			}
		}
	}

	itemIDs := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if _, err := tx.Inventories.Adjust(ctx, it.ProductID, it.Quantity); err != nil {
			return nil, stockErr(err)
		}
		itemIDs = append(itemIDs, it.ID)
	}
	n, err := tx.CartItems.DeleteItems(ctx, userID, itemIDs)
	if err != nil {
		return nil, err
	}
	if n != int64(len(itemIDs)) {
		// позиция исчезла под блокировкой склада: повторяем транзакцию
		return nil, repository.ErrConflict
	}
	return items, nil
}

func (s *cartService) ClearCart(ctx context.Context, who Identity) (int, error) {
	if err := who.require(); err != nil {
		return 0, err
	}

	var released []models.CartItem
	err := s.tx.run(ctx, "clear cart", func(tx *repository.Repository) error {
		var err error
		released, err = clearInTx(ctx, tx, who.UserID, nil)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(released) == 0 {
		return 0, nil
	}

	s.log.Info("cart cleared",
		zap.String("user_id", who.UserID.String()),
		zap.Int("items", len(released)),
	)
	s.publish(ctx, CartEvent{
		Type:   EventCleared,
		UserID: who.UserID,
		Items:  len(released),
		Delta:  -sumQuantity(released),
	})
	return len(released), nil
}

func (s *cartService) ReleaseStaleCarts(ctx context.Context, cutoff time.Time) (ReleaseResult, error) {
	var res ReleaseResult

	users, err := s.repo.CartItems.ListStaleUsers(ctx, cutoff, staleBatchSize)
	if err != nil {
		return res, err
	}

	var firstErr error
	for _, uid := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var released []models.CartItem
		err := s.tx.run(ctx, "release stale cart", func(tx *repository.Repository) error {
			var err error
			released, err = clearInTx(ctx, tx, uid, &cutoff)
			return err
		})
		if err != nil {
			s.log.Error("failed to release stale cart", zap.String("user_id", uid.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(released) == 0 {
			continue
		}

		res.Users++
		res.Items += len(released)
		s.publish(ctx, CartEvent{
			Type:   EventReleased,
			UserID: uid,
			Items:  len(released),
			Delta:  -sumQuantity(released),
		})
	}

	if res.Users > 0 {
		s.log.Info("stale carts released",
			zap.Int("users", res.Users),
			zap.Int("items", res.Items),
			zap.Time("cutoff", cutoff),
		)
	}
	return res, firstErr
}

// sumQuantity считает в int64: сумма по нескольким позициям может не влезть в int32.
func sumQuantity(items []models.CartItem) int64 {
	var n int64
	for _, it := range items {
		n += int64(it.Quantity)
	}
	return n
}

func (s *cartService) GetCart(ctx context.Context, who Identity) (*Cart, error) {
	if err := who.require(); err != nil {
		return nil, err
	}

	items, err := s.repo.CartItems.ListByUser(ctx, who.UserID)
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
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	cart := &Cart{
		UserID:     who.UserID,
		Items:      make([]CartLine, 0, len(items)),
		TotalPrice: decimal.Zero,
	}
	for _, it := range items {
		p := byID[it.ProductID]
		line := CartLine{
			ItemID:      it.ID,
			ProductID:   it.ProductID,
			ProductName: p.Name,
			SKU:         p.SKU,
			ImageURL:    p.ImageURL,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
			LineTotal:   p.Price.Mul(decimal.NewFromInt32(it.Quantity)),
			UpdatedAt:   it.UpdatedAt,
		}
		cart.Items = append(cart.Items, line)
		cart.TotalItems += int64(it.Quantity)
		cart.TotalPrice = cart.TotalPrice.Add(line.LineTotal)
	}
	return cart, nil
}

func (s *cartService) GetTotalPrice(ctx context.Context, who Identity) (decimal.Decimal, error) {
	cart, err := s.GetCart(ctx, who)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.TotalPrice, nil
}

func (s *cartService) GetTotalItems(ctx context.Context, who Identity) (int64, error) {
	if err := who.require(); err != nil {
		return 0, err
	}
	items, err := s.repo.CartItems.ListByUser(ctx, who.UserID)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, it := range items {
		n += int64(it.Quantity)
	}
	return n, nil
}
