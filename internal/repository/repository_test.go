package repository_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cart-service/internal/migrate"
	"cart-service/internal/models"
	"cart-service/internal/repository"
	"cart-service/pkg/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Один и тот же набор проверок гоняем на памяти и на Postgres:
// in-memory хранилище должно вести себя так же, как SQL.
func forEachBackend(t *testing.T, fn func(t *testing.T, repo *repository.Repository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, repository.NewMemory().Repository)
	})
	t.Run("postgres", func(t *testing.T) {
		if testing.Short() {
			t.Skip("short mode")
		}
		db := testutil.SetupTestPostgres(t)
		if err := migrate.MigrateCartDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		fn(t, repository.New(db))
	})
}

func newProduct(t *testing.T, repo *repository.Repository, sku string, price string, stock int32) *models.Product {
	t.Helper()
	ctx := context.Background()
	p := &models.Product{SKU: sku, Name: "Product " + sku, Price: decimal.RequireFromString(price), IsActive: true}
	if err := repo.Products.Create(ctx, p); err != nil {
		t.Fatalf("Create product: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Fatalf("Create did not assign id")
	}
	if err := repo.Inventories.Create(ctx, p.ID, stock); err != nil {
		t.Fatalf("Create inventory: %v", err)
	}
	return p
}

func TestProductRepo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		p := newProduct(t, repo, "SKU-001", "10.00", 1)

		got, err := repo.Products.GetByID(ctx, p.ID)
		if err != nil || got == nil || got.SKU != "SKU-001" {
			t.Fatalf("GetByID: %+v, %v", got, err)
		}
		if missing, err := repo.Products.GetByID(ctx, uuid.New()); err != nil || missing != nil {
			t.Fatalf("GetByID missing: %+v, %v", missing, err)
		}

		bySKU, err := repo.Products.GetBySKU(ctx, "sku-001")
		if err != nil || bySKU == nil || bySKU.ID != p.ID {
			t.Fatalf("GetBySKU case-insensitive: %+v, %v", bySKU, err)
		}

		dup := &models.Product{SKU: "sku-001", Name: "dup", Price: decimal.NewFromInt(1), IsActive: true}
		if err := repo.Products.Create(ctx, dup); !errors.Is(err, repository.ErrDuplicate) {
			t.Fatalf("duplicate sku: want ErrDuplicate, got %v", err)
		}

		if err := repo.Products.UpdateFields(ctx, p.ID, map[string]any{
			"name":      "Renamed",
			"price":     decimal.RequireFromString("12.50"),
			"is_active": false,
		}); err != nil {
			t.Fatalf("UpdateFields: %v", err)
		}
		got, _ = repo.Products.GetByID(ctx, p.ID)
		if got.Name != "Renamed" || !got.Price.Equal(decimal.RequireFromString("12.50")) || got.IsActive {
			t.Fatalf("UpdateFields mismatch: %+v", got)
		}
		if err := repo.Products.UpdateFields(ctx, uuid.New(), map[string]any{"name": "x"}); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("UpdateFields missing: want ErrNotFound, got %v", err)
		}

		batch, err := repo.Products.BatchGetByIDs(ctx, []uuid.UUID{p.ID, uuid.New()})
		if err != nil || len(batch) != 1 {
			t.Fatalf("BatchGetByIDs: %d, %v", len(batch), err)
		}

		ok, err := repo.Products.Delete(ctx, p.ID)
		if err != nil || !ok {
			t.Fatalf("Delete: %v, %v", ok, err)
		}
		if inv, _ := repo.Inventories.Get(ctx, p.ID); inv != nil {
			t.Fatalf("inventory row must go with the product")
		}
	})
}

func TestProductRepo_List(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		cat := &models.Category{Name: "Books"}
		if err := repo.Categories.Create(ctx, cat); err != nil {
			t.Fatalf("Create category: %v", err)
		}

		a := newProduct(t, repo, "A", "30.00", 1)
		b := newProduct(t, repo, "B", "10.00", 1)
		c := newProduct(t, repo, "C", "20.00", 1)
		_ = repo.Products.UpdateFields(ctx, a.ID, map[string]any{"category_id": cat.ID, "description": "hardcover edition"})
		_ = repo.Products.UpdateFields(ctx, c.ID, map[string]any{"category_id": cat.ID, "is_active": false})

		active := true
		list, total, err := repo.Products.List(ctx, repository.ProductListFilter{OnlyActive: &active, Sort: repository.SortPriceAsc})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if total != 2 || len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
			t.Fatalf("List active by price: total=%d %+v", total, list)
		}

		list, total, _ = repo.Products.List(ctx, repository.ProductListFilter{CategoryID: &cat.ID, Sort: repository.SortPriceDesc})
		if total != 2 || list[0].ID != a.ID || list[1].ID != c.ID {
			t.Fatalf("List by category: total=%d %+v", total, list)
		}

		list, total, _ = repo.Products.List(ctx, repository.ProductListFilter{Query: "HARDCOVER"})
		if total != 1 || list[0].ID != a.ID {
			t.Fatalf("List query: total=%d %+v", total, list)
		}

		min, max := decimal.RequireFromString("15"), decimal.RequireFromString("25")
		list, total, _ = repo.Products.List(ctx, repository.ProductListFilter{MinPrice: &min, MaxPrice: &max})
		if total != 1 || list[0].ID != c.ID {
			t.Fatalf("List price range: total=%d %+v", total, list)
		}

		list, total, _ = repo.Products.List(ctx, repository.ProductListFilter{Sort: repository.SortName, Limit: 1, Offset: 1})
		if total != 3 || len(list) != 1 || list[0].ID != b.ID {
			t.Fatalf("List page: total=%d %+v", total, list)
		}

		counts, err := repo.Products.CountByCategory(ctx)
		if err != nil || len(counts) != 1 || counts[0].CategoryID != cat.ID || counts[0].Products != 2 {
			t.Fatalf("CountByCategory: %+v, %v", counts, err)
		}
	})
}

func TestCategoryRepo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		for _, name := range []string{"Toys", "Garden"} {
			if err := repo.Categories.Create(ctx, &models.Category{Name: name}); err != nil {
				t.Fatalf("Create %s: %v", name, err)
			}
		}
		if err := repo.Categories.Create(ctx, &models.Category{Name: "toys"}); !errors.Is(err, repository.ErrDuplicate) {
			t.Fatalf("duplicate name: want ErrDuplicate, got %v", err)
		}

		list, err := repo.Categories.List(ctx)
		if err != nil || len(list) != 2 || list[0].Name != "Garden" {
			t.Fatalf("List: %+v, %v", list, err)
		}
		got, err := repo.Categories.GetByName(ctx, "TOYS")
		if err != nil || got == nil || got.Name != "Toys" {
			t.Fatalf("GetByName: %+v, %v", got, err)
		}
		if n, _ := repo.Categories.Count(ctx); n != 2 {
			t.Fatalf("Count: %d", n)
		}
	})
}

func TestInventoryRepo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		p := newProduct(t, repo, "INV", "1.00", 5)

		left, err := repo.Inventories.Adjust(ctx, p.ID, -3)
		if err != nil || left != 2 {
			t.Fatalf("Adjust -3: %d, %v", left, err)
		}
		left, err = repo.Inventories.Adjust(ctx, p.ID, -3)
		if !errors.Is(err, repository.ErrNegativeStock) || left != 2 {
			t.Fatalf("Adjust below zero: %d, %v", left, err)
		}
		if _, err := repo.Inventories.Adjust(ctx, uuid.New(), 1); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("Adjust missing: %v", err)
		}

		big := newProduct(t, repo, "INV-MAX", "1.00", math.MaxInt32)
		left, err = repo.Inventories.Adjust(ctx, big.ID, 1)
		if !errors.Is(err, repository.ErrStockOverflow) || left != math.MaxInt32 {
			t.Fatalf("Adjust past MaxInt32: %d, %v", left, err)
		}
		left, err = repo.Inventories.Adjust(ctx, big.ID, -1)
		if err != nil || left != math.MaxInt32-1 {
			t.Fatalf("Adjust -1 from max: %d, %v", left, err)
		}
		left, err = repo.Inventories.Adjust(ctx, big.ID, 1)
		if err != nil || left != math.MaxInt32 {
			t.Fatalf("Adjust back to max: %d, %v", left, err)
		}

		if err := repo.Inventories.Set(ctx, p.ID, 9); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := repo.Inventories.Set(ctx, uuid.New(), 1); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("Set missing: %v", err)
		}

		q := newProduct(t, repo, "INV2", "1.00", 4)
		stock, err := repo.Inventories.ListByProducts(ctx, []uuid.UUID{p.ID, q.ID})
		if err != nil || stock[p.ID] != 9 || stock[q.ID] != 4 {
			t.Fatalf("ListByProducts: %+v, %v", stock, err)
		}

		err = repo.WithTx(ctx, func(tx *repository.Repository) error {
			rows, err := tx.Inventories.LockMany(ctx, []uuid.UUID{q.ID, p.ID})
			if err != nil {
				return err
			}
			if len(rows) != 2 {
				t.Errorf("LockMany: %d rows", len(rows))
			}
			inv, err := tx.Inventories.GetForUpdate(ctx, p.ID)
			if err != nil || inv == nil || inv.StockQuantity != 9 {
				t.Errorf("GetForUpdate: %+v, %v", inv, err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithTx: %v", err)
		}
	})
}

func TestCartItemRepo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		user := uuid.New()
		p := newProduct(t, repo, "CART-1", "2.00", 10)
		q := newProduct(t, repo, "CART-2", "3.00", 10)

		it, err := repo.CartItems.Upsert(ctx, user, p.ID, 2)
		if err != nil || it.Quantity != 2 || it.ID == uuid.Nil {
			t.Fatalf("Upsert: %+v, %v", it, err)
		}
		again, err := repo.CartItems.Upsert(ctx, user, p.ID, 5)
		if err != nil || again.ID != it.ID || again.Quantity != 5 {
			t.Fatalf("Upsert same pair must keep one row: %+v, %v", again, err)
		}
		if _, err := repo.CartItems.Upsert(ctx, user, q.ID, 1); err != nil {
			t.Fatalf("Upsert second: %v", err)
		}
		if _, err := repo.CartItems.Upsert(ctx, user, uuid.New(), 1); !errors.Is(err, repository.ErrReferenced) {
			t.Fatalf("Upsert unknown product: want ErrReferenced, got %v", err)
		}
		if _, err := repo.CartItems.Upsert(ctx, user, q.ID, 0); !errors.Is(err, repository.ErrCheckViolation) {
			t.Fatalf("Upsert zero qty: want ErrCheckViolation, got %v", err)
		}

		list, err := repo.CartItems.ListByUser(ctx, user)
		if err != nil || len(list) != 2 || list[0].ProductID != p.ID {
			t.Fatalf("ListByUser: %+v, %v", list, err)
		}

		set, err := repo.CartItems.SetQuantity(ctx, it.ID, 7)
		if err != nil || set.Quantity != 7 {
			t.Fatalf("SetQuantity: %+v, %v", set, err)
		}
		byID, err := repo.CartItems.GetByID(ctx, it.ID)
		if err != nil || byID == nil || byID.Quantity != 7 {
			t.Fatalf("GetByID: %+v, %v", byID, err)
		}
		pair, err := repo.CartItems.Get(ctx, user, q.ID)
		if err != nil || pair == nil || pair.Quantity != 1 {
			t.Fatalf("Get: %+v, %v", pair, err)
		}

		if n, _ := repo.CartItems.CountByProduct(ctx, p.ID); n != 1 {
			t.Fatalf("CountByProduct: %d", n)
		}
		other := uuid.New()
		if _, err := repo.CartItems.Upsert(ctx, other, p.ID, 4); err != nil {
			t.Fatalf("Upsert other user: %v", err)
		}
		if n, err := repo.CartItems.SumByProduct(ctx, p.ID); err != nil || n != 11 {
			t.Fatalf("SumByProduct: %d, %v", n, err)
		}
		if n, err := repo.CartItems.SumByProduct(ctx, uuid.New()); err != nil || n != 0 {
			t.Fatalf("SumByProduct unknown: %d, %v", n, err)
		}
		otherList, _ := repo.CartItems.ListByUser(ctx, other)
		if n, err := repo.CartItems.DeleteItems(ctx, other, []uuid.UUID{otherList[0].ID}); err != nil || n != 1 {
			t.Fatalf("DeleteItems other: %d, %v", n, err)
		}
		if _, err := repo.Products.Delete(ctx, p.ID); !errors.Is(err, repository.ErrReferenced) {
			t.Fatalf("Delete product held in cart: want ErrReferenced, got %v", err)
		}

		ok, err := repo.CartItems.Delete(ctx, it.ID)
		if err != nil || !ok {
			t.Fatalf("Delete: %v, %v", ok, err)
		}
		ok, _ = repo.CartItems.Delete(ctx, it.ID)
		if ok {
			t.Fatalf("Delete twice must report false")
		}

		pair, _ = repo.CartItems.Get(ctx, user, q.ID)
		// чужой пользователь не может удалить позицию
		if n, err := repo.CartItems.DeleteItems(ctx, uuid.New(), []uuid.UUID{pair.ID}); err != nil || n != 0 {
			t.Fatalf("DeleteItems foreign: %d, %v", n, err)
		}
		// уже удалённая позиция не считается
		n, err := repo.CartItems.DeleteItems(ctx, user, []uuid.UUID{pair.ID, it.ID})
		if err != nil || n != 1 {
			t.Fatalf("DeleteItems: %d, %v", n, err)
		}
		if n, err := repo.CartItems.DeleteItems(ctx, user, nil); err != nil || n != 0 {
			t.Fatalf("DeleteItems empty: %d, %v", n, err)
		}
	})
}

func TestCartItemRepo_ListStaleUsers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		p := newProduct(t, repo, "STALE", "1.00", 10)
		u1, u2 := uuid.New(), uuid.New()
		for _, u := range []uuid.UUID{u1, u2} {
			if _, err := repo.CartItems.Upsert(ctx, u, p.ID, 1); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
		}

		users, err := repo.CartItems.ListStaleUsers(ctx, time.Now().Add(-time.Hour), 10)
		if err != nil || len(users) != 0 {
			t.Fatalf("nothing is stale yet: %v, %v", users, err)
		}
		users, err = repo.CartItems.ListStaleUsers(ctx, time.Now().Add(time.Hour), 10)
		if err != nil || len(users) != 2 {
			t.Fatalf("all stale: %v, %v", users, err)
		}
		users, _ = repo.CartItems.ListStaleUsers(ctx, time.Now().Add(time.Hour), 1)
		if len(users) != 1 {
			t.Fatalf("limit: %v", users)
		}
	})
}

func TestWishlistRepo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		user := uuid.New()
		p := newProduct(t, repo, "WISH", "1.00", 0)

		added, err := repo.Wishlist.Add(ctx, user, p.ID)
		if err != nil || !added {
			t.Fatalf("Add: %v, %v", added, err)
		}
		added, err = repo.Wishlist.Add(ctx, user, p.ID)
		if err != nil || added {
			t.Fatalf("Add twice: %v, %v", added, err)
		}
		if n, _ := repo.Wishlist.CountByUser(ctx, user); n != 1 {
			t.Fatalf("CountByUser: %d", n)
		}
		list, err := repo.Wishlist.ListByUser(ctx, user)
		if err != nil || len(list) != 1 || list[0].ProductID != p.ID {
			t.Fatalf("ListByUser: %+v, %v", list, err)
		}
		removed, err := repo.Wishlist.Remove(ctx, user, p.ID)
		if err != nil || !removed {
			t.Fatalf("Remove: %v, %v", removed, err)
		}
	})
}

func TestWithTx_Rollback(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *repository.Repository) {
		ctx := context.Background()
		p := newProduct(t, repo, "TX", "1.00", 5)
		boom := errors.New("boom")

		err := repo.WithTx(ctx, func(tx *repository.Repository) error {
			if _, err := tx.Inventories.Adjust(ctx, p.ID, -5); err != nil {
				return err
			}
			// вложенный WithTx: та же транзакция
			return tx.WithTx(ctx, func(inner *repository.Repository) error {
				if _, err := inner.CartItems.Upsert(ctx, uuid.New(), p.ID, 5); err != nil {
					return err
				}
				return boom
			})
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTx: want boom, got %v", err)
		}

		inv, _ := repo.Inventories.Get(ctx, p.ID)
		if inv.StockQuantity != 5 {
			t.Fatalf("rollback: stock=%d", inv.StockQuantity)
		}
		if n, _ := repo.CartItems.CountByProduct(ctx, p.ID); n != 0 {
			t.Fatalf("rollback: %d cart rows", n)
		}
	})
}
