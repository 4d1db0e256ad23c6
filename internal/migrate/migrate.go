package migrate

import (
	"context"

	"cart-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto, pg_trgm
	CreateChecks           bool // CHECK-constraint'ы
	CreateIndexes          bool // индексы и UNIQUE
	CreateFKsViaSQL        bool // FK через Exec после AutoMigrate
	CreateUpdatedAtTrigger bool // триггеры updated_at
	CreateSearchIndexes    bool // GIN trgm для поиска по name
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
		CreateSearchIndexes:    true,
	}
}

type step struct {
	name string
	sql  string
}

func run(ctx context.Context, db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.WithContext(ctx).Exec(s.sql).Error; err != nil {
			log.Error("migration step failed", zap.String("step", s.name), zap.Error(err))
			return err
		}
	}
	return nil
}

func MigrateCartDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы каталога и корзин")

	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		if err := run(ctx, db, log, []step{
			{"pgcrypto", `CREATE EXTENSION IF NOT EXISTS pgcrypto`},
			{"pg_trgm", `CREATE EXTENSION IF NOT EXISTS pg_trgm`},
		}); err != nil {
			return err
		}
		log.Info("Расширения созданы")
	}

	log.Info("Создание таблиц: categories, products, inventories, cart_items, wishlist_items")
	if err := db.WithContext(ctx).AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Inventory{},
		&models.CartItem{},
		&models.WishlistItem{},
	); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}
	log.Info("Таблицы созданы")

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := run(ctx, db, log, []step{{"updated_at triggers", `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_inventories_updated ON inventories;
CREATE TRIGGER trg_inventories_updated BEFORE UPDATE ON inventories
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_cart_items_updated ON cart_items;
CREATE TRIGGER trg_cart_items_updated BEFORE UPDATE ON cart_items
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`}}); err != nil {
			return err
		}
		log.Info("Триггеры созданы")
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := run(ctx, db, log, []step{
			{"chk products.price", `
ALTER TABLE products
	DROP CONSTRAINT IF EXISTS chk_products_price_non_negative,
	ADD CONSTRAINT chk_products_price_non_negative
	CHECK (price >= 0);`},
			// остаток никогда не уходит в минус, даже при гонке мимо сервиса
			{"chk inventories.stock", `
ALTER TABLE inventories
	DROP CONSTRAINT IF EXISTS chk_inventories_stock_non_negative,
	ADD CONSTRAINT chk_inventories_stock_non_negative
	CHECK (stock_quantity >= 0);`},
			{"chk cart_items.quantity", `
ALTER TABLE cart_items
	DROP CONSTRAINT IF EXISTS chk_cart_items_quantity_gt_zero,
	ADD CONSTRAINT chk_cart_items_quantity_gt_zero
	CHECK (quantity > 0);`},
		}); err != nil {
			return err
		}
		log.Info("CHECK-и созданы")
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов и уникальностей")
		if err := run(ctx, db, log, []step{
			{"ux products.sku", `CREATE UNIQUE INDEX IF NOT EXISTS ux_products_sku ON products (lower(sku));`},
			{"ux categories.name", `CREATE UNIQUE INDEX IF NOT EXISTS ux_categories_name ON categories (lower(name));`},
			// одна строка корзины на пару (user, product): основа merge-on-add
			{"ux cart_items", `CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_items_user_product ON cart_items (user_id, product_id);`},
			{"ux wishlist_items", `CREATE UNIQUE INDEX IF NOT EXISTS ux_wishlist_items_user_product ON wishlist_items (user_id, product_id);`},
			{"ix products category", `CREATE INDEX IF NOT EXISTS ix_products_category_created ON products (category_id, created_at DESC);`},
			{"ix cart_items user updated", `CREATE INDEX IF NOT EXISTS ix_cart_items_user_updated ON cart_items (user_id, updated_at);`},
		}); err != nil {
			return err
		}
		log.Info("Индексы созданы")
	}

	if opt.CreateSearchIndexes {
		log.Info("Создание GIN(trgm) индексов для поиска")
		if err := run(ctx, db, log, []step{
			{"gin products.name", `CREATE INDEX IF NOT EXISTS gin_products_name_trgm ON products USING gin (name gin_trgm_ops);`},
		}); err != nil {
			return err
		}
		log.Info("GIN индексы созданы")
	}

	if opt.CreateFKsViaSQL {
		log.Info("Создание внешних ключей")
		if err := run(ctx, db, log, []step{
			{"fk products.category_id", `
ALTER TABLE products
  DROP CONSTRAINT IF EXISTS fk_products_category,
  ADD CONSTRAINT fk_products_category
    FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE SET NULL;`},
			{"fk inventories.product_id", `
ALTER TABLE inventories
  DROP CONSTRAINT IF EXISTS fk_inventories_product,
  ADD CONSTRAINT fk_inventories_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE;`},
			// товар нельзя удалить, пока он лежит в чьей-то корзине
			{"fk cart_items.product_id", `
ALTER TABLE cart_items
  DROP CONSTRAINT IF EXISTS fk_cart_items_product,
  ADD CONSTRAINT fk_cart_items_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`},
			{"fk wishlist_items.product_id", `
ALTER TABLE wishlist_items
  DROP CONSTRAINT IF EXISTS fk_wishlist_items_product,
  ADD CONSTRAINT fk_wishlist_items_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE;`},
		}); err != nil {
			return err
		}
		log.Info("Внешние ключи созданы")
	}

	log.Info("Миграция базы каталога и корзин успешно завершена")
	return nil
}
