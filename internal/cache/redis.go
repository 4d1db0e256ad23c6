package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cart-service/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisClient struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisClient(addr, password string, db int, log *zap.Logger) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connected successfully", zap.String("addr", addr))

	return &RedisClient{
		client: rdb,
		log:    log,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

// ProductCache хранит карточки товаров в JSON под ключом product:<id>.
// Остатки сюда не попадают: они читаются из inventories всегда.
type ProductCache struct {
	rdb *RedisClient
	ttl time.Duration
}

func NewProductCache(rdb *RedisClient, ttl time.Duration) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func productKey(id uuid.UUID) string {
	return fmt.Sprintf("product:%s", id)
}

func (c *ProductCache) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	data, err := c.rdb.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		// битая запись: считаем промахом и убираем
		c.rdb.log.Warn("corrupted product cache entry", zap.String("product_id", id.String()), zap.Error(err))
		_ = c.rdb.client.Del(ctx, productKey(id)).Err()
		return nil, nil
	}
	return &p, nil
}

func (c *ProductCache) SetProduct(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.client.Set(ctx, productKey(p.ID), data, c.ttl).Err()
}

func (c *ProductCache) InvalidateProduct(ctx context.Context, id uuid.UUID) error {
	return c.rdb.client.Del(ctx, productKey(id)).Err()
}
