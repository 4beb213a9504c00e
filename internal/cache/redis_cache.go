package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
)

const productKeyPrefix = "product:barcode:"

type RedisProductCache struct {
	client redis.Cmdable
}

func NewRedisProductCache(client redis.Cmdable) *RedisProductCache {
	return &RedisProductCache{client: client}
}

func productKey(barcode string) string {
	return productKeyPrefix + barcode
}

func (c *RedisProductCache) Get(ctx context.Context, barcode string) (*domain.Product, bool, error) {
	val, err := c.client.Get(ctx, productKey(barcode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product domain.Product
	if err := json.Unmarshal(val, &product); err != nil {
		return nil, false, err
	}
	return &product, true, nil
}

func (c *RedisProductCache) Set(ctx context.Context, product *domain.Product, ttl time.Duration) error {
	if product == nil || product.Barcode == "" || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(product.Barcode), payload, ttl).Err()
}

func (c *RedisProductCache) Invalidate(ctx context.Context, barcodes ...string) error {
	keys := make([]string, 0, len(barcodes))
	for _, barcode := range barcodes {
		if barcode != "" {
			keys = append(keys, productKey(barcode))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// NewRedisClient builds the shared client used by the product cache and the
// redis counter store.
func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
