package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
)

// fakeRedis implements the handful of commands the cache issues.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisProductCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := NewRedisProductCache(rdb)

	_, ok, err := c.Get(ctx, "IM001VP0001")
	require.NoError(t, err)
	assert.False(t, ok)

	product := &domain.Product{ID: "p-1", Name: "Cotton Shirt", Barcode: "IM001VP0001", Price: decimal.RequireFromString("24.50"), Quantity: 3}
	require.NoError(t, c.Set(ctx, product, time.Minute))
	assert.Equal(t, time.Minute, rdb.ttls["product:barcode:IM001VP0001"])

	cached, ok, err := c.Get(ctx, "IM001VP0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Cotton Shirt", cached.Name)
	assert.True(t, product.Price.Equal(cached.Price))

	require.NoError(t, c.Invalidate(ctx, "IM001VP0001", ""))
	_, ok, err = c.Get(ctx, "IM001VP0001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisProductCacheSkipsZeroTTL(t *testing.T) {
	rdb := newFakeRedis()
	c := NewRedisProductCache(rdb)

	require.NoError(t, c.Set(context.Background(), &domain.Product{Barcode: "X"}, 0))
	assert.Empty(t, rdb.data)
}

func TestNoopProductCache(t *testing.T) {
	var c ProductCache = NoopProductCache{}
	_, ok, err := c.Get(context.Background(), "X")
	assert.NoError(t, err)
	assert.False(t, ok)
}
