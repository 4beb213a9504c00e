package cache

import (
	"context"
	"time"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
)

// ProductCache holds products keyed by barcode for the scan path.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (*domain.Product, bool, error)
	Set(ctx context.Context, product *domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context, barcodes ...string) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ *domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
