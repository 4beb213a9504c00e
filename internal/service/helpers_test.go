package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
)

// recordingCache is an in-process ProductCache that remembers invalidations.
type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]domain.Product
	hits        int
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]domain.Product{}}
}

func (c *recordingCache) Get(_ context.Context, barcode string) (*domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[barcode]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &p, true, nil
}

func (c *recordingCache) Set(_ context.Context, product *domain.Product, ttl time.Duration) error {
	if ttl <= 0 || product == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[product.Barcode] = *product
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, barcodes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range barcodes {
		delete(c.entries, code)
		c.invalidated = append(c.invalidated, code)
	}
	return nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
