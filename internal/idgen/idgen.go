// Package idgen issues product barcodes, sale identifiers and opaque ids.
package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBarcodePrefix = "IM001VP"
	SaleIDTag            = "SALE"
)

// Counter atomically increments the named sequence and returns the new value.
type Counter interface {
	IncrementAndGet(ctx context.Context, name string) (int64, error)
}

type SaleCounter interface {
	CountSales(ctx context.Context) (int, error)
}

type Generator struct {
	counters Counter
	sales    SaleCounter
	now      func() time.Time
}

func New(counters Counter, sales SaleCounter) *Generator {
	return &Generator{
		counters: counters,
		sales:    sales,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for sale identifiers.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	if now != nil {
		g.now = now
	}
	return g
}

// NextBarcode returns prefix followed by the next value of the prefix's
// counter, zero padded to four digits. Nothing is issued if the counter
// cannot be advanced.
func (g *Generator) NextBarcode(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultBarcodePrefix
	}
	seq, err := g.counters.IncrementAndGet(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("advance barcode counter %s: %w", prefix, err)
	}
	return FormatBarcode(prefix, seq), nil
}

// NextSaleID returns SALE-<unix millis>-<sales so far + 1>. Uniqueness is
// best effort; storage rejects a repeated id.
func (g *Generator) NextSaleID(ctx context.Context) (string, error) {
	count, err := g.sales.CountSales(ctx)
	if err != nil {
		return "", fmt.Errorf("count sales: %w", err)
	}
	return FormatSaleID(g.now(), count+1), nil
}

func FormatBarcode(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

func FormatSaleID(at time.Time, seq int) string {
	return fmt.Sprintf("%s-%d-%d", SaleIDTag, at.UnixMilli(), seq)
}

// NewID returns a random opaque identifier for catalog entities.
func NewID() string {
	return uuid.NewString()
}
