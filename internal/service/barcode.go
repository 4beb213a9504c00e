package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

// ResolveBarcode finds the product registered under code. An unknown code is
// reported as ErrNotFound. Concurrent lookups of one code share a single
// store round trip.
func (s *Service) ResolveBarcode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("barcode is required")
	}

	cached, ok, err := s.cache.Get(ctx, code)
	if err != nil {
		s.log.Warn(ctx, "product cache read failed", err, map[string]any{"barcode": code})
	} else if ok {
		return cached, nil
	}

	// The shared lookup must outlive any single caller; each caller still
	// stops waiting when its own context ends.
	lookupCtx := context.WithoutCancel(ctx)
	ch := s.lookups.DoChan(code, func() (any, error) {
		return s.repo.FindProductByBarcode(lookupCtx, code)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: barcode %s", store.ErrNotFound, code)
		}
		return nil, storageErr(err)
	}

	product := *v.(*domain.Product)
	if err := s.cache.Set(ctx, &product, s.cacheTTL); err != nil {
		s.log.Warn(ctx, "product cache write failed", err, map[string]any{"barcode": code})
	}
	return &product, nil
}

// ScanBarcode resolves a scanned code into the shape terminals render. A
// product at or below its minimum quantity raises the low-stock signal but is
// still returned.
func (s *Service) ScanBarcode(ctx context.Context, code string) (domain.ScanResult, error) {
	product, err := s.ResolveBarcode(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.metrics.Scan("not_found")
		case errors.Is(err, store.ErrInvalidInput):
			s.metrics.Scan("invalid")
		default:
			s.metrics.Scan("error")
		}
		return domain.ScanResult{}, err
	}
	s.metrics.Scan("found")

	lowStock := product.IsLowStock()
	if lowStock {
		s.metrics.LowStockSignal()
		s.log.Warn(ctx, "low stock", nil, map[string]any{
			"product_id":   product.ID,
			"barcode":      product.Barcode,
			"quantity":     product.Quantity,
			"min_quantity": product.MinQuantity,
		})
	}

	return domain.ScanResult{
		Product: domain.ScannedProduct{
			ID:          product.ID,
			Name:        product.Name,
			Description: product.Description,
			Category:    product.Category,
			Price:       product.Price,
			Barcode:     product.Barcode,
			Quantity:    product.Quantity,
		},
		Price:    product.Price,
		Barcode:  product.Barcode,
		LowStock: lowStock,
	}, nil
}
