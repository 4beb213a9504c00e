package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/VishnuMK2006/invent-consolt/internal/cart"
	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/idgen"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return products, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, invalid("product id is required")
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		return domain.Product{}, storageErr(err)
	}
	return *product, nil
}

// CreateProduct registers a product under the next barcode of the configured
// prefix.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, invalid("name is required")
	}
	if req.Category == "" {
		return domain.Product{}, invalid("category is required")
	}
	if req.Price.IsNegative() {
		return domain.Product{}, invalid("price must not be negative")
	}
	if req.Quantity < 0 || req.MinQuantity < 0 {
		return domain.Product{}, invalid("quantity and min_quantity must not be negative")
	}
	reorderLevel := domain.DefaultReorderLevel
	if req.ReorderLevel != nil {
		if *req.ReorderLevel < 0 {
			return domain.Product{}, invalid("reorder_level must not be negative")
		}
		reorderLevel = *req.ReorderLevel
	}

	barcode, err := s.ids.NextBarcode(ctx, s.barcodePrefix)
	if err != nil {
		return domain.Product{}, storageErr(err)
	}
	s.metrics.BarcodeIssued()

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:           idgen.NewID(),
		Name:         req.Name,
		Barcode:      barcode,
		Description:  strings.TrimSpace(req.Description),
		Category:     req.Category,
		Price:        req.Price,
		Quantity:     req.Quantity,
		MinQuantity:  req.MinQuantity,
		ReorderLevel: reorderLevel,
		VendorID:     strings.TrimSpace(req.VendorID),
		ImageURL:     strings.TrimSpace(req.ImageURL),
	})
	if err != nil {
		return domain.Product{}, storageErr(err)
	}

	s.log.Info(ctx, "product created", map[string]any{"product_id": created.ID, "barcode": created.Barcode})
	return *created, nil
}

// UpdateProduct applies the fields present in req. The barcode never changes.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, invalid("name must not be empty")
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, invalid("category must not be empty")
		}
		updated.Category = category
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.Product{}, invalid("price must not be negative")
		}
		updated.Price = *req.Price
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.Product{}, invalid("quantity must not be negative")
		}
		updated.Quantity = *req.Quantity
	}
	if req.MinQuantity != nil {
		if *req.MinQuantity < 0 {
			return domain.Product{}, invalid("min_quantity must not be negative")
		}
		updated.MinQuantity = *req.MinQuantity
	}
	if req.ReorderLevel != nil {
		if *req.ReorderLevel < 0 {
			return domain.Product{}, invalid("reorder_level must not be negative")
		}
		updated.ReorderLevel = *req.ReorderLevel
	}
	if req.VendorID != nil {
		updated.VendorID = strings.TrimSpace(*req.VendorID)
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, storageErr(err)
	}
	s.invalidate(ctx, saved.Barcode)
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, existing.ID); err != nil {
		return storageErr(err)
	}
	s.invalidate(ctx, existing.Barcode)
	s.log.Info(ctx, "product deleted", map[string]any{"product_id": existing.ID, "barcode": existing.Barcode})
	return nil
}

// AdjustStock adds delta units, or removes them when delta is negative. A
// removal never takes stock below zero.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	if delta == 0 {
		return domain.Product{}, invalid("delta must not be zero")
	}
	if delta > cart.MaxQuantity || delta < -cart.MaxQuantity {
		return domain.Product{}, invalid("delta must be between -%d and %d", cart.MaxQuantity, cart.MaxQuantity)
	}
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if delta > 0 {
		err = s.repo.IncreaseStock(ctx, existing.ID, delta)
	} else {
		err = s.repo.DecrementStock(ctx, existing.ID, -delta)
	}
	if err != nil {
		return domain.Product{}, storageErr(err)
	}
	s.invalidate(ctx, existing.Barcode)

	updated, err := s.GetProduct(ctx, existing.ID)
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info(ctx, "stock adjusted", map[string]any{"product_id": updated.ID, "delta": delta, "quantity": updated.Quantity})
	return updated, nil
}
