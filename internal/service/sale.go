package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VishnuMK2006/invent-consolt/internal/cart"
	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/pricing"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

// pricedCart is a consolidated request resolved against the live catalog.
type pricedCart struct {
	items    []cart.Item
	products map[string]domain.Product
	lines    []domain.SaleLine
	totals   pricing.Totals
}

// CreateSale consolidates the requested items, checks every product and its
// stock, prices lines at the current catalog price and commits the stock
// decrements together with the sale. Nothing is written if any step fails.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleDetail, error) {
	buyerID := strings.TrimSpace(req.BuyerID)
	if buyerID == "" {
		return domain.SaleDetail{}, s.saleFailed(ctx, "validation", invalid("buyer_id is required"))
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = domain.SaleStatusCompleted
	}
	if !isSaleStatus(status) {
		return domain.SaleDetail{}, s.saleFailed(ctx, "validation", invalid("unknown status %q", req.Status))
	}
	items, err := toCartItems(req.Items)
	if err != nil {
		return domain.SaleDetail{}, s.saleFailed(ctx, "validation", err)
	}

	buyer, err := s.repo.GetBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleDetail{}, s.saleFailed(ctx, "validation", invalid("buyer %s does not exist", buyerID))
		}
		return domain.SaleDetail{}, s.saleFailed(ctx, "storage", storageErr(err))
	}

	adj, err := adjustments(req.DiscountPercent, req.TaxPercent, req.Shipping, req.Other)
	if err != nil {
		return domain.SaleDetail{}, s.saleFailed(ctx, "validation", err)
	}
	priced, err := s.priceCart(ctx, items, adj)
	if err != nil {
		return domain.SaleDetail{}, s.saleFailed(ctx, failureReason(err), err)
	}
	if err := checkStock(priced); err != nil {
		return domain.SaleDetail{}, s.saleFailed(ctx, "insufficient_stock", err)
	}

	totals := priced.totals.Round()
	s.checkDrift(ctx, req.Subtotal, totals.Subtotal, "subtotal")
	s.checkDrift(ctx, req.Total, totals.Total, "total")

	saleID, err := s.ids.NextSaleID(ctx)
	if err != nil {
		return domain.SaleDetail{}, s.saleFailed(ctx, "storage", storageErr(err))
	}

	saleDate := s.now().UTC()
	if req.SaleDate != nil && !req.SaleDate.IsZero() {
		saleDate = req.SaleDate.UTC()
	}

	sale := domain.Sale{
		ID:              saleID,
		BuyerID:         buyer.ID,
		Items:           priced.lines,
		Subtotal:        totals.Subtotal,
		DiscountPercent: totals.DiscountPercent,
		DiscountAmount:  totals.DiscountAmount,
		TaxPercent:      totals.TaxPercent,
		TaxAmount:       totals.TaxAmount,
		ShippingAmount:  totals.Shipping,
		OtherAmount:     totals.Other,
		TotalAmount:     totals.Total,
		Comments:        strings.TrimSpace(req.Comments),
		Status:          status,
		SaleDate:        saleDate,
	}

	saved, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		err = storageErr(err)
		return domain.SaleDetail{}, s.saleFailed(ctx, failureReason(err), err)
	}

	barcodes := make([]string, 0, len(saved.Items))
	for _, line := range saved.Items {
		barcodes = append(barcodes, line.Barcode)
	}
	s.invalidate(ctx, barcodes...)

	total, _ := saved.TotalAmount.Float64()
	s.metrics.SaleCreated(total)
	s.log.Info(ctx, "sale created", map[string]any{
		"sale_id":  saved.ID,
		"buyer_id": saved.BuyerID,
		"lines":    len(saved.Items),
		"units":    cart.TotalQuantity(priced.items),
		"total":    saved.TotalAmount.StringFixed(pricing.MoneyPlaces),
	})

	return buildSaleDetail(*saved, buyer, priced.products), nil
}

// QuoteSale prices a prospective sale without touching stock or persisting.
func (s *Service) QuoteSale(ctx context.Context, req domain.SaleQuoteRequest) (domain.SaleQuote, error) {
	items, err := toCartItems(req.Items)
	if err != nil {
		return domain.SaleQuote{}, err
	}
	adj, err := adjustments(req.DiscountPercent, req.TaxPercent, req.Shipping, req.Other)
	if err != nil {
		return domain.SaleQuote{}, err
	}
	priced, err := s.priceCart(ctx, items, adj)
	if err != nil {
		return domain.SaleQuote{}, err
	}
	if err := checkStock(priced); err != nil {
		return domain.SaleQuote{}, err
	}

	totals := priced.totals.Round()
	quote := domain.SaleQuote{
		Items:          make([]domain.SaleLineDetail, 0, len(priced.lines)),
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		TaxableAmount:  totals.TaxableAmount,
		TaxAmount:      totals.TaxAmount,
		ShippingAmount: totals.Shipping,
		OtherAmount:    totals.Other,
		TotalAmount:    totals.Total,
	}
	for _, line := range priced.lines {
		quote.Items = append(quote.Items, lineDetail(line, priced.products))
	}
	return quote, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SaleDetail{}, invalid("sale id is required")
	}

	sale, err := s.repo.FindSaleByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleDetail{}, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
		}
		return domain.SaleDetail{}, storageErr(err)
	}

	details, err := s.enrichSales(ctx, []domain.Sale{*sale})
	if err != nil {
		return domain.SaleDetail{}, err
	}
	return details[0], nil
}

// ListSales returns sales newest first by sale date.
func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.SaleDetail, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, invalid("from must be before to")
	}
	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return s.enrichSales(ctx, sales)
}

func (s *Service) priceCart(ctx context.Context, items []cart.Item, adj pricing.Adjustments) (pricedCart, error) {
	items = cart.Consolidate(items)
	for _, item := range items {
		if item.Quantity > cart.MaxQuantity {
			return pricedCart{}, invalid("product %s: total quantity must be at most %d", item.ProductID, cart.MaxQuantity)
		}
	}
	ids := cart.ProductIDs(items)

	products, err := s.repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return pricedCart{}, storageErr(err)
	}

	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return pricedCart{}, fmt.Errorf("%w: %s", store.ErrUnavailableProducts, strings.Join(missing, ", "))
	}

	lines := make([]domain.SaleLine, 0, len(items))
	priceLines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		product := products[item.ProductID]
		lines = append(lines, domain.SaleLine{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			LineTotal: pricing.LineTotal(product.Price, item.Quantity),
			Barcode:   product.Barcode,
		})
		priceLines = append(priceLines, pricing.Line{UnitPrice: product.Price, Quantity: item.Quantity})
	}

	return pricedCart{
		items:    items,
		products: products,
		lines:    lines,
		totals:   pricing.Compute(priceLines, adj),
	}, nil
}

// checkStock rejects the cart on the first line whose product cannot cover it.
func checkStock(priced pricedCart) error {
	for _, item := range priced.items {
		product := priced.products[item.ProductID]
		if product.Quantity < item.Quantity {
			return &store.StockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   item.Quantity,
				Available:   product.Quantity,
			}
		}
	}
	return nil
}

func (s *Service) checkDrift(ctx context.Context, declared *decimal.Decimal, computed decimal.Decimal, field string) {
	if declared == nil || !pricing.Drifted(*declared, computed) {
		return
	}
	s.metrics.TotalDrift()
	s.log.Warn(ctx, "client totals differ from computed totals", nil, map[string]any{
		"field":    field,
		"declared": declared.String(),
		"computed": computed.StringFixed(pricing.MoneyPlaces),
	})
}

func (s *Service) saleFailed(ctx context.Context, reason string, err error) error {
	s.metrics.SaleFailed(reason)
	if reason == "storage" {
		s.log.Error(ctx, "sale failed", err, nil)
	} else {
		s.log.Debug(ctx, "sale rejected", map[string]any{"reason": reason, "error": err.Error()})
	}
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return "validation"
	case errors.Is(err, store.ErrUnavailableProducts):
		return "unavailable_products"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrStockConflict):
		return "stock_conflict"
	case errors.Is(err, store.ErrDuplicate):
		return "duplicate"
	default:
		return "storage"
	}
}

func toCartItems(inputs []domain.SaleItemInput) ([]cart.Item, error) {
	if len(inputs) == 0 {
		return nil, invalid("at least one item is required")
	}
	items := make([]cart.Item, 0, len(inputs))
	for i, in := range inputs {
		productID := strings.TrimSpace(in.ProductID)
		if productID == "" {
			return nil, invalid("items[%d].product_id is required", i)
		}
		if in.Quantity < 0 {
			return nil, invalid("items[%d].quantity must not be negative", i)
		}
		if in.Quantity > cart.MaxQuantity {
			return nil, invalid("items[%d].quantity must be at most %d", i, cart.MaxQuantity)
		}
		items = append(items, cart.Item{ProductID: productID, Quantity: in.Quantity})
	}
	return items, nil
}

func adjustments(discountPct, taxPct, shipping, other *decimal.Decimal) (pricing.Adjustments, error) {
	adj := pricing.Adjustments{
		DiscountPercent: valueOrZero(discountPct),
		TaxPercent:      valueOrZero(taxPct),
		Shipping:        valueOrZero(shipping),
		Other:           valueOrZero(other),
	}
	if adj.TaxPercent.GreaterThan(pricing.MaxTaxPercent) {
		return adj, invalid("tax_percent must be at most %s", pricing.MaxTaxPercent.String())
	}
	return adj, nil
}

func valueOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}

func isSaleStatus(status string) bool {
	switch status {
	case domain.SaleStatusPending, domain.SaleStatusCompleted, domain.SaleStatusCancelled:
		return true
	}
	return false
}

func (s *Service) enrichSales(ctx context.Context, sales []domain.Sale) ([]domain.SaleDetail, error) {
	buyerIDs := make([]string, 0, len(sales))
	productIDs := make([]string, 0, len(sales)*2)
	seenBuyer := make(map[string]struct{}, len(sales))
	seenProduct := make(map[string]struct{}, len(sales)*2)
	for _, sale := range sales {
		if _, ok := seenBuyer[sale.BuyerID]; !ok {
			seenBuyer[sale.BuyerID] = struct{}{}
			buyerIDs = append(buyerIDs, sale.BuyerID)
		}
		for _, line := range sale.Items {
			if _, ok := seenProduct[line.ProductID]; !ok {
				seenProduct[line.ProductID] = struct{}{}
				productIDs = append(productIDs, line.ProductID)
			}
		}
	}

	buyers, err := s.repo.FindBuyersByIDs(ctx, buyerIDs)
	if err != nil {
		return nil, storageErr(err)
	}
	products, err := s.repo.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, storageErr(err)
	}

	details := make([]domain.SaleDetail, 0, len(sales))
	for _, sale := range sales {
		var buyer *domain.Buyer
		if b, ok := buyers[sale.BuyerID]; ok {
			buyer = &b
		}
		details = append(details, buildSaleDetail(sale, buyer, products))
	}
	return details, nil
}

func buildSaleDetail(sale domain.Sale, buyer *domain.Buyer, products map[string]domain.Product) domain.SaleDetail {
	summary := domain.BuyerSummary{ID: sale.BuyerID}
	if buyer != nil {
		summary.Name = buyer.Name
		summary.Phone = buyer.Phone
	}

	items := make([]domain.SaleLineDetail, 0, len(sale.Items))
	for _, line := range sale.Items {
		items = append(items, lineDetail(line, products))
	}

	return domain.SaleDetail{
		ID:              sale.ID,
		Buyer:           summary,
		Items:           items,
		Subtotal:        sale.Subtotal,
		DiscountPercent: sale.DiscountPercent,
		DiscountAmount:  sale.DiscountAmount,
		TaxPercent:      sale.TaxPercent,
		TaxAmount:       sale.TaxAmount,
		ShippingAmount:  sale.ShippingAmount,
		OtherAmount:     sale.OtherAmount,
		TotalAmount:     sale.TotalAmount,
		Comments:        sale.Comments,
		Status:          sale.Status,
		SaleDate:        sale.SaleDate.UTC().Format(time.RFC3339),
		CreatedAt:       sale.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// lineDetail prefers the line's own snapshot and fills gaps from the live
// product, which may no longer exist.
func lineDetail(line domain.SaleLine, products map[string]domain.Product) domain.SaleLineDetail {
	detail := domain.SaleLineDetail{
		ProductID: line.ProductID,
		Barcode:   line.Barcode,
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		LineTotal: line.LineTotal,
	}
	if product, ok := products[line.ProductID]; ok {
		detail.ProductName = product.Name
		detail.Category = product.Category
		if detail.Barcode == "" {
			detail.Barcode = product.Barcode
		}
	}
	return detail
}
