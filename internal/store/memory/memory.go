package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/idgen"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	productByBarcode map[string]string
	buyers           map[string]domain.Buyer
	sales            map[string]*domain.Sale
	saleOrder        []string
	counters         map[string]int64
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		productByBarcode: make(map[string]string),
		buyers:           make(map[string]domain.Buyer),
		sales:            make(map[string]*domain.Sale),
		saleOrder:        make([]string, 0, 64),
		counters:         make(map[string]int64),
	}
}

// WalkInBuyerID is the buyer seeded for counter sales in demo mode.
const WalkInBuyerID = "buyer-walk-in"

// NewSeeded returns a store with a small demo catalog whose barcodes were
// issued from the prefix counter, so new products continue the sequence.
func NewSeeded(prefix string) *Store {
	if prefix == "" {
		prefix = idgen.DefaultBarcodePrefix
	}
	s := New()
	now := time.Now().UTC()

	seed := []struct {
		name     string
		category string
		price    string
		qty      int
		minQty   int
	}{
		{"Cotton T-Shirt", "apparel", "12.99", 40, 5},
		{"Denim Jeans", "apparel", "39.50", 25, 5},
		{"Canvas Tote Bag", "accessories", "8.75", 60, 10},
		{"Leather Belt", "accessories", "18.00", 15, 4},
		{"Wool Scarf", "accessories", "22.40", 4, 5},
		{"Running Socks (3 pack)", "apparel", "9.90", 80, 12},
	}
	for _, p := range seed {
		s.counters[prefix]++
		product := domain.Product{
			ID:           idgen.NewID(),
			Name:         p.name,
			Barcode:      idgen.FormatBarcode(prefix, s.counters[prefix]),
			Category:     p.category,
			Price:        decimal.RequireFromString(p.price),
			Quantity:     p.qty,
			MinQuantity:  p.minQty,
			ReorderLevel: domain.DefaultReorderLevel,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.products[product.ID] = product
		s.productByBarcode[product.Barcode] = product.ID
	}

	s.buyers[WalkInBuyerID] = domain.Buyer{ID: WalkInBuyerID, Name: "Walk-in Customer", CreatedAt: now}
	return s
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sortProductsNewestFirst(products)
	return products, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.IsLowStock() {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Quantity != b.Quantity {
			return a.Quantity - b.Quantity
		}
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Barcode == "" || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, fmt.Errorf("product %s: %w", product.ID, store.ErrDuplicate)
	}
	if _, exists := s.productByBarcode[product.Barcode]; exists {
		return nil, fmt.Errorf("barcode %s: %w", product.Barcode, store.ErrDuplicate)
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = product
	s.productByBarcode[product.Barcode] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) FindProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) FindProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productByBarcode[barcode]
	if !ok {
		return nil, store.ErrNotFound
	}
	product := s.products[id]
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	// barcodes are issued once and never change
	product.Barcode = existing.Barcode
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	delete(s.productByBarcode, product.Barcode)
	return nil
}

func (s *Store) DecrementStock(_ context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.decrementLocked(productID, qty)
}

func (s *Store) decrementLocked(productID string, qty int) error {
	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	if product.Quantity < qty {
		return &store.StockError{ProductID: productID, ProductName: product.Name, Requested: qty, Available: product.Quantity}
	}
	product.Quantity -= qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return nil
}

func (s *Store) IncreaseStock(_ context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	product.Quantity += qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return nil
}

func (s *Store) CreateBuyer(_ context.Context, buyer domain.Buyer) (*domain.Buyer, error) {
	if buyer.ID == "" || buyer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.buyers[buyer.ID]; exists {
		return nil, fmt.Errorf("buyer %s: %w", buyer.ID, store.ErrDuplicate)
	}
	if buyer.CreatedAt.IsZero() {
		buyer.CreatedAt = time.Now().UTC()
	}
	s.buyers[buyer.ID] = buyer
	created := buyer
	return &created, nil
}

func (s *Store) GetBuyer(_ context.Context, id string) (*domain.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buyer, exists := s.buyers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &buyer, nil
}

func (s *Store) FindBuyersByIDs(_ context.Context, ids []string) (map[string]domain.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Buyer, len(ids))
	for _, id := range ids {
		if b, ok := s.buyers[id]; ok {
			result[id] = b
		}
	}
	return result, nil
}

func (s *Store) ListBuyers(_ context.Context) ([]domain.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buyers := make([]domain.Buyer, 0, len(s.buyers))
	for _, b := range s.buyers {
		buyers = append(buyers, b)
	}
	slices.SortFunc(buyers, func(a, b domain.Buyer) int {
		return cmpString(a.Name, b.Name)
	})
	return buyers, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.BuyerID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[sale.ID]; exists {
		return nil, fmt.Errorf("sale %s: %w", sale.ID, store.ErrDuplicate)
	}

	applied := make([]domain.SaleLine, 0, len(sale.Items))
	for _, line := range sale.Items {
		if line.Quantity < 1 {
			s.restoreLocked(applied)
			return nil, store.ErrInvalidInput
		}
		if err := s.decrementLocked(line.ProductID, line.Quantity); err != nil {
			s.restoreLocked(applied)
			return nil, fmt.Errorf("%w: product %s: %v", store.ErrStockConflict, line.ProductID, err)
		}
		applied = append(applied, line)
	}

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = sale.CreatedAt
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	saved := cloneSale(&sale)
	s.sales[sale.ID] = saved
	s.saleOrder = append(s.saleOrder, sale.ID)
	return cloneSale(saved), nil
}

// restoreLocked undoes decrements already applied by a failing sale.
func (s *Store) restoreLocked(lines []domain.SaleLine) {
	for _, line := range lines {
		product, ok := s.products[line.ProductID]
		if !ok {
			continue
		}
		product.Quantity += line.Quantity
		s.products[line.ProductID] = product
	}
}

func (s *Store) CountSales(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sales), nil
}

func (s *Store) FindSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.saleOrder))
	for i := len(s.saleOrder) - 1; i >= 0; i-- {
		sale := s.sales[s.saleOrder[i]]
		if filter.From != nil && sale.SaleDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.SaleDate.Before(*filter.To) {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}

	// newest insert first on ties
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return b.SaleDate.Compare(a.SaleDate)
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) IncrementAndGet(_ context.Context, name string) (int64, error) {
	if name == "" {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[name]++
	return s.counters[name], nil
}

func sortProductsNewestFirst(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmpString(a.Barcode, b.Barcode)
	})
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = make([]domain.SaleLine, len(src.Items))
	copy(dup.Items, src.Items)
	return &dup
}
