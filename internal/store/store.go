package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrUnavailableProducts = errors.New("product(s) unavailable")
	ErrStockConflict       = errors.New("stock changed while the sale was being recorded")
	ErrDuplicate           = errors.New("already exists")
	ErrStorage             = errors.New("storage failure")
)

// StockError names the product whose on-hand quantity cannot cover a request.
type StockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("product %s does not have enough stock (requested %d, available %d)", name, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type CatalogStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	FindProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// DecrementStock removes qty only if at least qty is on hand. It returns
	// ErrInsufficientStock otherwise and never reads then writes.
	DecrementStock(ctx context.Context, productID string, qty int) error
	IncreaseStock(ctx context.Context, productID string, qty int) error
}

type BuyerStore interface {
	CreateBuyer(ctx context.Context, buyer domain.Buyer) (*domain.Buyer, error)
	GetBuyer(ctx context.Context, id string) (*domain.Buyer, error)
	FindBuyersByIDs(ctx context.Context, ids []string) (map[string]domain.Buyer, error)
	ListBuyers(ctx context.Context) ([]domain.Buyer, error)
}

type SaleStore interface {
	// CreateSale decrements stock for every line in order and inserts the sale
	// as one atomic unit. A failed decrement yields ErrStockConflict and
	// leaves no trace.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	CountSales(ctx context.Context) (int, error)
	FindSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
}

type CounterStore interface {
	IncrementAndGet(ctx context.Context, name string) (int64, error)
}

type Repository interface {
	CatalogStore
	BuyerStore
	SaleStore
	CounterStore
	Ping(ctx context.Context) error
}
