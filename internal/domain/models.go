package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SaleStatusPending   = "pending"
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

const DefaultReorderLevel = 5

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Barcode      string          `json:"barcode"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	MinQuantity  int             `json:"min_quantity"`
	ReorderLevel int             `json:"reorder_level"`
	VendorID     string          `json:"vendor_id,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsLowStock reports whether on-hand quantity has reached the minimum threshold.
func (p Product) IsLowStock() bool {
	return p.Quantity <= p.MinQuantity
}

type ProductCreateRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=2000"`
	Category     string          `json:"category" validate:"required,max=100"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity" validate:"gte=0"`
	MinQuantity  int             `json:"min_quantity" validate:"gte=0"`
	ReorderLevel *int            `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
	VendorID     string          `json:"vendor_id,omitempty"`
	ImageURL     string          `json:"image_url,omitempty" validate:"omitempty,url"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description  *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category     *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Quantity     *int             `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	MinQuantity  *int             `json:"min_quantity,omitempty" validate:"omitempty,gte=0"`
	ReorderLevel *int             `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
	VendorID     *string          `json:"vendor_id,omitempty"`
	ImageURL     *string          `json:"image_url,omitempty" validate:"omitempty,url"`
}

type StockAdjustmentRequest struct {
	Delta int `json:"delta" validate:"required,gte=-1000000,lte=1000000"`
}

type ScanRequest struct {
	Barcode string `json:"barcode" validate:"required,max=64"`
}

// ScanResult is the barcode lookup shape returned to terminals.
type ScanResult struct {
	Product  ScannedProduct  `json:"product"`
	Price    decimal.Decimal `json:"price"`
	Barcode  string          `json:"barcode"`
	LowStock bool            `json:"low_stock"`
}

type ScannedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Barcode     string          `json:"barcode"`
	Quantity    int             `json:"quantity"`
}

type Buyer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BuyerCreateRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=500"`
}

// SaleLine is a value snapshot of a product at the time of sale.
type SaleLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Barcode   string          `json:"barcode"`
}

type Sale struct {
	ID              string          `json:"id"`
	BuyerID         string          `json:"buyer_id"`
	Items           []SaleLine      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	OtherAmount     decimal.Decimal `json:"other_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Comments        string          `json:"comments,omitempty"`
	Status          string          `json:"status"`
	SaleDate        time.Time       `json:"sale_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

type SaleItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=1000000"`
}

type SaleCreateRequest struct {
	BuyerID         string           `json:"buyer_id" validate:"required"`
	Items           []SaleItemInput  `json:"items" validate:"required,min=1,dive"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	TaxPercent      *decimal.Decimal `json:"tax_percent,omitempty"`
	Shipping        *decimal.Decimal `json:"shipping,omitempty"`
	Other           *decimal.Decimal `json:"other,omitempty"`
	Comments        string           `json:"comments,omitempty" validate:"max=1000"`
	Status          string           `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
	SaleDate        *time.Time       `json:"sale_date,omitempty"`

	// Client-side running totals. Only compared against the server computation.
	Subtotal *decimal.Decimal `json:"subtotal,omitempty"`
	Total    *decimal.Decimal `json:"total,omitempty"`
}

type SaleQuoteRequest struct {
	Items           []SaleItemInput  `json:"items" validate:"required,min=1,dive"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	TaxPercent      *decimal.Decimal `json:"tax_percent,omitempty"`
	Shipping        *decimal.Decimal `json:"shipping,omitempty"`
	Other           *decimal.Decimal `json:"other,omitempty"`
}

type SaleQuote struct {
	Items          []SaleLineDetail `json:"items"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	TaxableAmount  decimal.Decimal  `json:"taxable_amount"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	ShippingAmount decimal.Decimal  `json:"shipping_amount"`
	OtherAmount    decimal.Decimal  `json:"other_amount"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
}

type BuyerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type SaleLineDetail struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Barcode     string          `json:"barcode"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// SaleDetail is a persisted sale with buyer and product display fields populated.
type SaleDetail struct {
	ID              string           `json:"id"`
	Buyer           BuyerSummary     `json:"buyer"`
	Items           []SaleLineDetail `json:"items"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	TaxPercent      decimal.Decimal  `json:"tax_percent"`
	TaxAmount       decimal.Decimal  `json:"tax_amount"`
	ShippingAmount  decimal.Decimal  `json:"shipping_amount"`
	OtherAmount     decimal.Decimal  `json:"other_amount"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	Comments        string           `json:"comments,omitempty"`
	Status          string           `json:"status"`
	SaleDate        string           `json:"sale_date"`
	CreatedAt       string           `json:"created_at"`
}

type SaleFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

type SalesReport struct {
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	Sales          int             `json:"sales"`
	ItemsSold      int             `json:"items_sold"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	OtherAmount    decimal.Decimal `json:"other_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ByStatus       []StatusTotal   `json:"by_status"`
	Rows           []SaleReportRow `json:"rows"`
}

type StatusTotal struct {
	Status      string          `json:"status"`
	Sales       int             `json:"sales"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type SaleReportRow struct {
	SaleID      string `json:"sale_id" csv:"sale_id"`
	SaleDate    string `json:"sale_date" csv:"sale_date"`
	BuyerName   string `json:"buyer_name" csv:"buyer_name"`
	Items       int    `json:"items" csv:"items"`
	Subtotal    string `json:"subtotal" csv:"subtotal"`
	Discount    string `json:"discount_amount" csv:"discount_amount"`
	Tax         string `json:"tax_amount" csv:"tax_amount"`
	Shipping    string `json:"shipping_amount" csv:"shipping_amount"`
	Other       string `json:"other_amount" csv:"other_amount"`
	TotalAmount string `json:"total_amount" csv:"total_amount"`
	Status      string `json:"status" csv:"status"`
}
