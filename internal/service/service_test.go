package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VishnuMK2006/invent-consolt/internal/cart"
	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/metrics"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
	"github.com/VishnuMK2006/invent-consolt/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type harness struct {
	svc   *Service
	repo  *memory.Store
	reg   *prometheus.Registry
	cache *recordingCache
}

func newHarness(t *testing.T, repo store.Repository) *harness {
	t.Helper()
	mem, _ := repo.(*memory.Store)
	if repo == nil {
		mem = memory.New()
		repo = mem
	}
	reg := prometheus.NewRegistry()
	rc := newRecordingCache()
	svc := New(repo, Options{
		BarcodePrefix: "IM001VP",
		Cache:         rc,
		CacheTTL:      time.Minute,
		Metrics:       metrics.New(reg),
		Clock:         func() time.Time { return fixedNow },
	})
	return &harness{svc: svc, repo: mem, reg: reg, cache: rc}
}

func (h *harness) product(t *testing.T, name string, price string, qty int, minQty int) domain.Product {
	t.Helper()
	p, err := h.svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Name:        name,
		Category:    "general",
		Price:       decimal.RequireFromString(price),
		Quantity:    qty,
		MinQuantity: minQty,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) buyer(t *testing.T) domain.Buyer {
	t.Helper()
	b, err := h.svc.CreateBuyer(context.Background(), domain.BuyerCreateRequest{Name: "Ana Buyer", Phone: "555-0100"})
	require.NoError(t, err)
	return b
}

func (h *harness) quantity(t *testing.T, id string) int {
	t.Helper()
	p, err := h.svc.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (h *harness) counter(t *testing.T, name string, labelName string, labelValue string) float64 {
	t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelName == "" || hasLabel(m, labelName, labelValue) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name string, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestCreateSaleAppliesDiscountTaxAndDecrementsStock(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := h.product(t, "Lamp", "100", 10, 1)
	buyer := h.buyer(t)

	sale, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID:         buyer.ID,
		Items:           []domain.SaleItemInput{{ProductID: item.ID, Quantity: 2}},
		DiscountPercent: dec("10"),
		TaxPercent:      dec("5"),
	})
	require.NoError(t, err)

	assert.True(t, sale.Subtotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, sale.DiscountAmount.Equal(decimal.NewFromInt(20)))
	assert.True(t, sale.TaxAmount.Equal(decimal.NewFromInt(9)))
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(189)), "total %s", sale.TotalAmount)
	assert.Equal(t, "SALE-"+itoa(fixedNow.UnixMilli())+"-1", sale.ID)
	assert.Equal(t, domain.SaleStatusCompleted, sale.Status)
	assert.Equal(t, "Ana Buyer", sale.Buyer.Name)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "Lamp", sale.Items[0].ProductName)
	assert.Equal(t, item.Barcode, sale.Items[0].Barcode)
	assert.Equal(t, 8, h.quantity(t, item.ID))
	assert.Equal(t, float64(1), h.counter(t, "pos_sales_created_total", "", ""))
	assert.Contains(t, h.cache.invalidated, item.Barcode)
}

func TestCreateSaleConsolidatesRepeatedScans(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Mug", "7.50", 10, 1)
	buyer := h.buyer(t)

	sale, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items: []domain.SaleItemInput{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: a.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 2, sale.Items[0].Quantity)
	assert.True(t, sale.Items[0].LineTotal.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 8, h.quantity(t, a.ID))
}

func TestCreateSaleRejectsWholeSaleOnInsufficientStock(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Chair", "40", 3, 0)
	b := h.product(t, "Table", "90", 50, 0)
	buyer := h.buyer(t)

	_, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items: []domain.SaleItemInput{
			{ProductID: a.ID, Quantity: 5},
			{ProductID: b.ID, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	var stockErr *store.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, a.ID, stockErr.ProductID)
	assert.Contains(t, err.Error(), "Chair")

	assert.Equal(t, 3, h.quantity(t, a.ID))
	assert.Equal(t, 50, h.quantity(t, b.ID))
	sales, err := h.svc.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Equal(t, float64(1), h.counter(t, "pos_sale_failures_total", "reason", "insufficient_stock"))
}

func TestCreateSaleRejectsUnknownProducts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Pen", "1", 10, 0)
	buyer := h.buyer(t)

	_, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items: []domain.SaleItemInput{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: "ghost", Quantity: 1},
		},
	})
	require.ErrorIs(t, err, store.ErrUnavailableProducts)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, 10, h.quantity(t, a.ID))
}

func TestCreateSaleValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Pen", "1", 10, 0)
	buyer := h.buyer(t)

	cases := []struct {
		name string
		req  domain.SaleCreateRequest
	}{
		{"missing buyer", domain.SaleCreateRequest{Items: []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}}}},
		{"no items", domain.SaleCreateRequest{BuyerID: buyer.ID}},
		{"blank product", domain.SaleCreateRequest{BuyerID: buyer.ID, Items: []domain.SaleItemInput{{ProductID: " ", Quantity: 1}}}},
		{"negative quantity", domain.SaleCreateRequest{BuyerID: buyer.ID, Items: []domain.SaleItemInput{{ProductID: a.ID, Quantity: -2}}}},
		{"unknown buyer", domain.SaleCreateRequest{BuyerID: "nobody", Items: []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}}}},
		{"bad status", domain.SaleCreateRequest{BuyerID: buyer.ID, Status: "refunded", Items: []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreateSale(ctx, tc.req)
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}
	assert.Equal(t, 10, h.quantity(t, a.ID))
}

func TestCreateSaleMissingQuantityCountsAsOne(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Pen", "1", 10, 0)
	buyer := h.buyer(t)

	sale, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items:   []domain.SaleItemInput{{ProductID: a.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sale.Items[0].Quantity)
	assert.Equal(t, 9, h.quantity(t, a.ID))
}

func TestCreateSaleIgnoresClientTotalsButCountsDrift(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Pen", "2.50", 10, 0)
	buyer := h.buyer(t)

	sale, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID:  buyer.ID,
		Items:    []domain.SaleItemInput{{ProductID: a.ID, Quantity: 2}},
		Subtotal: dec("5.00"),
		Total:    dec("1.00"),
	})
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, float64(1), h.counter(t, "pos_sale_total_drift_total", "", ""))
}

func TestCreateSaleUsesCurrentCatalogPrice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Pen", "2", 10, 0)
	buyer := h.buyer(t)

	_, err := h.svc.UpdateProduct(ctx, a.ID, domain.ProductUpdateRequest{Price: dec("3.25")})
	require.NoError(t, err)

	sale, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items:   []domain.SaleItemInput{{ProductID: a.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, sale.Items[0].UnitPrice.Equal(decimal.RequireFromString("3.25")))
	assert.True(t, sale.Subtotal.Equal(decimal.RequireFromString("6.5")))

	// the stored line keeps its price after the catalog changes again
	_, err = h.svc.UpdateProduct(ctx, a.ID, domain.ProductUpdateRequest{Price: dec("9")})
	require.NoError(t, err)
	got, err := h.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("3.25")))
}

// conflictRepo simulates stock drained by a concurrent sale between
// validation and commit.
type conflictRepo struct {
	*memory.Store
}

func (r conflictRepo) CreateSale(_ context.Context, _ domain.Sale) (*domain.Sale, error) {
	return nil, store.ErrStockConflict
}

func TestCreateSaleSurfacesStockConflict(t *testing.T) {
	mem := memory.New()
	h := newHarness(t, conflictRepo{Store: mem})
	ctx := context.Background()
	a := h.product(t, "Pen", "1", 10, 0)
	buyer := h.buyer(t)

	_, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items:   []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, store.ErrStockConflict)
	assert.Equal(t, float64(1), h.counter(t, "pos_sale_failures_total", "reason", "stock_conflict"))
}

type brokenCatalog struct {
	*memory.Store
}

func (r brokenCatalog) FindProductsByIDs(_ context.Context, _ []string) (map[string]domain.Product, error) {
	return nil, errors.New("connection refused")
}

func TestStorageFailuresAreTagged(t *testing.T) {
	mem := memory.New()
	h := newHarness(t, brokenCatalog{Store: mem})
	ctx := context.Background()
	buyer := h.buyer(t)

	_, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items:   []domain.SaleItemInput{{ProductID: "p", Quantity: 1}},
	})
	require.ErrorIs(t, err, store.ErrStorage)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Pen", "1", 5, 0)
	buyer := h.buyer(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
				BuyerID: buyer.ID,
				Items:   []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, ok, 5)
	assert.GreaterOrEqual(t, h.quantity(t, a.ID), 0)
	assert.Equal(t, 5-ok, h.quantity(t, a.ID))
}

func TestQuoteSaleDoesNotMutate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Lamp", "100", 10, 1)

	quote, err := h.svc.QuoteSale(ctx, domain.SaleQuoteRequest{
		Items:           []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}, {ProductID: a.ID, Quantity: 1}},
		DiscountPercent: dec("10"),
		TaxPercent:      dec("5"),
		Shipping:        dec("-4"),
	})
	require.NoError(t, err)
	require.Len(t, quote.Items, 1)
	assert.True(t, quote.TaxableAmount.Equal(decimal.NewFromInt(180)))
	assert.True(t, quote.ShippingAmount.IsZero())
	assert.True(t, quote.TotalAmount.Equal(decimal.NewFromInt(189)))
	assert.Equal(t, 10, h.quantity(t, a.ID))
}

func TestGetSaleFallsBackWhenProductDeleted(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Vase", "12", 10, 0)
	buyer := h.buyer(t)

	sale, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items:   []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteProduct(ctx, a.ID))

	got, err := h.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, a.Barcode, got.Items[0].Barcode)
	assert.Empty(t, got.Items[0].ProductName)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(12)))

	_, err = h.svc.GetSale(ctx, "SALE-0-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSalesNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Pen", "1", 10, 0)
	buyer := h.buyer(t)

	for _, day := range []int{1, 3, 2} {
		at := time.Date(2026, 2, day, 10, 0, 0, 0, time.UTC)
		_, err := h.repo.CreateSale(ctx, domain.Sale{
			ID:       "SALE-D" + itoa(int64(day)),
			BuyerID:  buyer.ID,
			SaleDate: at,
			Items:    []domain.SaleLine{{ProductID: a.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(1), LineTotal: decimal.NewFromInt(1)}},
		})
		require.NoError(t, err)
	}

	sales, err := h.svc.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 3)
	assert.Equal(t, "SALE-D3", sales[0].ID)
	assert.Equal(t, "SALE-D2", sales[1].ID)
	assert.Equal(t, "SALE-D1", sales[2].ID)
	assert.Equal(t, "Ana Buyer", sales[0].Buyer.Name)

	from := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = h.svc.ListSales(ctx, domain.SaleFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestScanBarcode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Scarf", "22.40", 4, 5)

	res, err := h.svc.ScanBarcode(ctx, a.Barcode)
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Product.ID)
	assert.Equal(t, a.Barcode, res.Barcode)
	assert.True(t, res.Price.Equal(decimal.RequireFromString("22.40")))
	assert.True(t, res.LowStock)
	assert.Equal(t, float64(1), h.counter(t, "pos_low_stock_signals_total", "", ""))

	// second lookup is served from the cache
	_, err = h.svc.ScanBarcode(ctx, a.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 1, h.cache.hits)
}

func TestScanUnknownBarcodeIsNotFound(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Scarf", "22.40", 4, 0)

	_, err := h.svc.ScanBarcode(ctx, "FOREIGN-123")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, errors.Is(err, store.ErrStorage))
	assert.Equal(t, float64(1), h.counter(t, "pos_barcode_scans_total", "result", "not_found"))
	assert.Equal(t, 4, h.quantity(t, a.ID))

	_, err = h.svc.ScanBarcode(ctx, "  ")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCreateProductIssuesSequentialBarcodes(t *testing.T) {
	h := newHarness(t, nil)

	first := h.product(t, "One", "1", 1, 0)
	second := h.product(t, "Two", "1", 1, 0)
	assert.Equal(t, "IM001VP0001", first.Barcode)
	assert.Equal(t, "IM001VP0002", second.Barcode)
	assert.Equal(t, domain.DefaultReorderLevel, first.ReorderLevel)

	_, err := h.svc.CreateProduct(context.Background(), domain.ProductCreateRequest{Name: "Bad", Category: "x", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUpdateProductKeepsBarcodeAndInvalidatesCache(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Cup", "3", 5, 0)

	name := "Big Cup"
	updated, err := h.svc.UpdateProduct(ctx, a.ID, domain.ProductUpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Big Cup", updated.Name)
	assert.Equal(t, a.Barcode, updated.Barcode)
	assert.Contains(t, h.cache.invalidated, a.Barcode)

	empty := " "
	_, err = h.svc.UpdateProduct(ctx, a.ID, domain.ProductUpdateRequest{Name: &empty})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = h.svc.UpdateProduct(ctx, "missing", domain.ProductUpdateRequest{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjustStock(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Cup", "3", 5, 2)

	p, err := h.svc.AdjustStock(ctx, a.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Quantity)

	p, err = h.svc.AdjustStock(ctx, a.ID, -6)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity)

	_, err = h.svc.AdjustStock(ctx, a.ID, -3)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 2, h.quantity(t, a.ID))

	_, err = h.svc.AdjustStock(ctx, a.ID, 0)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	low, err := h.svc.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, a.ID, low[0].ID)
}

func TestSalesReportTotalsAndCSV(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Lamp", "100", 20, 0)
	buyer := h.buyer(t)

	_, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID:         buyer.ID,
		Items:           []domain.SaleItemInput{{ProductID: a.ID, Quantity: 2}},
		DiscountPercent: dec("10"),
		TaxPercent:      dec("5"),
	})
	require.NoError(t, err)
	_, err = h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items:   []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}},
		Status:  domain.SaleStatusCancelled,
	})
	require.NoError(t, err)

	report, err := h.svc.SalesReport(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sales)
	assert.Equal(t, 2, report.ItemsSold)
	assert.True(t, report.TotalAmount.Equal(decimal.NewFromInt(189)))
	require.Len(t, report.Rows, 2)
	require.Len(t, report.ByStatus, 2)
	assert.Equal(t, domain.SaleStatusCancelled, report.ByStatus[0].Status)

	var buf bytes.Buffer
	require.NoError(t, WriteSalesReportCSV(&buf, report))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "sale_id,sale_date,buyer_name,items"))
	assert.Contains(t, buf.String(), "189.00")
}

func TestBuyers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	b := h.buyer(t)
	got, err := h.svc.GetBuyer(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", got.Phone)

	_, err = h.svc.CreateBuyer(ctx, domain.BuyerCreateRequest{Name: "  "})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = h.svc.GetBuyer(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := h.svc.ListBuyers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateSaleRejectsQuantitiesThatWouldOverflow(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Bolt", "10", 10, 0)
	buyer := h.buyer(t)

	_, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID: buyer.ID,
		Items: []domain.SaleItemInput{
			{ProductID: a.ID, Quantity: math.MaxInt},
			{ProductID: a.ID, Quantity: math.MaxInt},
			{ProductID: a.ID, Quantity: 3},
		},
	})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	// each line within bounds, but the consolidated line is not
	_, err = h.svc.QuoteSale(ctx, domain.SaleQuoteRequest{
		Items: []domain.SaleItemInput{
			{ProductID: a.ID, Quantity: cart.MaxQuantity},
			{ProductID: a.ID, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Contains(t, err.Error(), "total quantity")

	assert.Equal(t, 10, h.quantity(t, a.ID))
	sales, err := h.svc.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)

	_, err = h.svc.AdjustStock(ctx, a.ID, cart.MaxQuantity+1)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCreateSaleBoundsTaxPercent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.product(t, "Bolt", "10", 10, 0)
	buyer := h.buyer(t)

	sale, err := h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID:    buyer.ID,
		Items:      []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}},
		TaxPercent: dec("150"),
	})
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(25)))

	_, err = h.svc.CreateSale(ctx, domain.SaleCreateRequest{
		BuyerID:    buyer.ID,
		Items:      []domain.SaleItemInput{{ProductID: a.ID, Quantity: 1}},
		TaxPercent: dec("1000.01"),
	})
	require.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Contains(t, err.Error(), "tax_percent")
	assert.Equal(t, 9, h.quantity(t, a.ID))
}

// gatedCatalog holds barcode lookups until released and records the context
// state each lookup finished with.
type gatedCatalog struct {
	*memory.Store
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	ctxErrs []error
}

func (g *gatedCatalog) FindProductByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	g.mu.Lock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.mu.Unlock()
	return g.Store.FindProductByBarcode(ctx, code)
}

func TestResolveBarcodeSurvivesFirstCallerCancelling(t *testing.T) {
	gate := &gatedCatalog{
		Store:   memory.New(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	h := newHarness(t, gate)
	a := h.product(t, "Lamp", "15", 3, 0)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.svc.ResolveBarcode(ctx, a.Barcode)
		firstErr <- err
	}()
	<-gate.started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		product *domain.Product
		err     error
	}
	second := make(chan result, 1)
	go func() {
		p, err := h.svc.ResolveBarcode(context.Background(), a.Barcode)
		second <- result{p, err}
	}()
	close(gate.release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, a.ID, got.product.ID)

	gate.mu.Lock()
	defer gate.mu.Unlock()
	require.NotEmpty(t, gate.ctxErrs)
	for _, err := range gate.ctxErrs {
		assert.NoError(t, err)
	}
}
