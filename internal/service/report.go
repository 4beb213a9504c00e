package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/pricing"
)

// SalesReport aggregates the sales in [filter.From, filter.To). Limit is
// ignored so the totals cover the whole range.
func (s *Service) SalesReport(ctx context.Context, filter domain.SaleFilter) (domain.SalesReport, error) {
	filter.Limit = 0
	sales, err := s.ListSales(ctx, filter)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		ShippingAmount: decimal.Zero,
		OtherAmount:    decimal.Zero,
		TotalAmount:    decimal.Zero,
		ByStatus:       make([]domain.StatusTotal, 0, 3),
		Rows:           make([]domain.SaleReportRow, 0, len(sales)),
	}
	if filter.From != nil {
		report.From = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		report.To = filter.To.UTC().Format(time.RFC3339)
	}

	byStatus := make(map[string]*domain.StatusTotal, 3)
	for _, sale := range sales {
		items := 0
		for _, line := range sale.Items {
			items += line.Quantity
		}

		bucket, ok := byStatus[sale.Status]
		if !ok {
			bucket = &domain.StatusTotal{Status: sale.Status, TotalAmount: decimal.Zero}
			byStatus[sale.Status] = bucket
		}
		bucket.Sales++
		bucket.TotalAmount = bucket.TotalAmount.Add(sale.TotalAmount)

		report.Rows = append(report.Rows, domain.SaleReportRow{
			SaleID:      sale.ID,
			SaleDate:    sale.SaleDate,
			BuyerName:   sale.Buyer.Name,
			Items:       items,
			Subtotal:    money(sale.Subtotal),
			Discount:    money(sale.DiscountAmount),
			Tax:         money(sale.TaxAmount),
			Shipping:    money(sale.ShippingAmount),
			Other:       money(sale.OtherAmount),
			TotalAmount: money(sale.TotalAmount),
			Status:      sale.Status,
		})

		// cancelled sales are listed but do not count towards revenue
		if sale.Status == domain.SaleStatusCancelled {
			continue
		}
		report.Sales++
		report.ItemsSold += items
		report.Subtotal = report.Subtotal.Add(sale.Subtotal)
		report.DiscountAmount = report.DiscountAmount.Add(sale.DiscountAmount)
		report.TaxAmount = report.TaxAmount.Add(sale.TaxAmount)
		report.ShippingAmount = report.ShippingAmount.Add(sale.ShippingAmount)
		report.OtherAmount = report.OtherAmount.Add(sale.OtherAmount)
		report.TotalAmount = report.TotalAmount.Add(sale.TotalAmount)
	}

	for _, bucket := range byStatus {
		report.ByStatus = append(report.ByStatus, *bucket)
	}
	sort.Slice(report.ByStatus, func(i, j int) bool {
		return report.ByStatus[i].Status < report.ByStatus[j].Status
	})
	return report, nil
}

// WriteSalesReportCSV writes one CSV row per sale with a header line.
func WriteSalesReportCSV(w io.Writer, report domain.SalesReport) error {
	rows := report.Rows
	if rows == nil {
		rows = []domain.SaleReportRow{}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write sales report csv: %w", err)
	}
	return nil
}

func money(v decimal.Decimal) string {
	return v.StringFixed(pricing.MoneyPlaces)
}
