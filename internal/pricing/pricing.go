// Package pricing computes sale totals from line prices and adjustments.
package pricing

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places kept for persisted amounts.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// MaxTaxPercent bounds the tax rate a sale may declare. Rates above 100 are
// allowed, only absurd ones are refused.
var MaxTaxPercent = decimal.NewFromInt(1000)

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Adjustments struct {
	DiscountPercent decimal.Decimal
	TaxPercent      decimal.Decimal
	Shipping        decimal.Decimal
	Other           decimal.Decimal
}

type Totals struct {
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxableAmount   decimal.Decimal
	TaxPercent      decimal.Decimal
	TaxAmount       decimal.Decimal
	Shipping        decimal.Decimal
	Other           decimal.Decimal
	Total           decimal.Decimal
}

// LineTotal returns price × quantity at full precision.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Compute derives every total from its inputs. Discount is clamped to
// [0, 100] percent, a negative tax rate counts as zero, and negative
// shipping or other charges count as zero. No rounding happens here.
func Compute(lines []Line, adj Adjustments) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity < 1 || line.UnitPrice.IsNegative() {
			continue
		}
		subtotal = subtotal.Add(LineTotal(line.UnitPrice, line.Quantity))
	}

	discountPct := clamp(adj.DiscountPercent, decimal.Zero, hundred)
	taxPct := nonNegative(adj.TaxPercent)
	shipping := nonNegative(adj.Shipping)
	other := nonNegative(adj.Other)

	discount := subtotal.Mul(discountPct).Div(hundred)
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxPct).Div(hundred)

	return Totals{
		Subtotal:        subtotal,
		DiscountPercent: discountPct,
		DiscountAmount:  discount,
		TaxableAmount:   taxable,
		TaxPercent:      taxPct,
		TaxAmount:       tax,
		Shipping:        shipping,
		Other:           other,
		Total:           taxable.Add(tax).Add(shipping).Add(other),
	}
}

// Round returns the totals at MoneyPlaces. The total is rebuilt from the
// rounded components so that
// total = subtotal - discount + tax + shipping + other holds on stored values.
func (t Totals) Round() Totals {
	r := Totals{
		Subtotal:        t.Subtotal.Round(MoneyPlaces),
		DiscountPercent: t.DiscountPercent,
		DiscountAmount:  t.DiscountAmount.Round(MoneyPlaces),
		TaxPercent:      t.TaxPercent,
		TaxAmount:       t.TaxAmount.Round(MoneyPlaces),
		Shipping:        t.Shipping.Round(MoneyPlaces),
		Other:           t.Other.Round(MoneyPlaces),
	}
	r.TaxableAmount = r.Subtotal.Sub(r.DiscountAmount)
	r.Total = r.TaxableAmount.Add(r.TaxAmount).Add(r.Shipping).Add(r.Other)
	return r
}

// Drifted reports whether a client-declared amount differs from the computed
// one by more than one cent.
func Drifted(declared decimal.Decimal, computed decimal.Decimal) bool {
	return declared.Sub(computed).Abs().GreaterThan(decimal.New(1, -MoneyPlaces))
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
