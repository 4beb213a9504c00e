// Package cart merges scanned or entered line items into one entry per product.
package cart

import "math"

// MaxQuantity is the largest quantity a single line, or the consolidated line
// for one product, may carry.
const MaxQuantity = 1_000_000

type Item struct {
	ProductID string
	Quantity  int
}

// Consolidate sums quantities per product, keeping the order in which each
// product was first seen. A quantity below 1 counts as a single unit.
// Consolidating an already consolidated list returns it unchanged. Sums that
// would overflow saturate at math.MaxInt so callers can reject them against
// MaxQuantity.
func Consolidate(items []Item) []Item {
	index := make(map[string]int, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		if pos, ok := index[item.ProductID]; ok {
			out[pos].Quantity = addSaturating(out[pos].Quantity, qty)
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, Item{ProductID: item.ProductID, Quantity: qty})
	}
	return out
}

func addSaturating(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// ProductIDs returns the distinct product ids of a consolidated list in order.
func ProductIDs(items []Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// TotalQuantity returns the number of units across all items.
func TotalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		total = addSaturating(total, qty)
	}
	return total
}
