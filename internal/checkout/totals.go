package checkout

import (
	"math"

	"github.com/sorpresa-shop/backend/internal/domain"
)

// Shipping is free above this subtotal; below it a flat fee applies.
const (
	freeShippingThreshold = 500.0
	flatShippingFee       = 99.0
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Subtotal sums the line subtotals of already-priced items.
func Subtotal(items []domain.SnapshotItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Subtotal
	}
	return round2(sum)
}

func ShippingFee(subtotal float64) float64 {
	if subtotal > freeShippingThreshold {
		return 0
	}
	return flatShippingFee
}

// ComputeTotal is the authoritative order total: discounted item subtotals
// plus the shipping fee.
func ComputeTotal(items []domain.SnapshotItem) (subtotal, shipping, total float64) {
	subtotal = Subtotal(items)
	shipping = ShippingFee(subtotal)
	total = round2(subtotal + shipping)
	return subtotal, shipping, total
}
