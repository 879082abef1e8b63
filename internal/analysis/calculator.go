package analysis

import (
	"math"

	"github.com/aurafarma/backend-go/internal/domain"
)

const (
	// Regular items are topped up to the normal-band ceiling to minimize
	// reorder frequency.
	regularCoverageMonths = 6

	// Sporadic items reordered only to the safety floor would fall back
	// into understock after a single order event; 3 months buys a buffer
	// without breaching the overstock ceiling for infrequent movers.
	sporadicCoverageMonths = 3

	// Minimum units to keep on hand regardless of consumption.
	safetyStockFloor = 2
)

// SuggestReorder computes the suggested order quantity and investment
// for an item. Excluded items (cold chain) and exempt statuses never
// generate a requirement.
func SuggestReorder(currentStock, activeRate, unitPrice float64, status domain.StockStatus, sporadic, excluded bool) domain.ReorderResult {
	if excluded || status.Exempt() {
		return domain.ReorderResult{}
	}

	coverage := float64(regularCoverageMonths)
	if sporadic {
		coverage = float64(sporadicCoverageMonths)
	}

	target := activeRate * coverage
	if target < safetyStockFloor {
		target = safetyStockFloor
	}

	quantity := int(math.Ceil(target - currentStock))
	if quantity < 0 {
		quantity = 0
	}

	return domain.ReorderResult{
		Quantity:   quantity,
		Investment: float64(quantity) * unitPrice,
	}
}
