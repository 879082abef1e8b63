package domain

// StockStatus classifies an item from its current stock and active
// consumption rate. Exactly one status holds for any (stock, rate) pair.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "OUT_OF_STOCK" // stock is zero
	StatusUnderstock StockStatus = "UNDERSTOCK"   // under 2 months of coverage
	StatusNormal     StockStatus = "NORMAL"       // 2 to 6 months of coverage
	StatusOverstock  StockStatus = "OVERSTOCK"    // more than 6 months of coverage
	StatusNoRotation StockStatus = "NO_ROTATION"  // stock on hand but no consumption
)

// Exempt reports whether items with this status are exempt from the
// pharmacist review: they never generate a reorder, so there is nothing
// to audit.
func (s StockStatus) Exempt() bool {
	return s == StatusOverstock || s == StatusNoRotation
}

// Available reports whether the status counts toward the availability
// indicator, i.e. the item is not in a supply failure.
func (s StockStatus) Available() bool {
	return s == StatusNormal || s == StatusOverstock || s == StatusNoRotation
}

// RateMode selects which consumption-rate variant drives classification
// and reorder math for an item.
type RateMode string

const (
	RateModeAdjusted RateMode = "ADJUSTED" // outlier-trimmed average (default)
	RateModeRaw      RateMode = "RAW"      // plain average of active months
)

// Valid reports whether m is one of the two supported modes.
func (m RateMode) Valid() bool {
	return m == RateModeAdjusted || m == RateModeRaw
}

// AvailabilityTier buckets the fleet availability score.
type AvailabilityTier string

const (
	TierOptimal AvailabilityTier = "OPTIMAL" // score >= 90
	TierHigh    AvailabilityTier = "HIGH"    // score >= 80
	TierRegular AvailabilityTier = "REGULAR" // score >= 70
	TierLow     AvailabilityTier = "LOW"
)

// TierForScore maps an availability score (0-100) to its tier.
func TierForScore(score float64) AvailabilityTier {
	switch {
	case score >= 90:
		return TierOptimal
	case score >= 80:
		return TierHigh
	case score >= 70:
		return TierRegular
	default:
		return TierLow
	}
}

// ExpiryRisk estimates the risk of stock expiring on the shelf, derived
// from months of coverage.
type ExpiryRisk string

const (
	ExpiryRiskLow    ExpiryRisk = "LOW"
	ExpiryRiskMedium ExpiryRisk = "MEDIUM" // over 12 months of coverage
	ExpiryRiskHigh   ExpiryRisk = "HIGH"   // no rotation or over 18 months
)
