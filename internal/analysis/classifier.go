package analysis

import (
	"math"

	"github.com/aurafarma/backend-go/internal/domain"
)

// Classification band edges in months of coverage.
const (
	understockBelowMonths = 2
	overstockAboveMonths  = 6
)

// Classify maps current stock and an active consumption rate to a stock
// assessment. It is a pure, total function: exactly one status holds for
// any input pair, and re-evaluating with a different rate (mode toggle)
// reproduces the same status for the same inputs.
func Classify(currentStock, activeRate float64) domain.StockAssessment {
	var coverage domain.Months
	switch {
	case activeRate > 0:
		coverage = domain.Months(currentStock / activeRate)
	case currentStock > 0:
		coverage = domain.Months(math.Inf(1))
	default:
		coverage = 0
	}

	// Priority order matters: the first matching rule wins.
	var status domain.StockStatus
	switch {
	case currentStock == 0:
		status = domain.StatusOutOfStock
	case activeRate == 0:
		status = domain.StatusNoRotation
	case coverage > overstockAboveMonths:
		status = domain.StatusOverstock
	case coverage >= understockBelowMonths:
		status = domain.StatusNormal
	default:
		status = domain.StatusUnderstock
	}

	return domain.StockAssessment{
		ActiveRate:       activeRate,
		MonthsOfCoverage: coverage,
		Status:           status,
	}
}

// AssessExpiryRisk rates the risk of stock expiring on the shelf from
// the assessment alone.
func AssessExpiryRisk(assessment domain.StockAssessment) domain.ExpiryRisk {
	switch {
	case assessment.Status == domain.StatusNoRotation || assessment.MonthsOfCoverage > 18:
		return domain.ExpiryRiskHigh
	case assessment.MonthsOfCoverage > 12:
		return domain.ExpiryRiskMedium
	default:
		return domain.ExpiryRiskLow
	}
}
