// Package analysis implements the deterministic inventory analysis
// engine: consumption estimation, stock classification, reorder
// suggestion and batch orchestration. Every function here is pure;
// callers own all mutable state.
package analysis

import (
	"fmt"
	"sort"

	"github.com/aurafarma/backend-go/internal/domain"
)

const (
	// Items with consumption in this many months or fewer are sporadic:
	// the sample is too thin for a meaningful median/threshold split, so
	// they are exempt from outlier trimming.
	sporadicMaxActiveMonths = 5

	// Reference threshold reported for sporadic items.
	sporadicThreshold = 5

	// Low-volume items tolerate a wider spread before a month counts as
	// an outlier: a median under this cutoff scales the threshold by 3
	// instead of 1.5.
	lowMedianCutoff = 5

	// Absolute floor for the outlier threshold.
	minOutlierThreshold = 3.5
)

// EstimateConsumption computes the outlier-adjusted consumption profile
// for a 12-month history. Isolated demand spikes (stockouts followed by
// bulk orders, campaigns) must not inflate the long-run rate used for
// reordering, so months above a median-relative threshold are excluded
// from the adjusted average.
//
// A history of the wrong length or with negative values is a hard error;
// batch callers are expected to guard per item.
func EstimateConsumption(history domain.ConsumptionHistory) (domain.ConsumptionEstimate, error) {
	if err := history.Validate(); err != nil {
		return domain.ConsumptionEstimate{}, err
	}

	active := history.ActiveMonths()
	if len(active) == 0 {
		return domain.ConsumptionEstimate{Explanation: "no consumption history"}, nil
	}

	rawRate := mean(active)

	if len(active) <= sporadicMaxActiveMonths {
		// Intermittent but real demand: both rates equal the mean of the
		// active months and no month is treated as an outlier.
		return domain.ConsumptionEstimate{
			AdjustedRate:     rawRate,
			RawRate:          rawRate,
			OutlierThreshold: sporadicThreshold,
			IsSporadic:       true,
			Explanation:      fmt.Sprintf("sporadic consumption (%d active months)", len(active)),
		}, nil
	}

	med := median(active)
	threshold := med * 1.5
	if med < lowMedianCutoff {
		threshold = med * 3
	}
	if threshold < minOutlierThreshold {
		threshold = minOutlierThreshold
	}

	var normal []float64
	outliers := 0
	for _, v := range active {
		if v > threshold {
			outliers++
			continue
		}
		normal = append(normal, v)
	}

	// Degenerate case: every active month is above the threshold. The
	// median is the only robust estimate left.
	adjusted := med
	if len(normal) > 0 {
		adjusted = mean(normal)
	}

	explanation := fmt.Sprintf("average of %d active months", len(active))
	if outliers > 0 {
		explanation = fmt.Sprintf("excluded %d outlier months (threshold %.0f)", outliers, threshold)
	}

	return domain.ConsumptionEstimate{
		AdjustedRate:     adjusted,
		RawRate:          rawRate,
		OutlierThreshold: threshold,
		OutlierCount:     outliers,
		Explanation:      explanation,
	}, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 != 0 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
