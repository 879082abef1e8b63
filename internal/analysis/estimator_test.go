package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurafarma/backend-go/internal/domain"
)

func history(values ...float64) domain.ConsumptionHistory {
	return domain.ConsumptionHistory(values)
}

func TestEstimateConsumptionNoHistory(t *testing.T) {
	est, err := EstimateConsumption(history(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0))
	require.NoError(t, err)

	assert.Zero(t, est.AdjustedRate)
	assert.Zero(t, est.RawRate)
	assert.Zero(t, est.OutlierThreshold)
	assert.Zero(t, est.OutlierCount)
	assert.False(t, est.IsSporadic)
	assert.Equal(t, "no consumption history", est.Explanation)
}

func TestEstimateConsumptionSporadic(t *testing.T) {
	// Three active months summing 30: both rates are the plain mean and
	// no outlier trimming happens.
	est, err := EstimateConsumption(history(0, 0, 10, 0, 0, 5, 0, 0, 0, 15, 0, 0))
	require.NoError(t, err)

	assert.True(t, est.IsSporadic)
	assert.InDelta(t, 10, est.AdjustedRate, 1e-9)
	assert.InDelta(t, 10, est.RawRate, 1e-9)
	assert.Equal(t, 0, est.OutlierCount)
	assert.EqualValues(t, 5, est.OutlierThreshold)
	assert.Contains(t, est.Explanation, "3 active months")
}

func TestEstimateConsumptionRegularWithSpike(t *testing.T) {
	// A single 2000-unit spike in an otherwise stable ~460/month item.
	est, err := EstimateConsumption(history(450, 480, 460, 2000, 460, 450, 455, 460, 470, 480, 450, 460))
	require.NoError(t, err)

	assert.False(t, est.IsSporadic)
	assert.InDelta(t, 690, est.OutlierThreshold, 1e-9) // median 460 * 1.5
	assert.Equal(t, 1, est.OutlierCount)
	assert.InDelta(t, 461.36, est.AdjustedRate, 0.01)
	assert.InDelta(t, 589.58, est.RawRate, 0.01)
	assert.Contains(t, est.Explanation, "excluded 1 outlier")
}

func TestEstimateConsumptionStableRegular(t *testing.T) {
	est, err := EstimateConsumption(history(200, 210, 190, 220, 200, 205, 195, 200, 210, 190, 200, 210))
	require.NoError(t, err)

	assert.False(t, est.IsSporadic)
	assert.Equal(t, 0, est.OutlierCount)
	assert.InDelta(t, est.RawRate, est.AdjustedRate, 1e-9)
	assert.Contains(t, est.Explanation, "average of 12 active months")
}

func TestEstimateConsumptionLowMedianWidensThreshold(t *testing.T) {
	// Median 2 is under the low-volume cutoff, so the threshold scales
	// by 3 instead of 1.5: a month of 5 is tolerated, 7 is not.
	est, err := EstimateConsumption(history(2, 2, 2, 2, 5, 7, 2, 2, 0, 0, 0, 0))
	require.NoError(t, err)

	assert.False(t, est.IsSporadic)
	assert.InDelta(t, 6, est.OutlierThreshold, 1e-9)
	assert.Equal(t, 1, est.OutlierCount)
}

func TestEstimateConsumptionThresholdFloor(t *testing.T) {
	// Median 1 would give a threshold of 3; the 3.5 floor applies.
	est, err := EstimateConsumption(history(1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0))
	require.NoError(t, err)

	assert.InDelta(t, 3.5, est.OutlierThreshold, 1e-9)
	assert.Equal(t, 0, est.OutlierCount)
}

func TestEstimateConsumptionSporadicInvariant(t *testing.T) {
	// For any history with at most 5 active months, adjusted == raw and
	// the outlier count is forced to zero.
	histories := []domain.ConsumptionHistory{
		history(1000, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		history(3, 0, 900, 0, 1, 0, 0, 0, 0, 0, 0, 2),
		history(0, 50, 0, 50, 0, 50, 0, 50, 0, 50, 0, 0),
	}
	for _, h := range histories {
		est, err := EstimateConsumption(h)
		require.NoError(t, err)
		assert.True(t, est.IsSporadic)
		assert.Equal(t, est.RawRate, est.AdjustedRate)
		assert.Equal(t, 0, est.OutlierCount)
	}
}

func TestEstimateConsumptionRejectsBadHistory(t *testing.T) {
	_, err := EstimateConsumption(domain.ConsumptionHistory{1, 2, 3})
	assert.Error(t, err)

	_, err = EstimateConsumption(history(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, -1))
	assert.Error(t, err)
}

func TestMedianEvenCount(t *testing.T) {
	assert.InDelta(t, 2.5, median([]float64{4, 1, 3, 2}), 1e-9)
	assert.InDelta(t, 3, median([]float64{5, 1, 3}), 1e-9)
}
