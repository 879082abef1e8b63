package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurafarma/backend-go/internal/domain"
)

func spikedItem(t *testing.T) domain.AnalyzedItem {
	t.Helper()
	analyzer := NewAnalyzer(nil)
	result := analyzer.Analyze([]domain.ItemRecord{{
		ID:           "MED-001",
		Name:         "AMOXICILINA 500MG",
		CurrentStock: 1000,
		UnitPrice:    0.5,
		History:      history(450, 480, 460, 2000, 460, 450, 455, 460, 470, 480, 450, 460),
	}}, "2026-07", false)
	require.Len(t, result.Items, 1)
	return result.Items[0]
}

func TestSwitchRateModeRecalculates(t *testing.T) {
	item := spikedItem(t)
	require.Equal(t, domain.RateModeAdjusted, item.SelectedRateMode)

	err := SwitchRateMode(&item, domain.RateModeRaw, false)
	require.NoError(t, err)

	assert.Equal(t, domain.RateModeRaw, item.SelectedRateMode)
	assert.Equal(t, item.Estimate.RawRate, item.Assessment.ActiveRate)
	assert.Equal(t, item.Reorder.Quantity, item.ManualQuantity)
	// The raw rate is inflated by the spike, so the suggestion grows.
	assert.Greater(t, item.Estimate.RawRate, item.Estimate.AdjustedRate)
}

// Toggling A -> B -> A restores assessment and reorder bit for bit.
func TestSwitchRateModeRoundTrip(t *testing.T) {
	item := spikedItem(t)
	original := item

	require.NoError(t, SwitchRateMode(&item, domain.RateModeRaw, false))
	require.NoError(t, SwitchRateMode(&item, domain.RateModeAdjusted, false))

	assert.Equal(t, original.Assessment, item.Assessment)
	assert.Equal(t, original.Reorder, item.Reorder)
	assert.Equal(t, original.ManualQuantity, item.ManualQuantity)
	assert.Equal(t, original.ExpiryRisk, item.ExpiryRisk)
}

func TestSwitchRateModeRefusesValidatedItem(t *testing.T) {
	item := spikedItem(t)
	before := item

	err := SwitchRateMode(&item, domain.RateModeRaw, true)
	assert.ErrorIs(t, err, ErrItemValidated)
	assert.Equal(t, before, item, "validated item must not change at all")
}

func TestSwitchRateModeRejectsUnknownMode(t *testing.T) {
	item := spikedItem(t)
	err := SwitchRateMode(&item, domain.RateMode("SMOOTHED"), false)
	assert.Error(t, err)
	assert.Equal(t, domain.RateModeAdjusted, item.SelectedRateMode)
}

func TestSwitchRateModeOverwritesManualQuantity(t *testing.T) {
	item := spikedItem(t)
	item.ManualQuantity = 9999

	require.NoError(t, SwitchRateMode(&item, domain.RateModeRaw, false))
	assert.Equal(t, item.Reorder.Quantity, item.ManualQuantity)
}
