package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aurafarma/backend-go/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		stock    float64
		rate     float64
		status   domain.StockStatus
		coverage float64
	}{
		{"no stock no movement", 0, 0, domain.StatusOutOfStock, 0},
		{"no stock with demand", 0, 50, domain.StatusOutOfStock, 0},
		{"stock without movement", 80, 0, domain.StatusNoRotation, math.Inf(1)},
		{"above overstock ceiling", 700, 100, domain.StatusOverstock, 7},
		{"just above ceiling", 601, 100, domain.StatusOverstock, 6.01},
		{"at the ceiling", 600, 100, domain.StatusNormal, 6},
		{"at the floor", 200, 100, domain.StatusNormal, 2},
		{"just below the floor", 199, 100, domain.StatusUnderstock, 1.99},
		{"barely covered", 10, 100, domain.StatusUnderstock, 0.1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.stock, tc.rate)
			assert.Equal(t, tc.status, got.Status)
			assert.Equal(t, tc.rate, got.ActiveRate)
			if math.IsInf(tc.coverage, 1) {
				assert.True(t, got.MonthsOfCoverage.Inf())
			} else {
				assert.InDelta(t, tc.coverage, float64(got.MonthsOfCoverage), 1e-9)
			}
		})
	}
}

// Every stock/rate pair must map to exactly one status; sweeping a grid
// guards against gaps between the classification bands.
func TestClassifyIsTotal(t *testing.T) {
	known := map[domain.StockStatus]bool{
		domain.StatusOutOfStock: true,
		domain.StatusNoRotation: true,
		domain.StatusOverstock:  true,
		domain.StatusNormal:     true,
		domain.StatusUnderstock: true,
	}
	for stock := 0.0; stock <= 50; stock += 2.5 {
		for rate := 0.0; rate <= 12; rate += 0.75 {
			got := Classify(stock, rate)
			assert.True(t, known[got.Status], "stock=%v rate=%v produced %q", stock, rate, got.Status)
		}
	}
}

func TestAssessExpiryRisk(t *testing.T) {
	assert.Equal(t, domain.ExpiryRiskHigh, AssessExpiryRisk(Classify(80, 0)))
	assert.Equal(t, domain.ExpiryRiskHigh, AssessExpiryRisk(Classify(190, 10)))
	assert.Equal(t, domain.ExpiryRiskMedium, AssessExpiryRisk(Classify(130, 10)))
	assert.Equal(t, domain.ExpiryRiskLow, AssessExpiryRisk(Classify(60, 10)))
	assert.Equal(t, domain.ExpiryRiskLow, AssessExpiryRisk(Classify(0, 0)))
}
