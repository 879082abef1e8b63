package export

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurafarma/backend-go/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Result: domain.AnalysisResult{
			ID: "run-1",
			Items: []domain.AnalyzedItem{
				{
					ItemRecord: domain.ItemRecord{ID: "00123", Name: "AMOXICILINA 500MG", Form: "TABLETA", CurrentStock: 1000, UnitPrice: 0.5},
					Estimate:   domain.ConsumptionEstimate{AdjustedRate: 461.36, RawRate: 589.58, Explanation: "excluded 1 outlier months (threshold 690)"},
					Assessment: domain.StockAssessment{ActiveRate: 461.36, MonthsOfCoverage: 2.17, Status: domain.StatusNormal},
					Reorder:    domain.ReorderResult{Quantity: 1769, Investment: 884.5},
					ExpiryRisk: domain.ExpiryRiskLow,

					SelectedRateMode: domain.RateModeAdjusted,
					ManualQuantity:   1800, // audited override wins
				},
				{
					ItemRecord: domain.ItemRecord{ID: "00456", Name: "RANITIDINA 300MG", CurrentStock: 5},
					Assessment: domain.StockAssessment{MonthsOfCoverage: domain.Months(math.Inf(1)), Status: domain.StatusNoRotation},
					ExpiryRisk: domain.ExpiryRiskHigh,

					SelectedRateMode: domain.RateModeAdjusted,
				},
			},
		},
		Additional: []domain.AdditionalItem{
			{Name: "ALCOHOL 70%", Quantity: 24, Observation: "pedido del servicio de emergencia"},
		},
	}
}

func TestWriteRequirementCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequirementCSV(&buf, sampleSnapshot()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + 2 items + 1 additional

	assert.Equal(t, requirementHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "00123", first[0])
	assert.Equal(t, "NORMAL", first[3])
	assert.Equal(t, "1800", first[8], "manual quantity is authoritative")
	assert.Equal(t, "900.00", first[10], "investment values the manual quantity")
	assert.Equal(t, "ADJUSTED", first[7])

	second := rows[2]
	assert.Equal(t, "SIN ROTACION", second[6])
	assert.Equal(t, "HIGH", second[11])

	additional := rows[3]
	assert.Equal(t, "ALCOHOL 70%", additional[1])
	assert.Equal(t, "24", additional[8])
	assert.Equal(t, "pedido del servicio de emergencia", additional[12])
}

func TestWriteRequirementCSVFlagsInvalidRows(t *testing.T) {
	snapshot := sampleSnapshot()
	snapshot.Result.Items[1].Invalid = true
	snapshot.Result.Items[1].InvalidReason = "item has no id"

	var buf bytes.Buffer
	require.NoError(t, WriteRequirementCSV(&buf, snapshot))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Contains(t, rows[2][12], "FILA INVALIDA")
}

func TestReportObjectName(t *testing.T) {
	at := time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "reports/2026-07/requerimiento-run-1.csv", ReportObjectName("run-1", at))
}
