// Package export renders an audited analysis run as the requirement
// report handed to procurement. The audited values are authoritative:
// quantity and investment come from the pharmacist's manual figures, not
// the system suggestion.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aurafarma/backend-go/internal/domain"
)

var requirementHeader = []string{
	"CODIGO", "DESCRIPCION", "FF", "ESTADO", "STOCK",
	"CONSUMO MENSUAL", "MESES COBERTURA", "MODO", "CANTIDAD",
	"PRECIO UNIT", "INVERSION", "RIESGO VENCIMIENTO", "OBSERVACION",
}

func formatMonths(m domain.Months) string {
	if m.Inf() {
		return "SIN ROTACION"
	}
	return strconv.FormatFloat(float64(m), 'f', 2, 64)
}

func itemObservation(item domain.AnalyzedItem) string {
	if item.Invalid {
		return "FILA INVALIDA: " + item.InvalidReason
	}
	if item.Excluded {
		return "EXCLUIDO (CADENA DE FRIO)"
	}
	return item.Estimate.Explanation
}

func itemRow(item domain.AnalyzedItem) []string {
	return []string{
		item.ID,
		item.Name,
		item.Form,
		string(item.Assessment.Status),
		strconv.FormatFloat(item.CurrentStock, 'f', -1, 64),
		strconv.FormatFloat(item.ActiveRate(), 'f', 2, 64),
		formatMonths(item.Assessment.MonthsOfCoverage),
		string(item.SelectedRateMode),
		strconv.Itoa(item.ManualQuantity),
		strconv.FormatFloat(item.UnitPrice, 'f', 2, 64),
		strconv.FormatFloat(item.ManualInvestment(), 'f', 2, 64),
		string(item.ExpiryRisk),
		itemObservation(item),
	}
}

func additionalRow(item domain.AdditionalItem) []string {
	observation := item.Observation
	if observation == "" {
		observation = "ITEM ADICIONAL"
	}
	return []string{
		item.Code,
		item.Name,
		item.Form,
		"", "", "", "", "",
		strconv.Itoa(item.Quantity),
		"", "", "",
		observation,
	}
}

// WriteRequirementCSV writes the requirement report for a snapshot.
// Manual additions are appended after the analyzed items. The caller is
// responsible for the audit-completion gate; this writer renders
// whatever it is given.
func WriteRequirementCSV(w io.Writer, snapshot domain.Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(requirementHeader); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, item := range snapshot.Result.Items {
		if err := cw.Write(itemRow(item)); err != nil {
			return fmt.Errorf("failed to write report row for %s: %w", item.ID, err)
		}
	}
	for _, item := range snapshot.Additional {
		if err := cw.Write(additionalRow(item)); err != nil {
			return fmt.Errorf("failed to write additional row for %s: %w", item.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReportObjectName builds the storage key for a generated report.
func ReportObjectName(runID string, at time.Time) string {
	return fmt.Sprintf("reports/%s/requerimiento-%s.csv", at.UTC().Format("2006-01"), runID)
}
