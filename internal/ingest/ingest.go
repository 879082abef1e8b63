// Package ingest parses pharmacy consumption spreadsheets (CSV or XLSX)
// into item records. Column detection is tolerant: exports from SISMED
// and hospital systems vary in header naming, so columns are matched by
// synonym lists rather than fixed positions.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/aurafarma/backend-go/internal/domain"
)

// Column synonyms, matched case-insensitively against trimmed headers.
// Name/price/code match by substring; stock must match exactly so that
// e.g. "stock_minimo" is not mistaken for the current stock column.
var (
	nameKeys      = []string{"descrip", "medicamento", "nombre"}
	stockKeys     = []string{"stock", "stock_actual", "stk"}
	priceKeys     = []string{"precio", "costo", "unit"}
	codeKeys      = []string{"codigo", "cod"}
	formKeys      = []string{"ff", "forma", "presentacion", "farmaceutica"}
	typeKeys      = []string{"tip", "tipo", "medtip"}
	petitorioKeys = []string{"pet", "petitorio", "medpet"}
	situationKeys = []string{"estrategico", "medest", "situacion", "condicion"}

	monthKeys = [domain.HistoryMonths][]string{
		{"enero", "ene", "mes01", "mes1"},
		{"febrero", "feb", "mes02", "mes2"},
		{"marzo", "mar", "mes03", "mes3"},
		{"abril", "abr", "mes04", "mes4"},
		{"mayo", "may", "mes05", "mes5"},
		{"junio", "jun", "mes06", "mes6"},
		{"julio", "jul", "mes07", "mes7"},
		{"agosto", "ago", "mes08", "mes8"},
		{"setiembre", "septiembre", "set", "sep", "mes09", "mes9"},
		{"octubre", "oct", "mes10"},
		{"noviembre", "nov", "mes11"},
		{"diciembre", "dic", "mes12"},
	}
)

// columnMap holds detected column indices; -1 means the column is absent.
type columnMap struct {
	name      int
	stock     int
	price     int
	code      int
	form      int
	typ       int
	petitorio int
	situation int
	months    [domain.HistoryMonths]int
}

func findColumn(headers []string, keys []string, exact bool) int {
	for i, h := range headers {
		for _, key := range keys {
			if exact && h == key {
				return i
			}
			if !exact && strings.Contains(h, key) {
				return i
			}
		}
	}
	return -1
}

// detectColumns maps a header row to column indices. A sheet with
// neither a name nor a stock column is not an inventory export.
func detectColumns(header []string) (columnMap, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cols := columnMap{
		name:      findColumn(normalized, nameKeys, false),
		stock:     findColumn(normalized, stockKeys, true),
		price:     findColumn(normalized, priceKeys, false),
		code:      findColumn(normalized, codeKeys, false),
		form:      findColumn(normalized, formKeys, false),
		typ:       findColumn(normalized, typeKeys, false),
		petitorio: findColumn(normalized, petitorioKeys, false),
		situation: findColumn(normalized, situationKeys, false),
	}
	for i, keys := range monthKeys {
		cols.months[i] = findColumn(normalized, keys, false)
	}

	if cols.name < 0 && cols.stock < 0 {
		return cols, fmt.Errorf("no recognizable columns in header %v", header)
	}
	return cols, nil
}

func cellValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// cellNumber coerces a cell to a non-negative float. Blank, malformed
// and negative cells all become 0 so that one dirty cell does not
// invalidate the row.
func cellNumber(record []string, idx int) float64 {
	val := cellValue(record, idx)
	if val == "" {
		return 0
	}
	val = strings.ReplaceAll(val, ",", "")
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f != f || f < 0 {
		return 0
	}
	return f
}

func emptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// buildRecord maps one data row to an ItemRecord. Missing months read
// as zero consumption, so every record carries exactly 12 months.
func buildRecord(record []string, cols columnMap, rowIndex int) domain.ItemRecord {
	id := cellValue(record, cols.code)
	if id == "" {
		// No code column or blank cell: derive a stable id from the row
		// position so re-ingesting the same file yields the same ids.
		id = fmt.Sprintf("ROW-%04d", rowIndex)
	}

	name := cellValue(record, cols.name)
	if name == "" {
		name = fmt.Sprintf("Item %d", rowIndex)
	}

	history := make(domain.ConsumptionHistory, domain.HistoryMonths)
	for i, idx := range cols.months {
		history[i] = cellNumber(record, idx)
	}

	return domain.ItemRecord{
		ID:           id,
		Name:         name,
		CurrentStock: cellNumber(record, cols.stock),
		UnitPrice:    cellNumber(record, cols.price),
		History:      history,
		Form:         cellValue(record, cols.form),
		Type:         cellValue(record, cols.typ),
		Petitorio:    cellValue(record, cols.petitorio),
		Situation:    cellValue(record, cols.situation),
	}
}

// ParseCSV reads a consumption export from r. The first row must be the
// header; blank rows are skipped.
func ParseCSV(r io.Reader) ([]domain.ItemRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := detectColumns(header)
	if err != nil {
		return nil, err
	}

	var items []domain.ItemRecord
	rowIndex := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rowIndex++
		if emptyRecord(record) {
			continue
		}
		items = append(items, buildRecord(record, cols, rowIndex))
	}

	log.Info().Int("items", len(items)).Msg("ingest: parsed CSV export")
	return items, nil
}

// ParseXLSX reads the first sheet of an XLSX consumption export.
func ParseXLSX(r io.Reader) ([]domain.ItemRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	var (
		cols     columnMap
		items    []domain.ItemRecord
		rowIndex int
		first    = true
	)
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read xlsx row: %w", err)
		}
		if first {
			first = false
			if cols, err = detectColumns(record); err != nil {
				return nil, err
			}
			continue
		}
		rowIndex++
		if emptyRecord(record) {
			continue
		}
		items = append(items, buildRecord(record, cols, rowIndex))
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating xlsx rows: %w", err)
	}
	if first {
		return nil, fmt.Errorf("xlsx sheet %s is empty", sheets[0])
	}

	log.Info().Int("items", len(items)).Msg("ingest: parsed XLSX export")
	return items, nil
}

// ParseFile dispatches on the file extension.
func ParseFile(path string) ([]domain.ItemRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(f)
	case ".xlsx", ".xls":
		return ParseXLSX(f)
	default:
		return nil, fmt.Errorf("unsupported file type %s", filepath.Ext(path))
	}
}
