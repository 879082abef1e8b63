package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurafarma/backend-go/internal/domain"
)

const sampleCSV = `CODIGO,DESCRIPCION,FF,STOCK,PRECIO UNIT,ENE,FEB,MAR,ABR,MAY,JUN,JUL,AGO,SET,OCT,NOV,DIC
00123,AMOXICILINA 500MG,TABLETA,1000,0.50,450,480,460,2000,460,450,455,460,470,480,450,460
00456,PARACETAMOL 500MG,TABLETA,0,0.10,200,210,190,220,200,205,195,200,210,190,200,210
`

func TestParseCSV(t *testing.T) {
	items, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "00123", first.ID)
	assert.Equal(t, "AMOXICILINA 500MG", first.Name)
	assert.Equal(t, "TABLETA", first.Form)
	assert.EqualValues(t, 1000, first.CurrentStock)
	assert.EqualValues(t, 0.5, first.UnitPrice)
	require.Len(t, first.History, domain.HistoryMonths)
	assert.EqualValues(t, 450, first.History[0])
	assert.EqualValues(t, 2000, first.History[3])
	assert.EqualValues(t, 460, first.History[11])
	assert.NoError(t, first.History.Validate())
}

func TestParseCSVAlternateHeaders(t *testing.T) {
	csvData := `cod,nombre,stk,costo,mes01,mes02,mes03,mes04,mes05,mes06,mes07,mes08,mes09,mes10,mes11,mes12
A-1,IBUPROFENO 400MG,50,0.20,1,2,3,4,5,6,7,8,9,10,11,12
`
	items, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "A-1", items[0].ID)
	assert.EqualValues(t, 50, items[0].CurrentStock)
	assert.EqualValues(t, 12, items[0].History[11])
}

func TestParseCSVDirtyCells(t *testing.T) {
	csvData := `CODIGO,DESCRIPCION,STOCK,PRECIO,ENE,FEB,MAR,ABR,MAY,JUN,JUL,AGO,SET,OCT,NOV,DIC
00123,ALGO,abc,"1,250.00",,-5,x,4,,,,,,,,
`
	items, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	// Malformed stock coerces to 0; the thousands separator is stripped.
	assert.EqualValues(t, 0, item.CurrentStock)
	assert.EqualValues(t, 1250, item.UnitPrice)
	// Blank, negative and malformed months all read as zero.
	assert.EqualValues(t, 0, item.History[0])
	assert.EqualValues(t, 0, item.History[1])
	assert.EqualValues(t, 0, item.History[2])
	assert.EqualValues(t, 4, item.History[3])
	assert.NoError(t, item.History.Validate())
}

func TestParseCSVMissingCodeGetsStableID(t *testing.T) {
	csvData := `DESCRIPCION,STOCK
SIN CODIGO,10
OTRO,20
`
	items, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "ROW-0001", items[0].ID)
	assert.Equal(t, "ROW-0002", items[1].ID)

	// No month columns at all: the history is still exactly 12 zeros.
	assert.NoError(t, items[0].History.Validate())
	assert.Empty(t, items[0].History.ActiveMonths())
}

func TestParseCSVSkipsBlankRows(t *testing.T) {
	csvData := `DESCRIPCION,STOCK
ALGO,10
,
`
	items, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestParseCSVUnrecognizableHeader(t *testing.T) {
	csvData := `foo,bar,baz
1,2,3
`
	_, err := ParseCSV(strings.NewReader(csvData))
	assert.Error(t, err)
}

func TestParseCSVShortRows(t *testing.T) {
	// Truncated rows are padded with zeros, not rejected.
	csvData := `CODIGO,DESCRIPCION,STOCK,ENE,FEB
00123,ALGO,10,5
`
	items, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 5, items[0].History[0])
	assert.EqualValues(t, 0, items[0].History[1])
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	_, err := ParseFile("/tmp/export.pdf")
	assert.Error(t, err)
}
