package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filterItem() AnalyzedItem {
	return AnalyzedItem{
		ItemRecord: ItemRecord{
			ID:        "MED-001",
			Name:      "AMOXICILINA 500MG TABLETA",
			Form:      "TABLETA",
			Petitorio: "SI",
		},
		Assessment:       StockAssessment{Status: StatusUnderstock},
		SelectedRateMode: RateModeAdjusted,
		ExpiryRisk:       ExpiryRiskLow,
	}
}

func TestItemFilterSearch(t *testing.T) {
	f := ItemFilter{Search: "amoxi"}
	assert.True(t, f.Match(filterItem(), false))

	f.Search = "med-001"
	assert.True(t, f.Match(filterItem(), false))

	f.Search = "ibuprofeno"
	assert.False(t, f.Match(filterItem(), false))
}

func TestItemFilterFields(t *testing.T) {
	item := filterItem()

	// Values within a field are OR-ed.
	f := ItemFilter{Fields: map[FilterField][]string{
		FieldStatus: {"OUT_OF_STOCK", "UNDERSTOCK"},
	}}
	assert.True(t, f.Match(item, false))

	// Fields are AND-ed.
	f.Fields[FieldForm] = []string{"JARABE"}
	assert.False(t, f.Match(item, false))

	f.Fields[FieldForm] = []string{"tableta"} // case-insensitive
	assert.True(t, f.Match(item, false))
}

func TestItemFilterPendingOnly(t *testing.T) {
	f := ItemFilter{PendingOnly: true}
	item := filterItem()

	assert.True(t, f.Match(item, false))
	assert.False(t, f.Match(item, true), "validated items are not pending")

	item.Assessment.Status = StatusOverstock
	assert.False(t, f.Match(item, false), "exempt items are not pending")
}

func TestFilterFieldValid(t *testing.T) {
	assert.True(t, FieldStatus.Valid())
	assert.True(t, FieldExpiryRisk.Valid())
	assert.False(t, FilterField("price").Valid())
}
