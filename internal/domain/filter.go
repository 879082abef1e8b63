package domain

import "strings"

// FilterField enumerates the item columns that can be filtered on. A
// closed enum with typed accessors replaces dynamic string-key lookups
// so a misspelled field is rejected at parse time instead of silently
// matching nothing.
type FilterField string

const (
	FieldStatus     FilterField = "status"
	FieldForm       FilterField = "form"
	FieldType       FilterField = "type"
	FieldPetitorio  FilterField = "petitorio"
	FieldSituation  FilterField = "situation"
	FieldRateMode   FilterField = "rate_mode"
	FieldExpiryRisk FilterField = "expiry_risk"
)

// Valid reports whether f names a filterable field.
func (f FilterField) Valid() bool {
	switch f {
	case FieldStatus, FieldForm, FieldType, FieldPetitorio, FieldSituation, FieldRateMode, FieldExpiryRisk:
		return true
	}
	return false
}

// Value returns the item's value for the field.
func (f FilterField) Value(item AnalyzedItem) string {
	switch f {
	case FieldStatus:
		return string(item.Assessment.Status)
	case FieldForm:
		return item.Form
	case FieldType:
		return item.Type
	case FieldPetitorio:
		return item.Petitorio
	case FieldSituation:
		return item.Situation
	case FieldRateMode:
		return string(item.SelectedRateMode)
	case FieldExpiryRisk:
		return string(item.ExpiryRisk)
	}
	return ""
}

// ItemFilter narrows an analysis item list. Values within a field are
// OR-ed, fields are AND-ed. PendingOnly keeps only non-exempt items
// that have not been validated yet.
type ItemFilter struct {
	Search      string                   `json:"search,omitempty"`
	Fields      map[FilterField][]string `json:"fields,omitempty"`
	PendingOnly bool                     `json:"pending_only,omitempty"`
	Page        int                      `json:"page"`
	PageSize    int                      `json:"page_size"`
}

// Match reports whether the item passes the filter. The caller supplies
// the item's review status because ReviewState lives outside the result.
func (f ItemFilter) Match(item AnalyzedItem, validated bool) bool {
	if f.PendingOnly {
		if item.Exempt() || validated {
			return false
		}
	}

	if search := strings.TrimSpace(f.Search); search != "" {
		if !strings.Contains(strings.ToLower(item.Name), strings.ToLower(search)) &&
			!strings.Contains(strings.ToLower(item.ID), strings.ToLower(search)) {
			return false
		}
	}

	for field, values := range f.Fields {
		if len(values) == 0 {
			continue
		}
		got := field.Value(item)
		matched := false
		for _, v := range values {
			if strings.EqualFold(strings.TrimSpace(v), got) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}
