package analysis

import (
	"errors"
	"fmt"

	"github.com/aurafarma/backend-go/internal/domain"
)

// ErrItemValidated is returned when a recalculation would touch an item
// that has already been validated by a pharmacist. Validated items keep
// their rate mode and audited quantity until explicitly unlocked.
var ErrItemValidated = errors.New("item is validated; unlock it before changing rate mode or quantity")

// SwitchRateMode re-derives an item's assessment, reorder suggestion and
// manual quantity from the selected rate variant. History is never
// touched; toggling back restores the previous outputs bit for bit.
//
// For a validated item this is a refusal, not a partial update: no field
// changes and ErrItemValidated is returned.
func SwitchRateMode(item *domain.AnalyzedItem, mode domain.RateMode, validated bool) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown rate mode %q", mode)
	}
	if validated {
		return ErrItemValidated
	}

	item.SelectedRateMode = mode
	rate := item.Estimate.Rate(mode)
	item.Assessment = Classify(item.CurrentStock, rate)
	item.Reorder = SuggestReorder(item.CurrentStock, rate, item.UnitPrice, item.Assessment.Status, item.Estimate.IsSporadic, item.Excluded)
	item.ExpiryRisk = AssessExpiryRisk(item.Assessment)
	item.ManualQuantity = item.Reorder.Quantity

	return nil
}
