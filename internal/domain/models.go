// backend-go/internal/domain/models.go
package domain

import (
	"fmt"
	"time"
)

// HistoryMonths is the fixed length of a consumption history: the 12
// months ending at the reference month, oldest first.
const HistoryMonths = 12

// ConsumptionHistory holds monthly consumption for the last 12 months.
// It is immutable once loaded for an analysis run.
type ConsumptionHistory []float64

// Validate checks the length and non-negativity invariants.
func (h ConsumptionHistory) Validate() error {
	if len(h) != HistoryMonths {
		return fmt.Errorf("consumption history must have %d months, got %d", HistoryMonths, len(h))
	}
	for i, v := range h {
		if v < 0 {
			return fmt.Errorf("consumption history month %d is negative: %v", i, v)
		}
		if v != v { // NaN
			return fmt.Errorf("consumption history month %d is not a number", i)
		}
	}
	return nil
}

// ActiveMonths returns the values of months with consumption > 0.
func (h ConsumptionHistory) ActiveMonths() []float64 {
	active := make([]float64, 0, len(h))
	for _, v := range h {
		if v > 0 {
			active = append(active, v)
		}
	}
	return active
}

// ItemRecord is a single inventory row as produced by ingestion.
type ItemRecord struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	CurrentStock float64            `json:"current_stock"`
	UnitPrice    float64            `json:"unit_price"`
	History      ConsumptionHistory `json:"history"`

	// Optional catalogue fields carried through for filtering and export.
	Form      string `json:"form,omitempty"`
	Type      string `json:"type,omitempty"`
	Petitorio string `json:"petitorio,omitempty"`
	Situation string `json:"situation,omitempty"`
}

// ConsumptionEstimate is the outlier-adjusted consumption profile of an item.
type ConsumptionEstimate struct {
	AdjustedRate     float64 `json:"adjusted_rate"`
	RawRate          float64 `json:"raw_rate"`
	OutlierThreshold float64 `json:"outlier_threshold"`
	OutlierCount     int     `json:"outlier_count"`
	IsSporadic       bool    `json:"is_sporadic"`
	Explanation      string  `json:"explanation"`
}

// Rate returns the rate variant selected by mode.
func (e ConsumptionEstimate) Rate(mode RateMode) float64 {
	if mode == RateModeRaw {
		return e.RawRate
	}
	return e.AdjustedRate
}

// StockAssessment is the classification of current stock against the
// active consumption rate.
type StockAssessment struct {
	ActiveRate       float64     `json:"active_rate"`
	MonthsOfCoverage Months      `json:"months_of_coverage"`
	Status           StockStatus `json:"status"`
}

// ReorderResult is the system-suggested order for an item.
type ReorderResult struct {
	Quantity   int     `json:"quantity"`
	Investment float64 `json:"investment"`
}

// AnalyzedItem is an ItemRecord together with all derived results and
// the per-item user overrides.
type AnalyzedItem struct {
	ItemRecord

	Estimate   ConsumptionEstimate `json:"estimate"`
	Assessment StockAssessment     `json:"assessment"`
	Reorder    ReorderResult       `json:"reorder"`
	ExpiryRisk ExpiryRisk          `json:"expiry_risk"`

	// Excluded marks items the exclusion policy removed from reorder
	// math (cold-chain items never generate a requirement).
	Excluded bool `json:"excluded"`

	// SelectedRateMode and ManualQuantity are the only mutable fields;
	// both freeze once the item is validated.
	SelectedRateMode RateMode `json:"selected_rate_mode"`
	ManualQuantity   int      `json:"manual_quantity"`

	// Invalid tags rows the orchestrator could not analyze. The batch
	// continues; the row surfaces for human attention instead of
	// aborting the run.
	Invalid       bool   `json:"invalid,omitempty"`
	InvalidReason string `json:"invalid_reason,omitempty"`
}

// ActiveRate returns the consumption rate currently driving the item.
func (a AnalyzedItem) ActiveRate() float64 {
	return a.Estimate.Rate(a.SelectedRateMode)
}

// Exempt reports whether the item never requires pharmacist review.
func (a AnalyzedItem) Exempt() bool {
	return a.Assessment.Status.Exempt()
}

// ManualInvestment values the audited quantity at unit price.
func (a AnalyzedItem) ManualInvestment() float64 {
	return float64(a.ManualQuantity) * a.UnitPrice
}

// AdditionalItem is a free-form line item added by the pharmacist and
// appended to the exported requirement.
type AdditionalItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Observation string `json:"observation,omitempty"`
	Code        string `json:"code,omitempty"`
	Form        string `json:"form,omitempty"`
}

// Indicators aggregates fleet-level availability for a run.
type Indicators struct {
	AvailabilityScore float64          `json:"availability_score"`
	AvailabilityTier  AvailabilityTier `json:"availability_tier"`
	TotalItems        int              `json:"total_items"`
	AvailableItems    int              `json:"available_items"`
	OutOfStockItems   int              `json:"out_of_stock_items"`
	OutlierItems      int              `json:"outlier_items"`
}

// AnalysisResult is the aggregate output of one analysis run. It is
// recreated wholesale on each run; past results are never mutated.
type AnalysisResult struct {
	ID                string         `json:"id"`
	Items             []AnalyzedItem `json:"items"`
	Indicators        Indicators     `json:"indicators"`
	SuggestedInvest   float64        `json:"suggested_investment"`
	EstimatedSavings  float64        `json:"estimated_savings"`
	Summary           string         `json:"summary"`
	Timestamp         time.Time      `json:"timestamp"`
	ReferenceMonth    string         `json:"reference_month,omitempty"`
	ColdChainExcluded bool           `json:"cold_chain_excluded"`
}

// Item returns a pointer to the item with the given id, or nil.
func (r *AnalysisResult) Item(id string) *AnalyzedItem {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return &r.Items[i]
		}
	}
	return nil
}

// ReviewState maps item id to "validated by a human". It starts empty
// for every analysis run and is discarded when a new run replaces the
// item set.
type ReviewState map[string]bool

// Validated reports whether the item has been confirmed.
func (s ReviewState) Validated(id string) bool {
	return s[id]
}

// Clone returns an independent copy.
func (s ReviewState) Clone() ReviewState {
	out := make(ReviewState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// RunSummary is a listing row for saved analysis runs.
type RunSummary struct {
	RunID          string    `db:"run_id" json:"run_id"`
	ReferenceMonth string    `db:"reference_month" json:"reference_month"`
	TotalItems     int       `db:"total_items" json:"total_items"`
	SavedAt        time.Time `db:"saved_at" json:"saved_at"`
}

// Snapshot is the JSON-serializable persistence unit: an analysis
// result plus the review state and manual additions that belong to it.
type Snapshot struct {
	Result     AnalysisResult   `json:"result"`
	Review     ReviewState      `json:"review"`
	Additional []AdditionalItem `json:"additional,omitempty"`
	SavedAt    time.Time        `json:"saved_at"`
}
