// Package review tracks per-item pharmacist validation for an analysis
// run: the pending/validated state machine, the validation cool-down and
// the audit-completion gate that report export depends on.
package review

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aurafarma/backend-go/internal/domain"
)

var (
	// ErrCooldownActive means the validation cool-down for the focused
	// item has not elapsed yet.
	ErrCooldownActive = errors.New("validation cool-down has not elapsed")

	// ErrExemptItem means the item's status never requires review.
	ErrExemptItem = errors.New("item status is exempt from review")

	// ErrNotValidated means unlock was requested for a pending item.
	ErrNotValidated = errors.New("item is not validated")

	// ErrConfirmationRequired means unlocking would discard a manual
	// quantity that differs from the current suggestion; the caller must
	// confirm before the transition proceeds.
	ErrConfirmationRequired = errors.New("unlock discards the manual quantity; confirmation required")
)

// Clock abstracts wall time so the cool-down is testable.
type Clock func() time.Time

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(t *Tracker) { t.now = clock }
}

// Tracker owns the review state for one analysis run. It is
// single-writer state: one pharmacist session at a time.
type Tracker struct {
	cooldown time.Duration
	now      Clock

	state     domain.ReviewState
	focusedID string
	readyAt   time.Time
}

// NewTracker creates a tracker with the given validation cool-down.
// A zero cool-down disables the lock entirely.
func NewTracker(cooldown time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		cooldown: cooldown,
		now:      time.Now,
		state:    make(domain.ReviewState),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns a copy of the review state for persistence.
func (t *Tracker) State() domain.ReviewState {
	return t.state.Clone()
}

// Restore replaces the review state, e.g. when resuming a saved run.
func (t *Tracker) Restore(state domain.ReviewState) {
	t.state = state.Clone()
	if t.state == nil {
		t.state = make(domain.ReviewState)
	}
	t.focusedID = ""
	t.readyAt = time.Time{}
}

// Reset discards all review state; used when a new analysis run
// replaces the item set.
func (t *Tracker) Reset() {
	t.state = make(domain.ReviewState)
	t.focusedID = ""
	t.readyAt = time.Time{}
}

// IsValidated reports whether the item has been confirmed.
func (t *Tracker) IsValidated(id string) bool {
	return t.state.Validated(id)
}

// Focus marks the item as the one on display and restarts its cool-down.
// Focusing the already-focused item is a no-op: the countdown keeps
// running.
func (t *Tracker) Focus(id string) {
	if id == t.focusedID {
		return
	}
	t.focusedID = id
	t.restartCooldown()
}

// NoteModeChange restarts the cool-down when the rate mode of the
// currently displayed item is toggled; the pharmacist is looking at new
// numbers and gets the full delay again.
func (t *Tracker) NoteModeChange(id string) {
	if id == t.focusedID {
		t.restartCooldown()
	}
}

// Remaining returns how long until the item can be validated. Zero means
// the action is enabled.
func (t *Tracker) Remaining(id string) time.Duration {
	if t.cooldown <= 0 || id != t.focusedID {
		return 0
	}
	remaining := t.readyAt.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *Tracker) restartCooldown() {
	if t.cooldown > 0 {
		t.readyAt = t.now().Add(t.cooldown)
	}
}

// Validate confirms the item, freezing its manual quantity as the
// audited value. Validating an already-validated item is a no-op.
// The cool-down is advisory pacing, not data protection, but it is
// enforced here so API callers get the same behavior as the UI.
func (t *Tracker) Validate(item *domain.AnalyzedItem) error {
	if item.Exempt() {
		return ErrExemptItem
	}
	if t.state.Validated(item.ID) {
		return nil
	}
	if t.cooldown > 0 {
		if item.ID != t.focusedID {
			// Validating an item that was never displayed starts its
			// countdown rather than bypassing it.
			t.Focus(item.ID)
			return ErrCooldownActive
		}
		if t.now().Before(t.readyAt) {
			return ErrCooldownActive
		}
	}

	t.state[item.ID] = true
	log.Debug().Str("item_id", item.ID).Int("quantity", item.ManualQuantity).Msg("review: item validated")
	return nil
}

// Unlock returns a validated item to pending. When the manual quantity
// differs from the current suggestion the transition discards it, so it
// must be confirmed; matching values take the non-destructive fast path.
// On success the manual quantity resets to the suggestion and, if the
// item is on display, its cool-down restarts.
func (t *Tracker) Unlock(item *domain.AnalyzedItem, confirmed bool) error {
	if !t.state.Validated(item.ID) {
		return ErrNotValidated
	}
	if item.ManualQuantity != item.Reorder.Quantity && !confirmed {
		return ErrConfirmationRequired
	}

	delete(t.state, item.ID)
	item.ManualQuantity = item.Reorder.Quantity
	if item.ID == t.focusedID {
		t.restartCooldown()
	}
	log.Debug().Str("item_id", item.ID).Msg("review: item unlocked")
	return nil
}

// Completion summarizes audit progress over a run.
type Completion struct {
	Validated int     `json:"validated"`
	Total     int     `json:"total"`
	Progress  float64 `json:"progress"`
	Complete  bool    `json:"complete"`
}

// Progress computes audit completion over the non-exempt items. With
// zero non-exempt items the audit is trivially complete at 100%.
func Progress(items []domain.AnalyzedItem, state domain.ReviewState) Completion {
	c := Completion{}
	for _, item := range items {
		if item.Exempt() {
			continue
		}
		c.Total++
		if state.Validated(item.ID) {
			c.Validated++
		}
	}
	if c.Total == 0 {
		return Completion{Progress: 100, Complete: true}
	}
	c.Progress = 100 * float64(c.Validated) / float64(c.Total)
	c.Complete = c.Validated == c.Total
	return c
}

// NextPending returns the id of the next non-exempt pending item in
// display order after afterID, wrapping around once. It returns false
// when nothing is left to review.
func NextPending(items []domain.AnalyzedItem, state domain.ReviewState, afterID string) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	start := 0
	for i, item := range items {
		if item.ID == afterID {
			start = i + 1
			break
		}
	}
	for offset := 0; offset < len(items); offset++ {
		item := items[(start+offset)%len(items)]
		if item.ID == afterID || item.Exempt() || state.Validated(item.ID) {
			continue
		}
		return item.ID, true
	}
	return "", false
}
