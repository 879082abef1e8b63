// backend-go/internal/service/analysis_service.go
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aurafarma/backend-go/internal/analysis"
	"github.com/aurafarma/backend-go/internal/cache"
	"github.com/aurafarma/backend-go/internal/config"
	"github.com/aurafarma/backend-go/internal/domain"
	"github.com/aurafarma/backend-go/internal/export"
	"github.com/aurafarma/backend-go/internal/policy"
	"github.com/aurafarma/backend-go/internal/repository"
	"github.com/aurafarma/backend-go/internal/review"
	"github.com/aurafarma/backend-go/internal/storage"
)

var (
	// ErrNoSession means no analysis run is loaded.
	ErrNoSession = errors.New("no analysis session; run or load an analysis first")

	// ErrItemNotFound means the item id is not part of the current run.
	ErrItemNotFound = errors.New("item not found in current analysis")

	// ErrAuditIncomplete blocks report export until every non-exempt
	// item has been validated.
	ErrAuditIncomplete = errors.New("audit incomplete; all pending items must be validated before export")

	// ErrInvalidQuantity rejects negative manual quantities.
	ErrInvalidQuantity = errors.New("manual quantity must be zero or positive")
)

const defaultPageSize = 50

// ItemPage is one page of filtered items plus review context.
type ItemPage struct {
	Items    []domain.AnalyzedItem `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// ReviewStatus combines audit progress with the suggested next item.
type ReviewStatus struct {
	review.Completion
	NextPendingID string `json:"next_pending_id,omitempty"`
}

// AnalysisService owns the live review session: one analysis run, its
// review tracker and the pharmacist's manual additions. All access goes
// through the service so session state stays consistent under
// concurrent API calls.
type AnalysisService struct {
	repo         repository.SnapshotRepository
	sessionCache cache.SessionCache
	objectStore  storage.ObjectStorage

	cooldown time.Duration
	keywords []string

	mu sync.Mutex

	result     *domain.AnalysisResult
	tracker    *review.Tracker
	additional []domain.AdditionalItem
}

// NewAnalysisService wires the session owner. repo and objectStore may
// be nil: sessions then live in memory (and the cache, if enabled) only.
func NewAnalysisService(repo repository.SnapshotRepository, sessionCache cache.SessionCache, objectStore storage.ObjectStorage, cfg *config.Config) *AnalysisService {
	if sessionCache == nil {
		sessionCache = cache.NewNoopSessionCache()
	}
	cooldown := time.Duration(cfg.Review.CooldownSeconds) * time.Second
	s := &AnalysisService{
		repo:         repo,
		sessionCache: sessionCache,
		objectStore:  objectStore,
		cooldown:     cooldown,
		keywords:     cfg.App.ColdChainKeywords,
		tracker:      review.NewTracker(cooldown),
	}
	return s
}

// Run analyzes a batch of item records and replaces the current session.
// Review state for the previous run is discarded.
func (s *AnalysisService) Run(ctx context.Context, items []domain.ItemRecord, referenceMonth string, excludeColdChain bool) (domain.AnalysisResult, error) {
	var exclusion analysis.ExclusionPolicy
	if excludeColdChain {
		exclusion = policy.NewKeywordExclusion(s.keywords)
	}

	analyzer := analysis.NewAnalyzer(exclusion)
	result := analyzer.Analyze(items, referenceMonth, excludeColdChain)

	s.mu.Lock()
	s.result = &result
	s.tracker = review.NewTracker(s.cooldown)
	s.additional = nil
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persist(ctx, snapshot); err != nil {
		return domain.AnalysisResult{}, err
	}

	log.Info().
		Str("run_id", result.ID).
		Int("items", len(result.Items)).
		Float64("availability", result.Indicators.AvailabilityScore).
		Msg("analysis: run complete")
	return result, nil
}

// Current returns the loaded analysis result.
func (s *AnalysisService) Current() (domain.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.AnalysisResult{}, ErrNoSession
	}
	result := *s.result
	result.Items = append([]domain.AnalyzedItem(nil), s.result.Items...)
	return result, nil
}

// Items applies the filter and paginates.
func (s *AnalysisService) Items(filter domain.ItemFilter) (ItemPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ItemPage{}, ErrNoSession
	}

	matched := make([]domain.AnalyzedItem, 0, len(s.result.Items))
	for _, item := range s.result.Items {
		if filter.Match(item, s.tracker.IsValidated(item.ID)) {
			matched = append(matched, item)
		}
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	return ItemPage{
		Items:    matched[start:end],
		Total:    len(matched),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Item returns a single analyzed item by id.
func (s *AnalysisService) Item(id string) (domain.AnalyzedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.itemLocked(id)
	if err != nil {
		return domain.AnalyzedItem{}, err
	}
	return *item, nil
}

func (s *AnalysisService) itemLocked(id string) (*domain.AnalyzedItem, error) {
	if s.result == nil {
		return nil, ErrNoSession
	}
	item := s.result.Item(id)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return item, nil
}

// Focus marks the item as displayed, arming its validation cool-down.
func (s *AnalysisService) Focus(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.itemLocked(id); err != nil {
		return err
	}
	s.tracker.Focus(id)
	return nil
}

// CooldownRemaining reports how long until the item can be validated.
func (s *AnalysisService) CooldownRemaining(id string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Remaining(id)
}

// SwitchMode toggles an item between the adjusted and raw consumption
// rate, recomputing its assessment and suggestion. Validated items
// refuse the change.
func (s *AnalysisService) SwitchMode(ctx context.Context, id string, mode domain.RateMode) (domain.AnalyzedItem, error) {
	s.mu.Lock()
	item, err := s.itemLocked(id)
	if err != nil {
		s.mu.Unlock()
		return domain.AnalyzedItem{}, err
	}
	if err := analysis.SwitchRateMode(item, mode, s.tracker.IsValidated(id)); err != nil {
		s.mu.Unlock()
		return domain.AnalyzedItem{}, err
	}
	s.refreshAggregatesLocked()
	s.tracker.NoteModeChange(id)
	updated := *item
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.cacheSnapshot(ctx, snapshot)
	return updated, nil
}

// SetManualQuantity overrides the order quantity for a pending item.
func (s *AnalysisService) SetManualQuantity(ctx context.Context, id string, quantity int) (domain.AnalyzedItem, error) {
	if quantity < 0 {
		return domain.AnalyzedItem{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	item, err := s.itemLocked(id)
	if err != nil {
		s.mu.Unlock()
		return domain.AnalyzedItem{}, err
	}
	if s.tracker.IsValidated(id) {
		s.mu.Unlock()
		return domain.AnalyzedItem{}, analysis.ErrItemValidated
	}
	item.ManualQuantity = quantity
	updated := *item
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.cacheSnapshot(ctx, snapshot)
	return updated, nil
}

// ValidateItem confirms an item's audited quantity.
func (s *AnalysisService) ValidateItem(ctx context.Context, id string) error {
	s.mu.Lock()
	item, err := s.itemLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.tracker.Validate(item); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.cacheSnapshot(ctx, snapshot)
	return nil
}

// UnlockItem returns a validated item to pending.
func (s *AnalysisService) UnlockItem(ctx context.Context, id string, confirmed bool) (domain.AnalyzedItem, error) {
	s.mu.Lock()
	item, err := s.itemLocked(id)
	if err != nil {
		s.mu.Unlock()
		return domain.AnalyzedItem{}, err
	}
	if err := s.tracker.Unlock(item, confirmed); err != nil {
		s.mu.Unlock()
		return domain.AnalyzedItem{}, err
	}
	updated := *item
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.cacheSnapshot(ctx, snapshot)
	return updated, nil
}

// Review reports audit progress and the next item to look at.
func (s *AnalysisService) Review(afterID string) (ReviewStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ReviewStatus{}, ErrNoSession
	}

	status := ReviewStatus{Completion: review.Progress(s.result.Items, s.tracker.State())}
	if next, ok := review.NextPending(s.result.Items, s.tracker.State(), afterID); ok {
		status.NextPendingID = next
	}
	return status, nil
}

// AddAdditionalItem appends a manual line item to the session.
func (s *AnalysisService) AddAdditionalItem(ctx context.Context, item domain.AdditionalItem) (domain.AdditionalItem, error) {
	if item.Name == "" {
		return domain.AdditionalItem{}, fmt.Errorf("additional item needs a name")
	}
	if item.Quantity <= 0 {
		return domain.AdditionalItem{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	if s.result == nil {
		s.mu.Unlock()
		return domain.AdditionalItem{}, ErrNoSession
	}
	if item.ID == "" {
		item.ID = fmt.Sprintf("ADD-%03d", len(s.additional)+1)
	}
	s.additional = append(s.additional, item)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.cacheSnapshot(ctx, snapshot)
	return item, nil
}

// AdditionalItems lists the session's manual line items.
func (s *AnalysisService) AdditionalItems() ([]domain.AdditionalItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil, ErrNoSession
	}
	out := make([]domain.AdditionalItem, len(s.additional))
	copy(out, s.additional)
	return out, nil
}

// ExportReport renders the requirement CSV. It is gated on audit
// completion and, when an object store is configured, also publishes the
// report there.
func (s *AnalysisService) ExportReport(ctx context.Context) ([]byte, string, error) {
	s.mu.Lock()
	if s.result == nil {
		s.mu.Unlock()
		return nil, "", ErrNoSession
	}
	if !review.Progress(s.result.Items, s.tracker.State()).Complete {
		s.mu.Unlock()
		return nil, "", ErrAuditIncomplete
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := export.WriteRequirementCSV(&buf, snapshot); err != nil {
		return nil, "", err
	}

	objectName := export.ReportObjectName(snapshot.Result.ID, time.Now())
	if s.objectStore != nil {
		if err := s.objectStore.UploadObject(ctx, objectName, buf.Bytes(), "text/csv"); err != nil {
			log.Warn().Err(err).Str("object", objectName).Msg("service: report upload failed")
		} else {
			log.Info().Str("object", objectName).Msg("service: report published")
		}
	}

	return buf.Bytes(), objectName, nil
}

// Save persists the session snapshot.
func (s *AnalysisService) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.result == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	return s.persist(ctx, snapshot)
}

// LoadRun replaces the session with a saved run.
func (s *AnalysisService) LoadRun(ctx context.Context, runID string) (domain.AnalysisResult, error) {
	if cached, ok, err := s.sessionCache.Get(ctx, runID); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("service: session cache read failed")
	} else if ok {
		return s.install(*cached), nil
	}

	if s.repo == nil {
		return domain.AnalysisResult{}, ErrNoSession
	}
	snapshot, err := s.repo.Get(ctx, runID)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	s.cacheSnapshot(ctx, snapshot)
	return s.install(snapshot), nil
}

// LoadLatest replaces the session with the most recently saved run.
func (s *AnalysisService) LoadLatest(ctx context.Context) (domain.AnalysisResult, error) {
	if id, ok, err := s.sessionCache.GetLatestID(ctx); err != nil {
		log.Warn().Err(err).Msg("service: session cache read failed")
	} else if ok {
		return s.LoadRun(ctx, id)
	}

	if s.repo == nil {
		return domain.AnalysisResult{}, ErrNoSession
	}
	snapshot, err := s.repo.GetLatest(ctx)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	s.cacheSnapshot(ctx, snapshot)
	return s.install(snapshot), nil
}

// Runs lists saved runs, newest first.
func (s *AnalysisService) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if s.repo == nil {
		return []domain.RunSummary{}, nil
	}
	return s.repo.List(ctx, limit)
}

func (s *AnalysisService) install(snapshot domain.Snapshot) domain.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := snapshot.Result
	s.result = &result
	s.tracker = review.NewTracker(s.cooldown)
	s.tracker.Restore(snapshot.Review)
	s.additional = snapshot.Additional
	return result
}

// refreshAggregatesLocked recomputes run totals after a per-item change.
func (s *AnalysisService) refreshAggregatesLocked() {
	s.result.SuggestedInvest = 0
	for _, item := range s.result.Items {
		s.result.SuggestedInvest += item.Reorder.Investment
	}
}

func (s *AnalysisService) snapshotLocked() domain.Snapshot {
	result := *s.result
	// Items are copied so marshaling after unlock never races a later
	// per-item mutation. Histories are immutable and safe to share.
	result.Items = make([]domain.AnalyzedItem, len(s.result.Items))
	copy(result.Items, s.result.Items)
	additional := make([]domain.AdditionalItem, len(s.additional))
	copy(additional, s.additional)
	return domain.Snapshot{
		Result:     result,
		Review:     s.tracker.State(),
		Additional: additional,
		SavedAt:    time.Now().UTC(),
	}
}

func (s *AnalysisService) persist(ctx context.Context, snapshot domain.Snapshot) error {
	if s.repo != nil {
		if err := s.repo.Save(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to persist run %s: %w", snapshot.Result.ID, err)
		}
	}
	s.cacheSnapshot(ctx, snapshot)
	return nil
}

func (s *AnalysisService) cacheSnapshot(ctx context.Context, snapshot domain.Snapshot) {
	if err := s.sessionCache.Set(ctx, &snapshot); err != nil {
		log.Warn().Err(err).Str("run_id", snapshot.Result.ID).Msg("service: session cache write failed")
	}
}
