package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurafarma/backend-go/internal/analysis"
	"github.com/aurafarma/backend-go/internal/config"
	"github.com/aurafarma/backend-go/internal/domain"
	"github.com/aurafarma/backend-go/internal/repository/postgres"
	"github.com/aurafarma/backend-go/internal/review"
)

type memoryRepo struct {
	mu        sync.Mutex
	snapshots map[string]domain.Snapshot
	order     []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{snapshots: make(map[string]domain.Snapshot)}
}

func (r *memoryRepo) Save(ctx context.Context, snapshot domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := snapshot.Result.ID
	if _, ok := r.snapshots[id]; !ok {
		r.order = append(r.order, id)
	}
	r.snapshots[id] = snapshot
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, runID string) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[runID]
	if !ok {
		return domain.Snapshot{}, postgres.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (r *memoryRepo) GetLatest(ctx context.Context) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return domain.Snapshot{}, postgres.ErrSnapshotNotFound
	}
	return r.snapshots[r.order[len(r.order)-1]], nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var runs []domain.RunSummary
	for i := len(r.order) - 1; i >= 0 && len(runs) < limit; i-- {
		s := r.snapshots[r.order[i]]
		runs = append(runs, domain.RunSummary{
			RunID:          s.Result.ID,
			ReferenceMonth: s.Result.ReferenceMonth,
			TotalItems:     len(s.Result.Items),
			SavedAt:        s.SavedAt,
		})
	}
	return runs, nil
}

func (r *memoryRepo) Delete(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, runID)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Review: config.ReviewConfig{CooldownSeconds: 0},
	}
}

func testRecords() []domain.ItemRecord {
	h := func(values ...float64) domain.ConsumptionHistory { return domain.ConsumptionHistory(values) }
	return []domain.ItemRecord{
		{
			ID: "MED-001", Name: "AMOXICILINA 500MG", CurrentStock: 1000, UnitPrice: 0.5,
			History: h(450, 480, 460, 2000, 460, 450, 455, 460, 470, 480, 450, 460),
		},
		{
			ID: "MED-002", Name: "PARACETAMOL 500MG", CurrentStock: 0, UnitPrice: 0.1,
			History: h(200, 210, 190, 220, 200, 205, 195, 200, 210, 190, 200, 210),
		},
		{
			ID: "MED-003", Name: "RANITIDINA 300MG", CurrentStock: 5, UnitPrice: 1.5,
			History: h(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		},
		{
			ID: "MED-004", Name: "VACUNA ANTIRRABICA", CurrentStock: 1, UnitPrice: 12,
			History: h(0, 0, 10, 0, 0, 5, 0, 0, 0, 15, 0, 0),
		},
	}
}

func newTestService(t *testing.T) (*AnalysisService, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	return NewAnalysisService(repo, nil, nil, testConfig()), repo
}

func TestRunCreatesAndPersistsSession(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	result, err := svc.Run(ctx, testRecords(), "2026-07", true)
	require.NoError(t, err)
	assert.Len(t, result.Items, 4)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, result.ID, current.ID)

	saved, err := repo.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Result.Items, 4)

	// Cold-chain exclusion applied through the configured policy.
	vaccine := current.Item("MED-004")
	require.NotNil(t, vaccine)
	assert.True(t, vaccine.Excluded)
	assert.Zero(t, vaccine.Reorder.Quantity)
}

func TestNoSessionErrors(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Current()
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = svc.Items(domain.ItemFilter{})
	assert.ErrorIs(t, err, ErrNoSession)

	_, _, err = svc.ExportReport(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestItemsFilterAndPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Run(ctx, testRecords(), "2026-07", false)
	require.NoError(t, err)

	page, err := svc.Items(domain.ItemFilter{PendingOnly: true})
	require.NoError(t, err)
	// MED-003 is NO_ROTATION (exempt); the other three are pending.
	assert.Equal(t, 3, page.Total)

	page, err = svc.Items(domain.ItemFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Items, 2)
}

func TestSwitchModeUpdatesTotals(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	result, err := svc.Run(ctx, testRecords(), "2026-07", false)
	require.NoError(t, err)
	before := result.SuggestedInvest

	item, err := svc.SwitchMode(ctx, "MED-001", domain.RateModeRaw)
	require.NoError(t, err)
	assert.Equal(t, domain.RateModeRaw, item.SelectedRateMode)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Greater(t, current.SuggestedInvest, before, "raw mode inflates the spiked item's order")
}

func TestValidatedItemIsFrozen(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Run(ctx, testRecords(), "2026-07", false)
	require.NoError(t, err)

	require.NoError(t, svc.ValidateItem(ctx, "MED-001"))

	_, err = svc.SwitchMode(ctx, "MED-001", domain.RateModeRaw)
	assert.ErrorIs(t, err, analysis.ErrItemValidated)

	_, err = svc.SetManualQuantity(ctx, "MED-001", 99)
	assert.ErrorIs(t, err, analysis.ErrItemValidated)
}

func TestUnlockResetsManualQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Run(ctx, testRecords(), "2026-07", false)
	require.NoError(t, err)

	item, err := svc.SetManualQuantity(ctx, "MED-001", 1800)
	require.NoError(t, err)
	suggested := item.Reorder.Quantity
	require.NoError(t, svc.ValidateItem(ctx, "MED-001"))

	_, err = svc.UnlockItem(ctx, "MED-001", false)
	assert.ErrorIs(t, err, review.ErrConfirmationRequired)

	unlocked, err := svc.UnlockItem(ctx, "MED-001", true)
	require.NoError(t, err)
	assert.Equal(t, suggested, unlocked.ManualQuantity)
}

func TestExportGatedOnAuditCompletion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	result, err := svc.Run(ctx, testRecords(), "2026-07", false)
	require.NoError(t, err)

	_, _, err = svc.ExportReport(ctx)
	assert.ErrorIs(t, err, ErrAuditIncomplete)

	for _, item := range result.Items {
		if !item.Exempt() {
			require.NoError(t, svc.ValidateItem(ctx, item.ID))
		}
	}

	status, err := svc.Review("")
	require.NoError(t, err)
	assert.True(t, status.Complete)
	assert.Empty(t, status.NextPendingID)

	report, objectName, err := svc.ExportReport(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, report)
	assert.Contains(t, objectName, result.ID)
}

func TestAdditionalItemsAppearInReport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	result, err := svc.Run(ctx, testRecords(), "2026-07", false)
	require.NoError(t, err)

	added, err := svc.AddAdditionalItem(ctx, domain.AdditionalItem{Name: "ALCOHOL 70%", Quantity: 24})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	_, err = svc.AddAdditionalItem(ctx, domain.AdditionalItem{Name: "SIN CANTIDAD"})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	for _, item := range result.Items {
		if !item.Exempt() {
			require.NoError(t, svc.ValidateItem(ctx, item.ID))
		}
	}
	report, _, err := svc.ExportReport(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(report), "ALCOHOL 70%")
}

func TestLoadRunRestoresReviewState(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	result, err := svc.Run(ctx, testRecords(), "2026-07", false)
	require.NoError(t, err)
	require.NoError(t, svc.ValidateItem(ctx, "MED-001"))
	require.NoError(t, svc.Save(ctx))

	// A fresh service resumes the saved session with review intact.
	other := NewAnalysisService(repo, nil, nil, testConfig())
	loaded, err := other.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.ID, loaded.ID)

	status, err := other.Review("")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Validated)

	runs, err := other.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.ID, runs[0].RunID)
}
