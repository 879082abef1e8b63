// backend-go/internal/repository/postgres/snapshot_repository.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aurafarma/backend-go/internal/domain"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a run id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

type snapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *snapshotRepository {
	return &snapshotRepository{db: db}
}

// EnsureSchema creates the snapshot table when it does not exist yet.
func (r *snapshotRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS analysis_snapshots (
			run_id TEXT PRIMARY KEY,
			reference_month TEXT NOT NULL DEFAULT '',
			total_items INT NOT NULL DEFAULT 0,
			payload JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}
	return nil
}

// Save upserts the snapshot for its run id. The whole snapshot is stored
// as one JSONB payload: runs are replaced wholesale, never patched, so a
// relational breakdown of items would only add write amplification.
func (r *snapshotRepository) Save(ctx context.Context, snapshot domain.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO analysis_snapshots (
				run_id, reference_month, total_items, payload, saved_at
			) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (run_id)
			DO UPDATE SET
				reference_month = EXCLUDED.reference_month,
				total_items = EXCLUDED.total_items,
				payload = EXCLUDED.payload,
				saved_at = EXCLUDED.saved_at
		`
		_, err := tx.ExecContext(
			ctx,
			query,
			snapshot.Result.ID,
			snapshot.Result.ReferenceMonth,
			len(snapshot.Result.Items),
			payload,
			snapshot.SavedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert snapshot: %w", err)
		}
		return nil
	})
}

// Get loads the snapshot for a run id.
func (r *snapshotRepository) Get(ctx context.Context, runID string) (domain.Snapshot, error) {
	var payload []byte
	query := `SELECT payload FROM analysis_snapshots WHERE run_id = $1`
	if err := r.db.GetContext(ctx, &payload, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to decode snapshot %s: %w", runID, err)
	}
	return snapshot, nil
}

// GetLatest loads the most recently saved snapshot.
func (r *snapshotRepository) GetLatest(ctx context.Context) (domain.Snapshot, error) {
	var runID string
	query := `SELECT run_id FROM analysis_snapshots ORDER BY saved_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &runID, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	return r.Get(ctx, runID)
}

// List returns run summaries, newest first.
func (r *snapshotRepository) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT run_id, reference_month, total_items, saved_at
		FROM analysis_snapshots
		ORDER BY saved_at DESC
		LIMIT $1
	`
	var runs []domain.RunSummary
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return runs, nil
}

// Delete removes a saved run.
func (r *snapshotRepository) Delete(ctx context.Context, runID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_snapshots WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}
