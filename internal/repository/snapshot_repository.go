// backend-go/internal/repository/snapshot_repository.go
package repository

import (
	"context"

	"github.com/aurafarma/backend-go/internal/domain"
)

// SnapshotRepository persists analysis runs with their review state and
// manual additions. Implemented by the postgres snapshot store; the
// service falls back to in-memory-only sessions when no database is
// configured.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot domain.Snapshot) error
	Get(ctx context.Context, runID string) (domain.Snapshot, error)
	GetLatest(ctx context.Context) (domain.Snapshot, error)
	List(ctx context.Context, limit int) ([]domain.RunSummary, error)
	Delete(ctx context.Context, runID string) error
}
