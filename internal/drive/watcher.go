package drive

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Watcher periodically sweeps the configured Drive folder for new
// consumption exports.
type Watcher struct {
	sync     *SyncService
	folderID string
	interval time.Duration
}

func NewWatcher(sync *SyncService, folderID string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Watcher{
		sync:     sync,
		folderID: folderID,
		interval: interval,
	}
}

// Run blocks, sweeping the folder on every tick until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	log.Info().
		Str("folder_id", w.folderID).
		Dur("interval", w.interval).
		Msg("drive: watcher started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Sweep once at startup instead of waiting a full interval.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("drive: watcher stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	synced, err := w.sync.SyncFolder(ctx, w.folderID, "")
	if err != nil {
		log.Error().Err(err).Msg("drive: folder sweep failed")
		return
	}
	if len(synced) > 0 {
		log.Info().Strs("files", synced).Msg("drive: swept new exports")
	}
}
