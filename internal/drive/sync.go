package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/aurafarma/backend-go/internal/domain"
	"github.com/aurafarma/backend-go/internal/ingest"
	"github.com/aurafarma/backend-go/internal/service"
)

// SyncService downloads consumption exports from Drive and feeds them
// into the analysis engine. It remembers file modification times so a
// folder sweep only re-analyzes files that changed.
type SyncService struct {
	driveService *Service
	analysis     *service.AnalysisService
	downloadDir  string

	mu   sync.Mutex
	seen map[string]string // file id -> modifiedTime of last sync
}

func NewSyncService(driveService *Service, analysis *service.AnalysisService, downloadDir string) *SyncService {
	return &SyncService{
		driveService: driveService,
		analysis:     analysis,
		downloadDir:  downloadDir,
		seen:         make(map[string]string),
	}
}

// SyncFile downloads one export and runs an analysis over it.
func (s *SyncService) SyncFile(ctx context.Context, fileID, referenceMonth string) (domain.AnalysisResult, error) {
	meta, err := s.driveService.GetFile(fileID)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	localPath, err := s.download(meta)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	items, err := ingest.ParseFile(localPath)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("could not parse %s: %w", meta.Name, err)
	}
	if len(items) == 0 {
		return domain.AnalysisResult{}, fmt.Errorf("export %s has no data rows", meta.Name)
	}

	result, err := s.analysis.Run(ctx, items, referenceMonth, true)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	s.mu.Lock()
	s.seen[meta.ID] = meta.ModifiedTime
	s.mu.Unlock()

	log.Info().
		Str("file", meta.Name).
		Str("run_id", result.ID).
		Int("items", len(result.Items)).
		Msg("drive: export analyzed")
	return result, nil
}

// SyncFolder sweeps a folder and analyzes every new or modified export.
// Returns the names of files that were synced.
func (s *SyncService) SyncFolder(ctx context.Context, folderID, referenceMonth string) ([]string, error) {
	files, err := s.driveService.ListFiles(folderID)
	if err != nil {
		return nil, err
	}

	var synced []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return synced, ctx.Err()
		default:
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}

		s.mu.Lock()
		fresh := s.seen[f.ID] != f.ModifiedTime
		s.mu.Unlock()
		if !fresh {
			continue
		}

		if _, err := s.SyncFile(ctx, f.ID, referenceMonth); err != nil {
			// One broken export must not stall the sweep.
			log.Warn().Err(err).Str("file", f.Name).Msg("drive: export sync failed")
			continue
		}
		synced = append(synced, f.Name)
	}

	return synced, nil
}

// download pulls the file into the download dir. XLSX exports are
// converted to CSV so everything downstream reads one format.
func (s *SyncService) download(meta *File) (string, error) {
	if err := os.MkdirAll(s.downloadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	localPath := filepath.Join(s.downloadDir, meta.Name)
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := s.driveService.DownloadFile(meta.ID, out); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to download %s: %w", meta.Name, err)
	}
	out.Close()

	if strings.ToLower(filepath.Ext(meta.Name)) != ".xlsx" {
		return localPath, nil
	}

	csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
	if err := convertXLSXToCSV(localPath, csvPath); err != nil {
		return "", fmt.Errorf("failed to convert %s to csv: %w", meta.Name, err)
	}
	// Best-effort remove the source XLSX
	_ = os.Remove(localPath)
	return csvPath, nil
}
