// Package retention keeps the spool database and the export directory from
// growing without bound. Terminal jobs older than the cutoff are dropped
// (their history rows remain), and stale fallback files are removed.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"labelpress/internal/db"
)

type Config struct {
	Days      int
	ExportDir string
}

type Sweeper struct {
	days      int
	exportDir string
	log       zerolog.Logger
	stopCh    chan struct{}
	mu        sync.Mutex
}

func NewSweeper(cfg Config, log zerolog.Logger) *Sweeper {
	if cfg.Days <= 0 {
		cfg.Days = 30
	}
	return &Sweeper{
		days:      cfg.Days,
		exportDir: cfg.ExportDir,
		log:       log,
		stopCh:    make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.runDaily()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) runDaily() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Sweep(context.Background()); err != nil {
				s.log.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

// Sweep applies the cutoff once. Safe to call concurrently with the daily
// run; only one sweep executes at a time.
func (s *Sweeper) Sweep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -s.days)

	removed, err := s.pruneJobs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune jobs: %w", err)
	}

	files, err := s.pruneExports(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune exports: %w", err)
	}

	if removed > 0 || files > 0 {
		s.log.Info().Int64("jobs", removed).Int("files", files).
			Time("cutoff", cutoff).Msg("retention sweep done")
	}
	return nil
}

func (s *Sweeper) pruneJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.GetDB().ExecContext(ctx, `
		DELETE FROM print_jobs
		WHERE status IN ('sent', 'exported', 'failed', 'cancelled')
		AND completed_at IS NOT NULL
		AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Sweeper) pruneExports(cutoff time.Time) (int, error) {
	if s.exportDir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(s.exportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".tspl") && !strings.HasSuffix(name, ".png") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.exportDir, name)); err != nil {
			s.log.Warn().Err(err).Str("file", name).Msg("failed to remove stale export")
			continue
		}
		removed++
	}
	return removed, nil
}
