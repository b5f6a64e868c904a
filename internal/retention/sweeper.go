// Package retention prunes old run artifacts and stored records on a schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes stored records created before t.
type Pruner interface {
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

type Config struct {
	OutputDir string        // parent of the run directories
	UploadDir string        // parent of the per-upload directories, optional
	MaxAge    time.Duration // runs older than this are removed; <= 0 disables sweeping
	Schedule  string        // standard 5-field cron spec, default hourly
}

// Report is what one sweep removed.
type Report struct {
	RunDirs    int   `json:"run_dirs"`
	UploadDirs int   `json:"upload_dirs"`
	Records    int64 `json:"records"`
}

// Sweeper removes run directories (and optionally stored records) older than
// MaxAge.
type Sweeper struct {
	cfg    Config
	store  Pruner
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

func NewSweeper(cfg Config, store Pruner, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	s := &Sweeper{cfg: cfg, store: store, logger: logger, now: time.Now}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(cfg.Schedule, s.runScheduled); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("retention sweeper started", "schedule", s.cfg.Schedule, "max_age", s.cfg.MaxAge)
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("retention sweeper stopped")
}

func (s *Sweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("retention sweep failed", "error", err)
	}
}

// Sweep removes everything older than MaxAge once.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var rep Report
	if s.cfg.MaxAge <= 0 {
		return rep, nil
	}
	cutoff := s.now().Add(-s.cfg.MaxAge)

	n, err := s.pruneDirs(ctx, s.cfg.OutputDir, cutoff)
	rep.RunDirs = n
	if err != nil {
		return rep, fmt.Errorf("output dir: %w", err)
	}
	if s.cfg.UploadDir != "" {
		n, err := s.pruneDirs(ctx, s.cfg.UploadDir, cutoff)
		rep.UploadDirs = n
		if err != nil {
			return rep, fmt.Errorf("upload dir: %w", err)
		}
	}

	if s.store != nil {
		n, err := s.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			return rep, fmt.Errorf("prune records: %w", err)
		}
		rep.Records = n
	}
	s.logger.Info("retention sweep done", "run_dirs", rep.RunDirs, "upload_dirs", rep.UploadDirs, "records", rep.Records, "cutoff", cutoff)
	return rep, nil
}

// pruneDirs removes the subdirectories of root last modified before cutoff.
// A missing root is empty.
func (s *Sweeper) pruneDirs(ctx context.Context, root string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove expired dir", "dir", dir, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
