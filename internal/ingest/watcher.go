package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per file
	SkipHidden  bool
}

// StartWatcher emits routable file paths created or written under the roots.
// Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && routable(path) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("failed to add root directory", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		pending := map[string]time.Time{}
		ticker := time.NewTicker(tickFor(cfg.Debounce))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op.Has(fsnotify.Create) {
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if routable(e.Name) && (e.Op.Has(fsnotify.Create) || e.Op.Has(fsnotify.Write)) {
					if cfg.Debounce <= 0 {
						if !emit(e.Name) {
							return
						}
						continue
					}
					pending[e.Name] = time.Now().Add(cfg.Debounce)
				}
			case now := <-ticker.C:
				for p, due := range pending {
					if now.Before(due) {
						continue
					}
					delete(pending, p)
					if !emit(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func tickFor(debounce time.Duration) time.Duration {
	switch {
	case debounce <= 0:
		return time.Second
	case debounce < 20*time.Millisecond:
		return 5 * time.Millisecond
	}
	return debounce / 4
}

// Watch feeds watcher events into the ingestor until ctx is done.
func Watch(ctx context.Context, cfg WatchConfig, ing Ingestor, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	events, errs, err := StartWatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("watching for input files", "roots", cfg.Roots, "debounce", cfg.Debounce)
	for {
		select {
		case p, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			res, err := ing.IngestPath(ctx, p)
			if err != nil {
				logger.Warn("ingest failed", "path", p, "error", err)
				continue
			}
			logger.Debug("ingested", "path", res.SourcePath, "run_id", res.RunID, "deduplicated", res.Deduplicated)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
