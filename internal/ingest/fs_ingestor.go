package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joseph-ayodele/receptro/internal/async"
)

var ErrUnsupportedExt = errors.New("unsupported or missing extension")

// FSIngestor submits files from the local filesystem. Files whose content was
// already submitted are skipped unless Force is set.
type FSIngestor struct {
	queue  Submitter
	source string
	logger *slog.Logger
	Force  bool

	mu   sync.Mutex
	seen map[string]string // sha256 hex -> run ID
}

func NewFSIngestor(queue Submitter, source string, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{queue: queue, source: source, logger: logger, seen: map[string]string{}}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, err
	}
	out.SourcePath = abs
	if !routable(abs) {
		return out, fmt.Errorf("%w: %q", ErrUnsupportedExt, filepath.Ext(abs))
	}

	sum, err := hashFile(abs)
	if err != nil {
		i.logger.Error("hash failed", "path", abs, "error", err)
		return out, err
	}
	out.HashHex = sum

	i.mu.Lock()
	prev, dup := i.seen[sum]
	i.mu.Unlock()
	if dup && !i.Force {
		i.logger.Debug("skipping duplicate content", "path", abs, "run_id", prev)
		out.RunID = prev
		out.Deduplicated = true
		return out, nil
	}

	runID, err := i.queue.Enqueue(ctx, async.Job{Path: abs, Source: i.source})
	if err != nil {
		return out, err
	}
	i.mu.Lock()
	i.seen[sum] = runID
	i.mu.Unlock()
	out.RunID = runID
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each routable file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !routable(path) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("directory ingested", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
	return results, stats, nil
}

// Discover returns the routable files under root in lexical order. A root
// that is itself a file is returned as-is when routable.
func Discover(root string, skipHidden bool) ([]string, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		if !routable(root) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, root)
		}
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && routable(path) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
