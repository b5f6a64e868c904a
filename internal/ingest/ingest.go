// Package ingest discovers input files on disk and submits them for processing.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/receptro/internal/async"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string `json:"source_path"`
	RunID        string `json:"run_id,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	HashHex      string `json:"hash,omitempty"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Submitter is the queue side ingest hands files to.
type Submitter interface {
	Enqueue(ctx context.Context, job async.Job) (string, error)
}

// Ingestor is the behavior the daemon depends on.
type Ingestor interface {
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
