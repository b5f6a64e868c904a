package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BatchReportFile is written under the output directory for multi-file runs.
const BatchReportFile = "processing_results.json"

// BatchReport is the combined outcome of one batch invocation.
type BatchReport struct {
	TotalFiles int           `json:"total_files"`
	Timestamp  time.Time     `json:"timestamp"`
	Summary    Summary       `json:"summary"`
	Results    []Record      `json:"results"`
	Errors     []BatchFailed `json:"errors,omitempty"`
}

// BatchFailed is an input that produced no record at all.
type BatchFailed struct {
	Path  string `json:"input_file"`
	Error string `json:"error"`
}

func NewBatchReport(items []BatchItem, now time.Time) BatchReport {
	rep := BatchReport{
		TotalFiles: len(items),
		Timestamp:  now.UTC(),
		Summary:    Summarize(items),
		Results:    Records(items),
	}
	for _, it := range items {
		if it.Result == nil && it.Err != nil {
			rep.Errors = append(rep.Errors, BatchFailed{Path: it.Path, Error: it.Err.Error()})
		}
	}
	return rep
}

// WriteBatchReport writes rep as indented JSON to dir/processing_results.json.
func WriteBatchReport(dir string, rep BatchReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch report: %w", err)
	}
	path := filepath.Join(dir, BatchReportFile)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write batch report: %w", err)
	}
	return path, nil
}
