// Command receptro routes audio and document files through the pipeline once
// and prints the results.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/receptro/internal/app"
	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/export"
	"github.com/joseph-ayodele/receptro/internal/ingest"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	cfg := common.LoadConfig()

	var (
		outDir     = flag.String("out", cfg.Pipeline.OutputDir, "output directory for run artifacts")
		rules      = flag.String("rules", cfg.Pipeline.RulesFile, "YAML rules file (default: built-in rules)")
		threshold  = flag.Float64("threshold", cfg.Pipeline.ConfidenceThreshold, "confidence threshold override, <0 keeps the rules value")
		asJSON     = flag.Bool("json", false, "print each record as JSON")
		quiet      = flag.Bool("quiet", false, "only print errors")
		xlsxPath   = flag.String("xlsx", "", "also write the records to this XLSX workbook")
		workers    = flag.Int("workers", cfg.Pipeline.Concurrency, "files processed concurrently")
		synth      = flag.String("synth", cfg.Engines.Synthesizer, "reply synthesizer: auto, espeak or text")
		model      = flag.String("model", cfg.Engines.WhisperModel, "whisper model size")
		skipHidden = flag.Bool("skip-hidden", true, "skip hidden files and directories")
	)
	flag.Usage = func() {
		printError("usage: receptro [flags] <file|dir>...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg.Pipeline.OutputDir = *outDir
	cfg.Pipeline.RulesFile = *rules
	cfg.Pipeline.ConfidenceThreshold = *threshold
	cfg.Pipeline.Concurrency = *workers
	cfg.Engines.Synthesizer = *synth
	cfg.Engines.WhisperModel = *model
	if *quiet {
		cfg.Log.Level = slog.LevelError
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := app.NewRouter(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(2)
	}

	var paths []string
	for _, arg := range flag.Args() {
		found, err := ingest.Discover(arg, *skipHidden)
		if err != nil && !errors.Is(err, ingest.ErrUnsupportedExt) {
			logger.Error("cannot read input", "path", arg, "error", err)
			os.Exit(1)
		}
		if errors.Is(err, ingest.ErrUnsupportedExt) {
			// let the router sniff the content and report it
			found = []string{arg}
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		printError("no routable files found\n")
		os.Exit(1)
	}

	items := router.RouteAll(ctx, paths, cfg.Pipeline.Concurrency)
	for _, it := range items {
		switch {
		case *asJSON:
			printJSON(os.Stdout, it)
		case !*quiet:
			printSummary(os.Stdout, it)
		}
	}

	summary := pipeline.Summarize(items)
	if len(items) > 1 {
		path, err := pipeline.WriteBatchReport(cfg.Pipeline.OutputDir, pipeline.NewBatchReport(items, time.Now()))
		if err != nil {
			logger.Error("failed to write batch report", "error", err)
		} else if !*quiet && !*asJSON {
			fmt.Printf("\nCombined results saved to: %s\n", path)
		}
	}

	if *xlsxPath != "" {
		recs := pipeline.Records(items)
		pipeline.SortRecords(recs)
		data, err := export.WriteXLSX(recs)
		if err == nil {
			err = os.WriteFile(*xlsxPath, data, 0o644)
		}
		if err != nil {
			logger.Error("failed to write workbook", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
		logger.Info("workbook written", "path", *xlsxPath, "records", len(recs))
	}

	if !*quiet && !*asJSON {
		fmt.Printf("\nProcessed %d file(s): %d succeeded, %d failed\n", summary.Total, summary.Succeeded, summary.Failed)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func printJSON(w io.Writer, it pipeline.BatchItem) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if it.Result == nil {
		_ = enc.Encode(map[string]string{"input_file": it.Path, "error": it.Err.Error()})
		return
	}
	_ = enc.Encode(it.Result)
}

func printSummary(w io.Writer, it pipeline.BatchItem) {
	_, _ = fmt.Fprintf(w, "\n== %s\n", it.Path)
	if it.Result == nil {
		_, _ = fmt.Fprintf(w, "   error: %v\n", it.Err)
		return
	}
	rec := it.Result.Record()
	_, _ = fmt.Fprintf(w, "   id:     %s\n   type:   %s\n   status: %s\n", rec.ID, rec.FileType, rec.Status())
	if rec.Error != nil {
		_, _ = fmt.Fprintf(w, "   failed: %s: %s\n", rec.Error.Stage, rec.Error.Message)
	}
	switch {
	case rec.TranscriptText != "":
		_, _ = fmt.Fprintf(w, "   transcript: %q\n", rec.TranscriptText)
		if rec.Intent != "" {
			_, _ = fmt.Fprintf(w, "   intent: %s (%.2f) %s\n", rec.Intent, rec.Confidence, formatParams(rec.Parameters))
			_, _ = fmt.Fprintf(w, "   reply:  %q\n", rec.ResponseText)
		}
	case rec.FieldCount > 0:
		_, _ = fmt.Fprintf(w, "   fields (%d): %s\n", rec.FieldCount, formatParams(rec.ExtractedFields))
	}
	for _, name := range slices.Sorted(maps.Keys(rec.Outputs)) {
		_, _ = fmt.Fprintf(w, "   %-10s %s\n", name+":", rec.Outputs[name])
	}
}

func formatParams(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, _ := json.Marshal(m)
	return strings.TrimSpace(string(b))
}
