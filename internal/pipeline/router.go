// Package pipeline routes input files through the audio or document pipeline.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/engines"
	"github.com/joseph-ayodele/receptro/internal/fields"
	"github.com/joseph-ayodele/receptro/internal/intent"
	"github.com/joseph-ayodele/receptro/internal/patterns"
)

// Config holds router behavior that does not belong to an engine.
type Config struct {
	OutputDir string // run directories are created under it, default "outputs"
	Voice     string // passed through to the synthesizer
}

// Engines are the external collaborators, constructed once by the caller.
type Engines struct {
	Transcriber engines.Transcriber
	Synthesizer engines.Synthesizer
	OCR         engines.OCREngine
}

// Router classifies inputs and runs the matching pipeline. Safe for
// concurrent use when its engines are.
type Router struct {
	cfg        Config
	eng        Engines
	recognizer *intent.Recognizer
	extractor  *fields.Extractor
	logger     *slog.Logger
	now        func() time.Time
}

func NewRouter(cfg Config, eng Engines, lib *patterns.Library, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "outputs"
	}
	return &Router{
		cfg:        cfg,
		eng:        eng,
		recognizer: intent.NewRecognizer(lib, logger),
		extractor:  fields.NewExtractor(lib, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// Recognizer exposes the router's intent recognizer for text-only callers.
func (r *Router) Recognizer() *intent.Recognizer { return r.recognizer }

// Extractor exposes the router's field extractor for text-only callers.
func (r *Router) Extractor() *fields.Extractor { return r.extractor }

// OutputDir is the directory run directories are created under.
func (r *Router) OutputDir() string { return r.cfg.OutputDir }

type routeOptions struct {
	runID     string
	outputDir string
}

// RouteOption customizes a single Route call.
type RouteOption func(*routeOptions)

// WithRunID fixes the run ID. Without it the run ID comes from
// common.WithRunID on ctx, or a new UUID.
func WithRunID(id string) RouteOption {
	return func(o *routeOptions) { o.runID = id }
}

// WithOutputDir overrides the parent directory of this run's artifacts.
func WithOutputDir(dir string) RouteOption {
	return func(o *routeOptions) { o.outputDir = dir }
}

// Route classifies path and runs its pipeline. A nil Result comes back only
// with ErrInputNotFound or ErrUnsupportedFileType. When a stage fails the
// partial Result is returned together with a *StageError.
func (r *Router) Route(ctx context.Context, path string, opts ...RouteOption) (*Result, error) {
	o := routeOptions{outputDir: r.cfg.OutputDir}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = common.RunIDFromContext(ctx)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	in, err := Classify(path)
	if err != nil {
		common.LoggerFromContext(ctx, r.logger).Warn("router.classify.failed", "path", path, "err", err)
		return nil, err
	}

	res := &Result{
		ID:              o.runID,
		Input:           in,
		StartedAt:       r.now(),
		Outputs:         map[string]string{},
		CompletedStages: []constants.Stage{},
	}
	art := &artifacts{dir: filepath.Join(o.outputDir, o.runID), outputs: res.Outputs}
	log := common.LoggerFromContext(ctx, r.logger).With("run_id", res.ID, "path", path, "kind", in.Kind)
	log.Info("router.route.start", "classified_by", in.ClassifiedBy)

	switch in.Kind {
	case constants.Audio:
		err = r.runAudio(ctx, res, art, log)
	case constants.Image:
		err = r.runDocument(ctx, res, art, log)
	}
	res.FinishedAt = r.now()

	if werr := art.writeJSON(ArtifactResult, "result.json", res); werr != nil {
		log.Warn("router.result.write_failed", "err", werr)
	}
	if err != nil {
		return res, err
	}
	log.Info("router.route.ok", "stages", len(res.CompletedStages), "duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds())
	return res, nil
}

// fail records a stage failure on res and returns it as the run's error.
func (r *Router) fail(res *Result, log *slog.Logger, stage constants.Stage, cause error) error {
	se := &StageError{Stage: stage, Err: cause}
	res.Failure = se
	log.Error("router.stage.failed", "stage", stage, "err", cause)
	return se
}

// enter reports cancellation at a stage boundary as a failure of the stage
// about to start.
func (r *Router) enter(ctx context.Context, res *Result, log *slog.Logger, stage constants.Stage) error {
	if err := ctx.Err(); err != nil {
		return r.fail(res, log, stage, err)
	}
	return nil
}
