package engines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// EspeakConfig configures the espeak-ng engine.
type EspeakConfig struct {
	Binary string // default "espeak-ng"
	Voice  string // default "en"
	Speed  int    // words per minute, 0 keeps espeak's default
}

// Espeak is a Synthesizer that writes WAV files with espeak-ng.
type Espeak struct {
	cfg    EspeakConfig
	runner Runner
	logger *slog.Logger
}

func NewEspeak(cfg EspeakConfig, runner Runner, logger *slog.Logger) *Espeak {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Binary == "" {
		cfg.Binary = "espeak-ng"
	}
	if cfg.Voice == "" {
		cfg.Voice = "en"
	}
	return &Espeak{cfg: cfg, runner: runner, logger: logger}
}

func (e *Espeak) Synthesize(ctx context.Context, text string, opts SynthesisOptions) (string, error) {
	if opts.OutputPath == "" {
		return "", fmt.Errorf("%w: no output path", ErrSynthesis)
	}
	out := withExt(opts.OutputPath, ".wav")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	voice := e.cfg.Voice
	if opts.Voice != "" {
		voice = opts.Voice
	}

	args := []string{"-v", voice, "-w", out}
	if e.cfg.Speed > 0 {
		args = append(args, "-s", strconv.Itoa(e.cfg.Speed))
	}
	args = append(args, "--", text)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...); err != nil {
		return "", fmt.Errorf("%w: espeak: %w: %s", ErrSynthesis, err, stderrTail(errb))
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%w: espeak produced no output: %w", ErrSynthesis, err)
	}
	return out, nil
}

// TextSynthesizer writes the reply as a .txt artifact; used when no TTS
// engine is installed.
type TextSynthesizer struct{}

func (TextSynthesizer) Synthesize(_ context.Context, text string, opts SynthesisOptions) (string, error) {
	if opts.OutputPath == "" {
		return "", fmt.Errorf("%w: no output path", ErrSynthesis)
	}
	out := withExt(opts.OutputPath, ".txt")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	if err := os.WriteFile(out, []byte(text+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return out, nil
}

// FallbackSynthesizer tries each synthesizer in order and returns the first
// artifact produced.
type FallbackSynthesizer struct {
	Chain  []Synthesizer
	Logger *slog.Logger
}

func (f FallbackSynthesizer) Synthesize(ctx context.Context, text string, opts SynthesisOptions) (string, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var errs []error
	for i, s := range f.Chain {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
		}
		out, err := s.Synthesize(ctx, text, opts)
		if err == nil {
			return out, nil
		}
		logger.Warn("synthesizer failed, trying next", "index", i, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no synthesizer configured", ErrSynthesis)
	}
	return "", errors.Join(errs...)
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
