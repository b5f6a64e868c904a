package engines

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Whisper model sizes accepted by the CLI.
var WhisperModels = []string{"tiny", "base", "small", "medium", "large"}

// WhisperConfig configures the whisper CLI engine.
type WhisperConfig struct {
	Binary   string // default "whisper"
	Model    string // default "base"
	Language string // empty lets whisper detect it
}

// Whisper is a Transcriber backed by the openai-whisper CLI. The CLI writes
// <stem>.txt into --output_dir, which is read back and removed.
type Whisper struct {
	cfg    WhisperConfig
	runner Runner
	logger *slog.Logger
}

func NewWhisper(cfg WhisperConfig, runner Runner, logger *slog.Logger) (*Whisper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Binary == "" {
		cfg.Binary = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	if !slices.Contains(WhisperModels, cfg.Model) {
		return nil, fmt.Errorf("whisper model %q not one of %s", cfg.Model, strings.Join(WhisperModels, ", "))
	}
	return &Whisper{cfg: cfg, runner: runner, logger: logger}, nil
}

func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	outDir, err := os.MkdirTemp("", "receptro-whisper-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	args := []string{audioPath,
		"--model", w.cfg.Model,
		"--output_format", "txt",
		"--output_dir", outDir,
		"--fp16", "False",
	}
	if w.cfg.Language != "" {
		args = append(args, "--language", w.cfg.Language)
	}
	if _, errb, err := w.runner.Run(ctx, w.cfg.Binary, args...); err != nil {
		return "", fmt.Errorf("%w: whisper: %w: %s", ErrTranscription, err, stderrTail(errb))
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	b, err := os.ReadFile(filepath.Join(outDir, stem+".txt"))
	if err != nil {
		return "", fmt.Errorf("%w: read whisper output: %w", ErrTranscription, err)
	}
	text := strings.TrimSpace(string(b))
	w.logger.Debug("transcribed", "path", audioPath, "model", w.cfg.Model, "chars", len(text))
	return text, nil
}
