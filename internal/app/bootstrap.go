// Package app turns the environment configuration into wired components
// shared by the commands.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/engines"
	"github.com/joseph-ayodele/receptro/internal/patterns"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
	"github.com/joseph-ayodele/receptro/internal/store"
)

// LoadLibrary compiles the rules file, or the built-in tables when none is
// configured. A non-negative ConfidenceThreshold overrides the file's value.
func LoadLibrary(cfg common.PipelineConfig, logger *slog.Logger) (*patterns.Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules := patterns.Default()
	source := "builtin"
	if cfg.RulesFile != "" {
		c, err := patterns.ReadConfigFile(cfg.RulesFile)
		if err != nil {
			return nil, common.NewAppError("CONFIG_ERROR", "invalid rules file", err)
		}
		rules, source = c, cfg.RulesFile
	}
	if cfg.ConfidenceThreshold >= 0 {
		rules = rules.WithThreshold(cfg.ConfidenceThreshold)
	}
	lib, err := patterns.Load(rules)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "invalid rules", err)
	}
	logger.Info("rules loaded", "source", source,
		"intent_rules", len(lib.IntentRules()), "field_rules", len(lib.FieldRules()), "threshold", lib.Threshold())
	return lib, nil
}

// EngineOptions maps the engine settings onto the engine factories' options.
func EngineOptions(cfg common.EnginesConfig, logger *slog.Logger) engines.Options {
	return engines.Options{
		OCR:         cfg.OCR,
		Transcriber: cfg.Transcriber,
		Synthesizer: cfg.Synthesizer,
		Tesseract: engines.TesseractConfig{
			Binary:        cfg.TesseractBin,
			Lang:          cfg.OCRLang,
			TessdataDir:   cfg.TessdataDir,
			HeicConverter: cfg.HeicConverter,
		},
		Whisper: engines.WhisperConfig{
			Binary:   cfg.WhisperBinary,
			Model:    cfg.WhisperModel,
			Language: cfg.Language,
		},
		Espeak: engines.EspeakConfig{
			Binary: cfg.EspeakBinary,
			Voice:  cfg.Voice,
		},
		Runner: engines.ExecRunner{Logger: logger},
	}
}

// NewEngines builds the three engines selected by opts.
func NewEngines(opts engines.Options, logger *slog.Logger) (pipeline.Engines, error) {
	ocr, err := engines.NewOCREngine(opts, logger)
	if err != nil {
		return pipeline.Engines{}, err
	}
	tr, err := engines.NewTranscriber(opts, logger)
	if err != nil {
		return pipeline.Engines{}, err
	}
	syn, err := engines.NewSynthesizer(opts, logger)
	if err != nil {
		return pipeline.Engines{}, err
	}
	return pipeline.Engines{Transcriber: tr, Synthesizer: syn, OCR: ocr}, nil
}

// NewRouter loads the rules and engines described by cfg.
func NewRouter(cfg *common.Config, logger *slog.Logger) (*pipeline.Router, error) {
	lib, err := LoadLibrary(cfg.Pipeline, logger)
	if err != nil {
		return nil, err
	}
	eng, err := NewEngines(EngineOptions(cfg.Engines, logger), logger)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "invalid engine selection", err)
	}
	return pipeline.NewRouter(pipeline.Config{
		OutputDir: cfg.Pipeline.OutputDir,
		Voice:     cfg.Engines.Voice,
	}, eng, lib, logger), nil
}

// OpenStore opens the configured result store and checks it responds.
func OpenStore(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return st, nil
}
