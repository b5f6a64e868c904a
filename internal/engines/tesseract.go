package engines

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/receptro/constants"
)

// TesseractConfig configures the tesseract CLI engine.
type TesseractConfig struct {
	Binary        string // default "tesseract"
	Lang          string // default "eng"
	TessdataDir   string
	PSM           int // first page segmentation mode, default 6
	FallbackPSM   int // retried when the first pass is empty, default 4; <0 disables
	OEM           int // 0 leaves tesseract's default
	HeicConverter string
}

// Tesseract is an OCREngine backed by the tesseract CLI.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.FallbackPSM == 0 {
		cfg.FallbackPSM = 4
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = HeicMagick
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

// Recognize returns the normalized text of the image. An image with no
// readable text is not an error.
func (t *Tesseract) Recognize(ctx context.Context, path string) (string, error) {
	if constants.IsHEICExt(filepath.Ext(path)) {
		png, cleanup, err := convertHEICtoPNG(ctx, t.runner, t.cfg.HeicConverter, path)
		defer cleanup()
		if err != nil {
			t.logger.Error("heic conversion failed", "path", path, "error", err)
			return "", fmt.Errorf("%w: %w", ErrOCR, err)
		}
		path = png
	}

	txt, err := t.run(ctx, path, t.cfg.PSM)
	if err != nil {
		return "", err
	}
	if txt == "" && t.cfg.FallbackPSM > 0 && t.cfg.FallbackPSM != t.cfg.PSM {
		t.logger.Debug("ocr empty, retrying", "path", path, "psm", t.cfg.FallbackPSM)
		if txt, err = t.run(ctx, path, t.cfg.FallbackPSM); err != nil {
			return "", err
		}
	}
	return txt, nil
}

// run is `tesseract <file> stdout -l <lang> --psm <n>`.
func (t *Tesseract) run(ctx context.Context, path string, psm int) (string, error) {
	args := []string{path, "stdout", "-l", t.cfg.Lang, "--psm", strconv.Itoa(psm)}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("%w: tesseract: %w: %s", ErrOCR, err, stderrTail(errb))
	}
	return NormalizeOCRText(string(out)), nil
}
