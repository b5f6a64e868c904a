package engines

import (
	"fmt"
	"log/slog"
)

// Engine names accepted by the factories.
const (
	EngineTesseract = "tesseract"
	EngineWhisper   = "whisper"
	EngineEspeak    = "espeak"
	EngineText      = "text"
	EngineAuto      = "auto"
)

// Options is the engine selection and tuning surface exposed through config.
type Options struct {
	OCR         string
	Transcriber string
	Synthesizer string

	Tesseract TesseractConfig
	Whisper   WhisperConfig
	Espeak    EspeakConfig

	Runner Runner
}

func NewOCREngine(opts Options, logger *slog.Logger) (OCREngine, error) {
	switch opts.OCR {
	case "", EngineTesseract:
		return NewTesseract(opts.Tesseract, opts.Runner, logger), nil
	}
	return nil, fmt.Errorf("%w: ocr %q", ErrUnknownEngine, opts.OCR)
}

func NewTranscriber(opts Options, logger *slog.Logger) (Transcriber, error) {
	switch opts.Transcriber {
	case "", EngineWhisper:
		w, err := NewWhisper(opts.Whisper, opts.Runner, logger)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, fmt.Errorf("%w: transcriber %q", ErrUnknownEngine, opts.Transcriber)
}

// NewSynthesizer builds the reply synthesizer. "auto" tries espeak and falls
// back to a text artifact.
func NewSynthesizer(opts Options, logger *slog.Logger) (Synthesizer, error) {
	switch opts.Synthesizer {
	case "", EngineAuto:
		return FallbackSynthesizer{
			Chain:  []Synthesizer{NewEspeak(opts.Espeak, opts.Runner, logger), TextSynthesizer{}},
			Logger: logger,
		}, nil
	case EngineEspeak:
		return NewEspeak(opts.Espeak, opts.Runner, logger), nil
	case EngineText:
		return TextSynthesizer{}, nil
	}
	return nil, fmt.Errorf("%w: synthesizer %q", ErrUnknownEngine, opts.Synthesizer)
}
