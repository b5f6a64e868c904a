// Package engines holds the speech, synthesis and OCR collaborators the
// pipeline drives, and exec-based implementations of them.
package engines

import (
	"context"
	"errors"
)

var (
	ErrTranscription = errors.New("transcription failed")
	ErrSynthesis     = errors.New("synthesis failed")
	ErrOCR           = errors.New("ocr failed")
	ErrUnknownEngine = errors.New("unknown engine")
)

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// SynthesisOptions tells a Synthesizer where to put its artifact.
// Engines may change the extension of OutputPath; the path actually written is returned.
type SynthesisOptions struct {
	OutputPath string
	Voice      string
}

// Synthesizer renders reply text to an audio (or fallback text) artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) (string, error)
}

// OCREngine reads the text out of an image file.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audioPath string) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f(ctx, audioPath)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string, opts SynthesisOptions) (string, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text string, opts SynthesisOptions) (string, error) {
	return f(ctx, text, opts)
}

// OCRFunc adapts a function to OCREngine.
type OCRFunc func(ctx context.Context, imagePath string) (string, error)

func (f OCRFunc) Recognize(ctx context.Context, imagePath string) (string, error) {
	return f(ctx, imagePath)
}
