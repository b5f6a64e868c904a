package engines

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// HEIC converters understood by convertHEICtoPNG.
const (
	HeicConvert = "heif-convert"
	HeicMagick  = "magick"
	HeicSips    = "sips"
)

// convertHEICtoPNG converts a HEIC/HEIF file to a temporary PNG.
// The returned cleanup removes the temp directory and is never nil.
func convertHEICtoPNG(ctx context.Context, r Runner, converter, in string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "receptro-heic-*")
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	var errb []byte
	switch converter {
	case HeicConvert:
		_, errb, err = r.Run(ctx, HeicConvert, in, out)
	case HeicMagick:
		_, errb, err = r.Run(ctx, HeicMagick, in, out)
	case HeicSips:
		_, errb, err = r.Run(ctx, HeicSips, "-s", "format", "png", in, "--out", out)
	default:
		return "", cleanup, fmt.Errorf("heic converter %q not supported (want %s | %s | %s)", converter, HeicConvert, HeicMagick, HeicSips)
	}
	if err != nil {
		return "", cleanup, fmt.Errorf("%s: %w: %s", converter, err, stderrTail(errb))
	}
	if _, statErr := os.Stat(out); statErr != nil {
		return "", cleanup, fmt.Errorf("heic conversion produced no output: %w", statErr)
	}
	return out, cleanup, nil
}
