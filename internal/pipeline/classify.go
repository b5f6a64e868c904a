package pipeline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/receptro/constants"
)

// How an input was classified.
const (
	ByExtension = "extension"
	ByContent   = "content"
)

const sniffLen = 512

// InputFile is a classified input. Immutable once returned by Classify.
type InputFile struct {
	Path         string             `json:"path"`
	Kind         constants.FileKind `json:"kind"`
	ClassifiedBy string             `json:"classified_by"`
}

// Classify maps path to a pipeline kind: the extension table first, then the
// file's leading bytes when the extension is absent or unknown.
func Classify(path string) (InputFile, error) {
	in := InputFile{Path: path, Kind: constants.KindForPath(path), ClassifiedBy: ByExtension}
	if in.Kind != constants.Unknown {
		return in, nil
	}

	head, err := readHead(path)
	if err != nil {
		return InputFile{}, err
	}
	if kind := sniff(head); kind != constants.Unknown {
		return InputFile{Path: path, Kind: kind, ClassifiedBy: ByContent}, nil
	}
	return InputFile{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Base(path))
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputNotFound, err)
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf[:n], nil
}

var (
	heifBrands = [][]byte{[]byte("heic"), []byte("heix"), []byte("heim"), []byte("heis"), []byte("hevc"), []byte("mif1"), []byte("msf1")}
	m4aBrands  = [][]byte{[]byte("M4A "), []byte("M4B "), []byte("mp42"), []byte("isom")}
)

// sniff recognizes container magic numbers for the routed formats.
func sniff(b []byte) constants.FileKind {
	switch {
	case bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")),
		bytes.HasPrefix(b, []byte{0xFF, 0xD8, 0xFF}),
		isBMP(b),
		bytes.HasPrefix(b, []byte("II*\x00")),
		bytes.HasPrefix(b, []byte("MM\x00*")):
		return constants.Image
	case len(b) >= 12 && bytes.HasPrefix(b, []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")),
		bytes.HasPrefix(b, []byte("ID3")),
		bytes.HasPrefix(b, []byte("fLaC")),
		bytes.HasPrefix(b, []byte("OggS")),
		isMPEGFrame(b):
		return constants.Audio
	}
	if len(b) >= 12 && bytes.Equal(b[4:8], []byte("ftyp")) {
		brand := b[8:12]
		for _, h := range heifBrands {
			if bytes.Equal(brand, h) {
				return constants.Image
			}
		}
		for _, m := range m4aBrands {
			if bytes.Equal(brand, m) {
				return constants.Audio
			}
		}
	}
	return constants.Unknown
}

// isBMP requires zero reserved bytes and a known DIB header size after "BM".
func isBMP(b []byte) bool {
	if len(b) < 18 || !bytes.HasPrefix(b, []byte("BM")) {
		return false
	}
	if binary.LittleEndian.Uint32(b[6:10]) != 0 {
		return false
	}
	switch binary.LittleEndian.Uint32(b[14:18]) {
	case 12, 40, 52, 56, 64, 108, 124:
		return true
	}
	return false
}

// isMPEGFrame checks an MPEG audio frame header without an ID3 tag.
// FF FE is the UTF-16LE byte order mark and never counts.
func isMPEGFrame(b []byte) bool {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 || b[1] == 0xFE {
		return false
	}
	version, layer := b[1]&0x18, b[1]&0x06
	bitrate, rate := b[2]>>4, (b[2]>>2)&0x03
	return version != 0x08 && layer != 0 && bitrate != 0x0F && rate != 0x03
}
