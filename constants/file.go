package constants

import (
	"path/filepath"
	"sort"
	"strings"
)

// FileKind is the pipeline family an input file belongs to.
type FileKind string

const (
	Audio   FileKind = "audio"
	Image   FileKind = "image"
	Unknown FileKind = "unknown"
)

// extensionKinds is the routing table (lowercased, without the leading dot).
var extensionKinds = map[string]FileKind{
	"wav":  Audio,
	"mp3":  Audio,
	"m4a":  Audio,
	"flac": Audio,
	"ogg":  Audio,

	"png":  Image,
	"jpg":  Image,
	"jpeg": Image,
	"bmp":  Image,
	"tif":  Image,
	"tiff": Image,
	"heic": Image,
	"heif": Image,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// KindForExt maps an extension (with or without dot, any case) to its FileKind.
func KindForExt(ext string) FileKind {
	if k, ok := extensionKinds[NormalizeExt(ext)]; ok {
		return k
	}
	return Unknown
}

// KindForPath is KindForExt applied to the path's extension.
func KindForPath(path string) FileKind {
	return KindForExt(filepath.Ext(path))
}

// AllowedExt reports whether ext routes to a known pipeline.
func AllowedExt(ext string) bool {
	return KindForExt(ext) != Unknown
}

// IsHEICExt reports whether ext needs a HEIC->PNG conversion before OCR.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// Extensions returns the sorted extensions routed to kind.
func Extensions(kind FileKind) []string {
	var out []string
	for ext, k := range extensionKinds {
		if k == kind {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}
