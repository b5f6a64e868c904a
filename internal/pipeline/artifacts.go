package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact names used as keys in Result.Outputs.
const (
	ArtifactTranscript = "transcript"
	ArtifactIntent     = "intent"
	ArtifactReply      = "reply"
	ArtifactOCRText    = "ocr_text"
	ArtifactFields     = "fields"
	ArtifactResult     = "result"
)

// artifacts writes one run's files under dir and records them in outputs.
type artifacts struct {
	dir     string
	outputs map[string]string
}

func (a *artifacts) path(file string) string {
	return filepath.Join(a.dir, file)
}

func (a *artifacts) writeText(name, file, content string) error {
	return a.write(name, file, []byte(content))
}

func (a *artifacts) writeJSON(name, file string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	return a.write(name, file, append(b, '\n'))
}

func (a *artifacts) write(name, file string, b []byte) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	p := a.path(file)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	a.outputs[name] = p
	return nil
}
