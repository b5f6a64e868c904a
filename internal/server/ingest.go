package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/ingest"
)

// IngestReport is the outcome of a directory ingest.
type IngestReport struct {
	Root    string                   `json:"root"`
	Stats   ingest.DirStats          `json:"stats"`
	Results []ingest.IngestionResult `json:"results"`
}

// WithIngestor enables directory ingestion on the service.
func (s *Service) WithIngestor(ing ingest.Ingestor) *Service {
	s.ingestor = ing
	return s
}

// IngestDirectory queues every routable file under root. Content that was
// already queued is reported as deduplicated.
func (s *Service) IngestDirectory(ctx context.Context, root string, skipHidden bool) (IngestReport, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return IngestReport{}, common.NewAppError("INVALID_ROOT", "root is required", common.ErrInvalidInput)
	}
	if s.ingestor == nil {
		return IngestReport{}, common.NewAppError("DISABLED", "directory ingest is not enabled", common.ErrUnavailable)
	}
	s.logger.Info("starting directory ingest", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return IngestReport{}, common.NewAppError("INGEST_FAILED", "ingest directory", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	s.logger.Info("directory ingest completed", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	if results == nil {
		results = []ingest.IngestionResult{}
	}
	return IngestReport{Root: root, Stats: stats, Results: results}, nil
}

// IngestDirectory is the gRPC form: {root, skip_hidden?} -> IngestReport.
// skip_hidden defaults to true when absent.
func (p *PipelineService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	skipHidden := true
	if v, ok := req.GetFields()["skip_hidden"]; ok {
		skipHidden = v.GetBoolValue()
	}
	rep, err := p.svc.IngestDirectory(ctx, stringField(req, "root"), skipHidden)
	if err != nil {
		return nil, p.toStatus(ctx, "IngestDirectory", err)
	}
	return toStruct(rep)
}

type ingestRequest struct {
	Root       string `json:"root"`
	SkipHidden *bool  `json:"skip_hidden"`
}

// POST /v1/ingest {"root": "...", "skip_hidden": true}
func (h *HTTPHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, common.NewAppError("INVALID_BODY", "invalid request body", common.ErrInvalidInput))
		return
	}
	skipHidden := req.SkipHidden == nil || *req.SkipHidden
	rep, err := h.svc.IngestDirectory(r.Context(), req.Root, skipHidden)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rep)
}
