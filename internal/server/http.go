package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type HTTPConfig struct {
	UploadDir     string // uploads are saved under UploadDir/<uuid>/
	MaxUploadSize int64  // bytes, default 32 MiB
}

// HTTPHandler serves the REST surface of Service.
type HTTPHandler struct {
	svc    *Service
	cfg    HTTPConfig
	logger *slog.Logger
}

// NewHTTPHandler returns the chi router with every route mounted.
func NewHTTPHandler(svc *Service, cfg HTTPConfig, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 32 << 20
	}
	h := &HTTPHandler{svc: svc, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext(logger))
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	h.RegisterHTTP(r)
	return r
}

func (h *HTTPHandler) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/files", h.handleUpload)
		r.Post("/ingest", h.handleIngest)
		r.Get("/results", h.handleList)
		r.Get("/results/{id}", h.handleGet)
		r.Get("/results/{id}/artifacts/{name}", h.handleArtifact)
		r.Get("/export.xlsx", h.handleExport)
	})
}

// GET /healthz
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /v1/files (multipart field "file"; ?wait=true processes inline)
func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, r, common.NewAppError("TOO_LARGE", fmt.Sprintf("upload exceeds %d bytes", h.cfg.MaxUploadSize), common.ErrInvalidInput))
			return
		}
		h.writeError(w, r, common.NewAppError("INVALID_UPLOAD", "multipart field \"file\" is required", common.ErrInvalidInput))
		return
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(strings.ReplaceAll(hdr.Filename, "\\", "/"))
	if name == "." || name == "/" || !constants.AllowedExt(filepath.Ext(name)) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{
			Error: fmt.Sprintf("unsupported file %q", hdr.Filename),
			Code:  "UNSUPPORTED_FILE",
		})
		return
	}

	path, err := h.saveUpload(file, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.LoggerFromContext(r.Context(), h.logger).Info("upload saved", "path", path, "size", hdr.Size)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		rec, err := h.svc.Process(r.Context(), path)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		m, err := recordMap(rec)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
		return
	}

	st, err := h.svc.Submit(r.Context(), path, "upload")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/results/"+st.RunID)
	writeJSON(w, http.StatusAccepted, st)
}

func (h *HTTPHandler) saveUpload(src io.Reader, name string) (string, error) {
	dir := filepath.Join(h.cfg.UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// GET /v1/results?kind=&status=&intent=&since=&limit=&offset=
func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseFilter(FilterParams{
		Kind:   q.Get("kind"),
		Status: q.Get("status"),
		Intent: q.Get("intent"),
		Since:  q.Get("since"),
		Limit:  q.Get("limit"),
		Offset: q.Get("offset"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recs, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := recordMaps(recs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items, "count": len(items)})
}

// GET /v1/results/{id}: 200 with the record, or 202 with the queue status.
func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, st, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusAccepted, st)
		return
	}
	m, err := recordMap(*rec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /v1/results/{id}/artifacts/{name}
func (h *HTTPHandler) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	path, err := h.svc.Artifact(r.Context(), id, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// GET /v1/export.xlsx?since=
func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	since, err := common.ParseTimeParam(r.URL.Query().Get("since"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.svc.ExportXLSX(r.Context(), since)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="receptro_results.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := common.RequestIDFromContext(r.Context())
	body := errorBody{Error: err.Error(), RequestID: reqID}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
	}

	code := httpStatus(common.Code(err))
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", reqID, "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, code, body)
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestContext carries chi's request ID and a logger tagged with it into
// the service layer.
func requestContext(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			ctx := common.WithRequestID(r.Context(), reqID)
			ctx = common.WithLogger(ctx, logger.With("request_id", reqID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
