// Package server exposes the pipeline over gRPC and HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/async"
	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/export"
	"github.com/joseph-ayodele/receptro/internal/ingest"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
	"github.com/joseph-ayodele/receptro/internal/store"
)

// maxListLimit bounds the page size callers may request.
const maxListLimit = 1000

// Service is the transport-independent API both servers call.
type Service struct {
	router   async.Router
	queue    async.Queue
	results  store.Store
	export   *export.Service
	ingestor ingest.Ingestor
	logger   *slog.Logger
}

func NewService(router async.Router, queue async.Queue, results store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		router:  router,
		queue:   queue,
		results: results,
		export:  export.NewService(results, logger),
		logger:  logger,
	}
}

// Submit queues path for processing and returns its initial status.
func (s *Service) Submit(ctx context.Context, path, source string) (async.JobStatus, error) {
	if err := s.checkInput(path); err != nil {
		return async.JobStatus{}, err
	}
	runID, err := s.queue.Enqueue(ctx, async.Job{Path: path, Source: source})
	if err != nil {
		if errors.Is(err, async.ErrQueueClosed) {
			return async.JobStatus{}, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
		}
		return async.JobStatus{}, err
	}
	if st, ok := s.queue.Status(runID); ok {
		return st, nil
	}
	return async.JobStatus{RunID: runID, Path: path, Status: constants.RunStatusQueued, UpdatedAt: time.Now()}, nil
}

// Process routes path synchronously and stores the record. A stage failure
// still yields the (partial) record with a nil error.
func (s *Service) Process(ctx context.Context, path string) (pipeline.Record, error) {
	if err := s.checkInput(path); err != nil {
		return pipeline.Record{}, err
	}
	res, err := s.router.Route(ctx, path)
	if res == nil {
		return pipeline.Record{}, classify(err)
	}
	rec := res.Record()
	if perr := s.results.Put(ctx, rec); perr != nil {
		s.logger.Error("storing result failed", "run_id", rec.ID, "error", perr)
		return rec, fmt.Errorf("store result: %w", perr)
	}
	if err != nil && !errors.Is(err, pipeline.ErrStageFailure) {
		return rec, err
	}
	return rec, nil
}

// Lookup returns the stored record for id, or the queue status of a run that
// has not been stored yet. Exactly one of the two is non-nil on success.
func (s *Service) Lookup(ctx context.Context, id string) (*pipeline.Record, *async.JobStatus, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, common.NewAppError("INVALID_ID", "id is required", common.ErrInvalidInput)
	}
	rec, err := s.results.Get(ctx, id)
	if err == nil {
		return &rec, nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}
	if s.queue != nil {
		if st, ok := s.queue.Status(id); ok {
			return nil, &st, nil
		}
	}
	return nil, nil, common.NewAppError("NOT_FOUND", "result "+id, common.ErrNotFound)
}

func (s *Service) List(ctx context.Context, f store.Filter) ([]pipeline.Record, error) {
	return s.results.List(ctx, f)
}

// Artifact resolves the path of a named output of a stored run.
func (s *Service) Artifact(ctx context.Context, id, name string) (string, error) {
	rec, st, err := s.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", common.NewAppError("NOT_READY", fmt.Sprintf("run %s is %s", id, st.Status), common.ErrNotFound)
	}
	path, ok := rec.Outputs[name]
	if !ok {
		return "", common.NewAppError("NOT_FOUND", fmt.Sprintf("artifact %q of run %s", name, id), common.ErrNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		return "", common.NewAppError("NOT_FOUND", fmt.Sprintf("artifact %q of run %s is gone", name, id), fmt.Errorf("%w: %w", common.ErrNotFound, err))
	}
	return path, nil
}

func (s *Service) ExportXLSX(ctx context.Context, since time.Time) ([]byte, error) {
	return s.export.ExportXLSX(ctx, since)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.results.Ping(ctx)
}

func (s *Service) checkInput(path string) error {
	if strings.TrimSpace(path) == "" {
		return common.NewAppError("INVALID_PATH", "path is required", common.ErrInvalidInput)
	}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return common.NewAppError("NOT_FOUND", "input file "+path, fmt.Errorf("%w: %w", common.ErrNotFound, pipeline.ErrInputNotFound))
	}
	return nil
}

// classify attaches the common sentinel matching a routing error.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrUnsupportedFileType):
		return common.NewAppError("UNSUPPORTED_FILE", "cannot route input", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	case errors.Is(err, pipeline.ErrInputNotFound):
		return common.NewAppError("NOT_FOUND", "input file", fmt.Errorf("%w: %w", common.ErrNotFound, err))
	}
	return err
}

// FilterParams are the raw list parameters shared by both transports.
type FilterParams struct {
	Kind   string
	Status string
	Intent string
	Since  string
	Limit  string
	Offset string
}

// ParseFilter validates p into a store filter. Intent labels are
// canonicalized so "Booking" finds book_appointment records.
func ParseFilter(p FilterParams) (store.Filter, error) {
	var f store.Filter
	kind := strings.ToLower(strings.TrimSpace(p.Kind))
	status := strings.ToUpper(strings.TrimSpace(p.Status))
	limit, limitErr := atoiOrZero(p.Limit)
	offset, offsetErr := atoiOrZero(p.Offset)

	v := common.NewValidator().
		Field("kind", kind, common.OneOf(string(constants.Audio), string(constants.Image))).
		Field("status", status, common.OneOf(string(constants.RunStatusCompleted), string(constants.RunStatusFailed))).
		Field("limit", limit, common.IntRange(0, maxListLimit)).
		Field("offset", offset, common.IntRange(0, 1<<31-1))
	if limitErr != nil {
		v.Field("limit", p.Limit, func(name string, value any) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: value, Message: "must be an integer"}
		})
	}
	if offsetErr != nil {
		v.Field("offset", p.Offset, func(name string, value any) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: value, Message: "must be an integer"}
		})
	}
	if err := v.Error(); err != nil {
		return f, err
	}
	since, err := common.ParseTimeParam(p.Since)
	if err != nil {
		return f, err
	}

	f.Kind = constants.FileKind(kind)
	f.Status = constants.RunStatus(status)
	f.Since = since
	f.Limit = limit
	f.Offset = offset
	if label := strings.TrimSpace(p.Intent); label != "" {
		in, _ := constants.CanonicalIntent(label)
		f.Intent = string(in)
	}
	return f, nil
}

// recordMap renders rec in its JSON shape plus its run status.
func recordMap(rec pipeline.Record) (map[string]any, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["status"] = string(rec.Status())
	return m, nil
}

func recordMaps(recs []pipeline.Record) ([]any, error) {
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		m, err := recordMap(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func atoiOrZero(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
