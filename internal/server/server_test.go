package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/async"
	"github.com/joseph-ayodele/receptro/internal/engines"
	"github.com/joseph-ayodele/receptro/internal/ingest"
	"github.com/joseph-ayodele/receptro/internal/patterns"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
	"github.com/joseph-ayodele/receptro/internal/store"
)

type harness struct {
	svc     *Service
	results store.Store
	queue   *async.ProcessorQueue
	dir     string
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	router := pipeline.NewRouter(pipeline.Config{OutputDir: filepath.Join(dir, "outputs")}, pipeline.Engines{
		Transcriber: engines.TranscriberFunc(func(_ context.Context, path string) (string, error) {
			if filepath.Base(path) == "broken.wav" {
				return "", errors.New("decoder crashed")
			}
			return "Book an appointment for Monday at 2 PM", nil
		}),
		Synthesizer: engines.SynthesizerFunc(func(_ context.Context, text string, o engines.SynthesisOptions) (string, error) {
			return o.OutputPath, os.WriteFile(o.OutputPath, []byte(text), 0o644)
		}),
		OCR: engines.OCRFunc(func(context.Context, string) (string, error) {
			return "DOB: 05/21/1990\nID: ABC123456", nil
		}),
	}, patterns.MustLoad(patterns.Default()), nil)

	st, err := store.OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	q := async.NewProcessorQueue(router, nil, async.WithWorkers(2), async.WithSink(st))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
		_ = st.Close()
	})

	svc := NewService(router, q, st, nil).WithIngestor(ingest.NewFSIngestor(q, "scan", nil))
	return &harness{
		svc:     svc,
		results: st,
		queue:   q,
		dir:     dir,
		handler: NewHTTPHandler(svc, HTTPConfig{UploadDir: filepath.Join(dir, "uploads")}, nil),
	}
}

func (h *harness) file(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(h.dir, "in", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (h *harness) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) waitStored(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := h.results.Get(context.Background(), id)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHTTPUploadQueuesAndStores(t *testing.T) {
	h := newHarness(t)
	body, ct := multipartBody(t, "memo.wav", "RIFF")

	rec := h.do(t, http.MethodPost, "/v1/files", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode(t, rec)
	id, _ := accepted["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/v1/results/"+id, rec.Header().Get("Location"))

	h.waitStored(t, id)

	rec = h.do(t, http.MethodGet, "/v1/results/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "audio", got["file_type"])
	assert.Equal(t, "book_appointment", got["intent"])
	assert.Equal(t, "COMPLETED", got["status"])
	assert.Equal(t, map[string]any{"date": "Monday", "time": "2 PM"}, got["parameters"])

	rec = h.do(t, http.MethodGet, "/v1/results/"+id+"/artifacts/transcript", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Book an appointment")

	rec = h.do(t, http.MethodGet, "/v1/results/"+id+"/artifacts/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPUploadWaitReturnsRecord(t *testing.T) {
	h := newHarness(t)
	body, ct := multipartBody(t, "card.png", "\x89PNG")

	rec := h.do(t, http.MethodPost, "/v1/files?wait=true", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode(t, rec)
	assert.Equal(t, "image", got["file_type"])
	assert.EqualValues(t, 2, got["field_count"])
	assert.Equal(t, map[string]any{"date_of_birth": "05/21/1990", "id_number": "ABC123456"}, got["extracted_fields"])
}

func TestHTTPUploadRejectsUnsupported(t *testing.T) {
	h := newHarness(t)
	body, ct := multipartBody(t, "notes.pdf", "%PDF")
	rec := h.do(t, http.MethodPost, "/v1/files", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/files", bytes.NewBufferString("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_UPLOAD", decode(t, rec)["code"])
}

func TestHTTPListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Process(ctx, h.file(t, "a.wav", "a"))
	require.NoError(t, err)
	_, err = h.svc.Process(ctx, h.file(t, "b.jpg", "b"))
	require.NoError(t, err)
	failed, err := h.svc.Process(ctx, h.file(t, "broken.wav", "c"))
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusFailed, failed.Status())

	rec := h.do(t, http.MethodGet, "/v1/results", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["count"])

	rec = h.do(t, http.MethodGet, "/v1/results?kind=audio&status=completed", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = h.do(t, http.MethodGet, "/v1/results?intent=Booking", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = h.do(t, http.MethodGet, "/v1/results?status=FAILED", nil, "")
	got := decode(t, rec)
	require.EqualValues(t, 1, got["count"])
	item := got["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "transcribe", item["error"].(map[string]any)["stage"])
	assert.Nil(t, item["intent"])

	rec = h.do(t, http.MethodGet, "/v1/results?kind=video&limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPGetUnknownAndQueued(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/v1/results/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// a queue status without a stored record yields 202
	blocked := make(chan struct{})
	q := async.NewProcessorQueue(blockingRouter{release: blocked}, nil, async.WithWorkers(1))
	defer func() {
		close(blocked)
		q.Shutdown(context.Background())
	}()
	svc := NewService(blockingRouter{release: blocked}, q, h.results, nil)
	handler := NewHTTPHandler(svc, HTTPConfig{UploadDir: filepath.Join(h.dir, "up2")}, nil)

	st, err := svc.Submit(context.Background(), h.file(t, "slow.wav", "x"), "test")
	require.NoError(t, err)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/results/"+st.RunID, nil))
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Contains(t, []string{"QUEUED", "RUNNING"}, decode(t, resp)["status"])
}

type blockingRouter struct{ release chan struct{} }

func (b blockingRouter) Route(ctx context.Context, _ string, _ ...pipeline.RouteOption) (*pipeline.Result, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil, errors.New("released")
}

func TestHTTPExportAndHealth(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Process(context.Background(), h.file(t, "a.wav", "a"))
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/export.xlsx", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows("Audio")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rec = h.do(t, http.MethodGet, "/v1/export.xlsx?since=last-week", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPIngestDirectory(t *testing.T) {
	h := newHarness(t)
	h.file(t, "x.wav", "1")
	h.file(t, "y.png", "2")
	h.file(t, "skip.txt", "3")

	rec := h.do(t, http.MethodPost, "/v1/ingest", bytes.NewBufferString(`{"root":"`+filepath.ToSlash(filepath.Join(h.dir, "in"))+`"}`), "application/json")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	got := decode(t, rec)
	stats := got["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["matched"])
	assert.EqualValues(t, 2, stats["succeeded"])

	rec = h.do(t, http.MethodPost, "/v1/ingest", bytes.NewBufferString(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(FilterParams{Kind: "Audio", Status: "failed", Intent: "Get Weather", Limit: "5", Offset: "10", Since: "2024-01-02"})
	require.NoError(t, err)
	assert.Equal(t, constants.Audio, f.Kind)
	assert.Equal(t, constants.RunStatusFailed, f.Status)
	assert.Equal(t, "get_weather", f.Intent)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, 10, f.Offset)
	assert.Equal(t, 2, f.Since.Day())

	f, err = ParseFilter(FilterParams{Intent: "order_status"})
	require.NoError(t, err)
	assert.Equal(t, "order_status", f.Intent)

	_, err = ParseFilter(FilterParams{Limit: "5000"})
	assert.Error(t, err)
	_, err = ParseFilter(FilterParams{Offset: "-1"})
	assert.Error(t, err)
}

func dialBuf(t *testing.T, g *GRPC) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = g.Server.Serve(lis) }()
	t.Cleanup(g.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCPipeline(t *testing.T) {
	h := newHarness(t)
	conn := dialBuf(t, NewGRPC(h.svc, nil))
	client := NewPipelineClient(conn)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{"path": h.file(t, "a.wav", "a"), "wait": true})
	require.NoError(t, err)
	out, err := client.Process(ctx, req)
	require.NoError(t, err)
	rec := out.AsMap()
	assert.Equal(t, "book_appointment", rec["intent"])
	assert.Equal(t, "COMPLETED", rec["status"])
	id := rec["id"].(string)

	get, err := client.GetResult(ctx, mustStruct(t, map[string]any{"id": id}))
	require.NoError(t, err)
	assert.Equal(t, id, get.AsMap()["id"])

	queued, err := client.Process(ctx, mustStruct(t, map[string]any{"path": h.file(t, "b.png", "b")}))
	require.NoError(t, err)
	qid := queued.AsMap()["id"].(string)
	h.waitStored(t, qid)

	list, err := client.ListResults(ctx, mustStruct(t, map[string]any{"kind": "image", "limit": 10}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.AsMap()["count"])

	_, err = client.GetResult(ctx, mustStruct(t, map[string]any{"id": "missing"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Process(ctx, mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Process(ctx, mustStruct(t, map[string]any{"path": h.file(t, "c.txt", "c"), "wait": true}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ListResults(ctx, mustStruct(t, map[string]any{"status": "BOGUS"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	ing, err := client.IngestDirectory(ctx, mustStruct(t, map[string]any{"root": filepath.Join(h.dir, "in")}))
	require.NoError(t, err)
	assert.Contains(t, ing.AsMap(), "stats")
}

func TestGRPCHealth(t *testing.T) {
	h := newHarness(t)
	conn := dialBuf(t, NewGRPC(h.svc, nil))
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: PipelineServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestHTTPErrorCarriesRequestID(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/results/does-not-exist", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "req-42", body["request_id"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestGRPCUnavailableWhileDraining(t *testing.T) {
	h := newHarness(t)
	conn := dialBuf(t, NewGRPC(h.svc, nil))
	client := NewPipelineClient(conn)
	h.queue.Shutdown(context.Background())

	_, err := client.Process(context.Background(), mustStruct(t, map[string]any{"path": h.file(t, "late.wav", "x")}))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
