package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

const (
	maxTrackedJobs = 10000
	sinkTimeout    = 10 * time.Second
)

// ProcessorQueue feeds jobs to a fixed set of workers that route each file
// and hand its record to the sink.
type ProcessorQueue struct {
	router  Router
	sink    Sink
	onDone  func(Job, *pipeline.Result, error)
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	statusMu sync.Mutex
	statuses map[string]JobStatus
	order    []string
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithSink stores each job's record.
func WithSink(s Sink) Option {
	return func(q *ProcessorQueue) { q.sink = s }
}

// WithOnDone registers a callback run by the worker after each job.
func WithOnDone(fn func(Job, *pipeline.Result, error)) Option {
	return func(q *ProcessorQueue) { q.onDone = fn }
}

func NewProcessorQueue(router Router, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		router:   router,
		logger:   logger,
		workers:  4,
		timeout:  3 * time.Minute,
		ch:       make(chan Job, 256),
		statuses: map[string]JobStatus{},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	q.setStatus(job, constants.RunStatusRunning, nil)

	ctx := common.WithRunID(context.Background(), job.RunID)
	ctx = common.WithLogger(ctx, q.logger.With("worker_id", workerID, "source", job.Source))
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	res, err := q.router.Route(ctx, job.Path)
	cancel()

	if res != nil && q.sink != nil {
		sctx, scancel := context.WithTimeout(context.Background(), sinkTimeout)
		if perr := q.sink.Put(sctx, res.Record()); perr != nil {
			q.logger.Error("storing result failed", "worker_id", workerID, "run_id", job.RunID, "error", perr)
		}
		scancel()
	}

	if err != nil {
		q.setStatus(job, constants.RunStatusFailed, err)
		q.logger.Error("processing failed", "worker_id", workerID, "run_id", job.RunID, "path", job.Path, "error", err)
	} else {
		q.setStatus(job, constants.RunStatusCompleted, nil)
		q.logger.Info("processed file successfully", "worker_id", workerID, "run_id", job.RunID, "path", job.Path)
	}
	if q.onDone != nil {
		q.onDone(job, res, err)
	}
}

// Enqueue accepts a job and returns its run ID. It blocks while the queue is
// full until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return "", ErrQueueClosed
	}
	if job.RunID == "" {
		job.RunID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.setStatus(job, constants.RunStatusQueued, nil)

	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "run_id", job.RunID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.forget(job.RunID)
			return "", ctx.Err()
		}
	}
	q.logger.Info("queued file for processing", "run_id", job.RunID, "path", job.Path, "source", job.Source)
	return job.RunID, nil
}

// Status reports the last known state of runID.
func (q *ProcessorQueue) Status(runID string) (JobStatus, bool) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()
	st, ok := q.statuses[runID]
	return st, ok
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

func (q *ProcessorQueue) setStatus(job Job, status constants.RunStatus, err error) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()
	if _, seen := q.statuses[job.RunID]; !seen {
		q.order = append(q.order, job.RunID)
		if len(q.order) > maxTrackedJobs {
			delete(q.statuses, q.order[0])
			q.order = q.order[1:]
		}
	}
	st := JobStatus{RunID: job.RunID, Path: job.Path, Status: status, UpdatedAt: time.Now()}
	if err != nil {
		st.Error = err.Error()
	}
	q.statuses[job.RunID] = st
}

func (q *ProcessorQueue) forget(runID string) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()
	delete(q.statuses, runID)
	for i, id := range q.order {
		if id == runID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
