// Package async runs pipeline jobs on a bounded pool of workers.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one file to route. RunID is assigned on Enqueue when empty.
type Job struct {
	RunID       string
	Path        string
	Source      string // "upload", "watch", ...
	SubmittedAt time.Time
}

// JobStatus is the last known state of a job.
type JobStatus struct {
	RunID     string              `json:"id"`
	Path      string              `json:"input_file"`
	Status    constants.RunStatus `json:"status"`
	Error     string              `json:"error,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	Status(runID string) (JobStatus, bool)
	Shutdown(ctx context.Context)
}

// Router is what workers run jobs through.
type Router interface {
	Route(ctx context.Context, path string, opts ...pipeline.RouteOption) (*pipeline.Result, error)
}

// Sink receives the record of every job that produced a result.
type Sink interface {
	Put(ctx context.Context, rec pipeline.Record) error
}
