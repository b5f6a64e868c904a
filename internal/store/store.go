// Package store persists pipeline records in sqlite or postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrNotFound = errors.New("result not found")

// Store keeps one record per run ID. Put replaces an existing record.
type Store interface {
	Put(ctx context.Context, rec pipeline.Record) error
	Get(ctx context.Context, id string) (pipeline.Record, error)
	List(ctx context.Context, f Filter) ([]pipeline.Record, error)
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Filter narrows List. Zero values match everything; results are newest first.
type Filter struct {
	Kind   constants.FileKind
	Status constants.RunStatus
	Intent string
	Since  time.Time
	Limit  int
	Offset int
}

// DefaultListLimit caps List when Filter.Limit is zero.
const DefaultListLimit = 100

type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Open connects to the configured backend and creates its schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverSQLite
		if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
			driver = DriverPostgres
		}
	}
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.DSN, logger)
	case DriverPostgres, "pgx":
		return OpenPostgres(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// row is the indexed summary of a record.
type row struct {
	ID          string
	Kind        string
	Status      string
	Intent      string
	FieldCount  int
	FailedStage string
	InputFile   string
	CreatedAt   time.Time
}

func summarize(rec pipeline.Record) row {
	created := rec.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	return row{
		ID:          rec.ID,
		Kind:        string(rec.FileType),
		Status:      string(rec.Status()),
		Intent:      rec.Intent,
		FieldCount:  rec.FieldCount,
		FailedStage: string(rec.FailedStage()),
		InputFile:   rec.InputFile,
		CreatedAt:   created.UTC(),
	}
}

// where builds the WHERE clause and args for f; ph renders the n-th placeholder.
func where(f Filter, ph func(n int) string, since any) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}
	if f.Kind != "" {
		add("kind = %s", string(f.Kind))
	}
	if f.Status != "" {
		add("status = %s", string(f.Status))
	}
	if f.Intent != "" {
		add("intent = %s", f.Intent)
	}
	if !f.Since.IsZero() {
		add("created_at >= %s", since)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func limits(f Filter) (int, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("record id is required")
	}
	return nil
}
