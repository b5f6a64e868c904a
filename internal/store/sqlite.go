package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS results (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL,
	intent       TEXT NOT NULL DEFAULT '',
	field_count  INTEGER NOT NULL DEFAULT 0,
	failed_stage TEXT NOT NULL DEFAULT '',
	input_file   TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	record       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
CREATE INDEX IF NOT EXISTS idx_results_kind_status ON results(kind, status);
CREATE INDEX IF NOT EXISTS idx_results_intent ON results(intent) WHERE intent != '';
`

// SQLite is a Store on modernc.org/sqlite. created_at is unix nanoseconds.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at dsn; ":memory:" or an empty
// dsn gives a private in-memory database.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		dsn = ":memory:"
	}
	logger.Info("opening sqlite store", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: serializes writers and keeps :memory: a single database
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Put(ctx context.Context, rec pipeline.Record) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	r := summarize(rec)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO results (id, kind, status, intent, field_count, failed_stage, input_file, created_at, record)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	kind = excluded.kind, status = excluded.status, intent = excluded.intent,
	field_count = excluded.field_count, failed_stage = excluded.failed_stage,
	input_file = excluded.input_file, created_at = excluded.created_at, record = excluded.record`,
		r.ID, r.Kind, r.Status, r.Intent, r.FieldCount, r.FailedStage, r.InputFile, r.CreatedAt.UnixNano(), string(body))
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (pipeline.Record, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM results WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return pipeline.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	var rec pipeline.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return pipeline.Record{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]pipeline.Record, error) {
	cond, args := where(f, func(int) string { return "?" }, f.Since.UTC().UnixNano())
	limit, offset := limits(f)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM results`+cond+` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []pipeline.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec pipeline.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE created_at < ?`, t.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}
