package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS results (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL,
	intent       TEXT NOT NULL DEFAULT '',
	field_count  INTEGER NOT NULL DEFAULT 0,
	failed_stage TEXT NOT NULL DEFAULT '',
	input_file   TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	record       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
CREATE INDEX IF NOT EXISTS idx_results_kind_status ON results(kind, status);
CREATE INDEX IF NOT EXISTS idx_results_intent ON results(intent) WHERE intent <> '';
`

// Postgres is a Store on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates a pgx pool from cfg and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "receptro"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if _, err := pool.Exec(dialCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	logger.Info("successfully connected to database")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Put(ctx context.Context, rec pipeline.Record) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	r := summarize(rec)
	_, err = p.pool.Exec(ctx, `
INSERT INTO results (id, kind, status, intent, field_count, failed_stage, input_file, created_at, record)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	kind = EXCLUDED.kind, status = EXCLUDED.status, intent = EXCLUDED.intent,
	field_count = EXCLUDED.field_count, failed_stage = EXCLUDED.failed_stage,
	input_file = EXCLUDED.input_file, created_at = EXCLUDED.created_at, record = EXCLUDED.record`,
		r.ID, r.Kind, r.Status, r.Intent, r.FieldCount, r.FailedStage, r.InputFile, r.CreatedAt, body)
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (pipeline.Record, error) {
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT record FROM results WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return pipeline.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	var rec pipeline.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return pipeline.Record{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]pipeline.Record, error) {
	cond, args := where(f, func(n int) string { return "$" + strconv.Itoa(n) }, f.Since.UTC())
	limit, offset := limits(f)
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT record FROM results%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		cond, len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := []pipeline.Record{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec pipeline.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM results WHERE created_at < $1`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks that the pool can reach the database.
func (p *Postgres) Ping(ctx context.Context) error {
	p.logger.Debug("pinging database")
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.logger.Info("closing database connections")
	p.pool.Close()
	return nil
}
