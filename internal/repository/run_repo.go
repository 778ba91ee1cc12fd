package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/subhajitsr/data-assignment-SPH/internal/model"
)

// DB is the subset of *pgxpool.Pool the ledger uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

const schemaDDL = `
	CREATE TABLE IF NOT EXISTS load_runs (
		run_id      UUID        NOT NULL,
		record_set  TEXT        NOT NULL,
		file_key    TEXT        NOT NULL,
		status      TEXT        NOT NULL,
		error       TEXT,
		started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ,
		PRIMARY KEY (run_id, record_set)
	)`

// RunRepo records load unit progress in the load_runs table.
type RunRepo struct {
	pool DB
}

func NewRunRepo(pool DB) *RunRepo {
	return &RunRepo{pool: pool}
}

// EnsureSchema creates the ledger table if needed.
func (r *RunRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schemaDDL)
	return err
}

// Start records a unit as executing. Re-running a unit of the same run
// resets its row.
func (r *RunRepo) Start(ctx context.Context, runID string, rs model.RecordSet, fileKey string) error {
	query := `
		INSERT INTO load_runs (run_id, record_set, file_key, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, record_set) DO UPDATE
		SET file_key = EXCLUDED.file_key, status = EXCLUDED.status,
		    error = NULL, started_at = NOW(), finished_at = NULL`

	_, err := r.pool.Exec(ctx, query, runID, string(rs), fileKey, string(model.RunExecuting))
	return err
}

// SetStatus moves a unit to status. Terminal statuses stamp finished_at.
func (r *RunRepo) SetStatus(ctx context.Context, runID string, rs model.RecordSet, status model.RunStatus, errMsg string) error {
	query := `
		UPDATE load_runs
		SET status = $3,
		    error = NULLIF($4, ''),
		    finished_at = CASE WHEN $5 THEN NOW() ELSE NULL END
		WHERE run_id = $1 AND record_set = $2`

	_, err := r.pool.Exec(ctx, query, runID, string(rs), string(status), errMsg, status.Terminal())
	return err
}

// Recent returns the latest ledger rows, newest first.
func (r *RunRepo) Recent(ctx context.Context, limit int) ([]model.LoadRun, error) {
	query := `
		SELECT run_id::text, record_set, file_key, status, COALESCE(error, ''),
		       started_at, finished_at
		FROM load_runs
		ORDER BY started_at DESC, record_set
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.LoadRun
	for rows.Next() {
		var (
			run       model.LoadRun
			rs, state string
		)
		if err := rows.Scan(&run.RunID, &rs, &run.FileKey, &state, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.RecordSet = model.RecordSet(rs)
		run.Status = model.RunStatus(state)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Ping checks the ledger database.
func (r *RunRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
