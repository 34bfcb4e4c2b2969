package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/database"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/service"
)

const uniqueViolationCode = "23505"

// PipelineRunRepository persists run lineage records
type PipelineRunRepository struct {
	q queryable
}

// NewPipelineRunRepository creates a new pipeline run repository
func NewPipelineRunRepository(db *database.DB) *PipelineRunRepository {
	return &PipelineRunRepository{q: db.Pool}
}

// Create inserts a new run in the running state. The partial unique index on
// running runs acts as the run lock: a second concurrent run trips a unique
// violation, surfaced as ErrAlreadyRunning, and no row is created.
func (r *PipelineRunRepository) Create(ctx context.Context, run *models.PipelineRun) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (execution_id, started_at, status, config)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err = r.q.QueryRow(ctx, query,
		run.ExecutionID,
		run.StartedAt,
		run.Status,
		configJSON,
	).Scan(&run.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return service.ErrAlreadyRunning
		}
		return fmt.Errorf("failed to create pipeline run %s: %w", run.ExecutionID, err)
	}

	return nil
}

// Finalize moves a running run to a terminal state. The status guard makes
// finalization a one-shot transition: a run already terminal is not touched.
func (r *PipelineRunRepository) Finalize(ctx context.Context, executionID string, status models.RunStatus, rowsProcessed int64, errorMessage *string) error {
	if status != models.RunStatusSuccess && status != models.RunStatusFailed {
		return fmt.Errorf("cannot finalize run %s to non-terminal status %q", executionID, status)
	}

	query := `
		UPDATE pipeline_runs
		SET status = $1,
		    rows_processed = $2,
		    error_message = $3,
		    finished_at = NOW(),
		    duration_ms = (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::BIGINT
		WHERE execution_id = $4 AND status = 'running'
	`

	result, err := r.q.Exec(ctx, query, status, rowsProcessed, errorMessage, executionID)
	if err != nil {
		return fmt.Errorf("failed to finalize pipeline run %s: %w", executionID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("pipeline run %s is not running", executionID)
	}

	return nil
}

const runColumns = `execution_id, started_at, finished_at, duration_ms,
	rows_processed, status, error_message, config, created_at`

// GetByID retrieves a run by its execution id
func (r *PipelineRunRepository) GetByID(ctx context.Context, executionID string) (*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE execution_id = $1`

	run, err := r.scanRun(r.q.QueryRow(ctx, query, executionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run %s: %w", executionID, err)
	}
	return run, nil
}

// GetLatest returns the most recently started run
func (r *PipelineRunRepository) GetLatest(ctx context.Context) (*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC LIMIT 1`

	run, err := r.scanRun(r.q.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest pipeline run: %w", err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, most recent first
func (r *PipelineRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PipelineRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pipeline runs: %w", err)
	}

	return runs, nil
}

func (r *PipelineRunRepository) scanRun(row pgx.Row) (*models.PipelineRun, error) {
	var run models.PipelineRun
	var configJSON []byte
	var finishedAt *time.Time

	err := row.Scan(
		&run.ExecutionID,
		&run.StartedAt,
		&finishedAt,
		&run.DurationMs,
		&run.RowsProcessed,
		&run.Status,
		&run.ErrorMessage,
		&configJSON,
		&run.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.FinishedAt = finishedAt
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &run.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run config: %w", err)
		}
	}

	return &run, nil
}
