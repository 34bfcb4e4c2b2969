package models

import (
	"time"
)

// RunStatus is the lifecycle state of a pipeline run
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// PipelineRun is the lineage record for one pipeline execution. It is created
// when the run starts and finalized exactly once when the run reaches a
// terminal state; it is never mutated afterwards.
type PipelineRun struct {
	ExecutionID   string                 `db:"execution_id" json:"execution_id"`
	StartedAt     time.Time              `db:"started_at" json:"started_at"`
	FinishedAt    *time.Time             `db:"finished_at" json:"finished_at"`
	DurationMs    *int64                 `db:"duration_ms" json:"duration_ms"`
	RowsProcessed int64                  `db:"rows_processed" json:"rows_processed"`
	Status        RunStatus              `db:"status" json:"status"`
	ErrorMessage  *string                `db:"error_message" json:"error_message"`
	Config        map[string]interface{} `db:"config" json:"config"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}
