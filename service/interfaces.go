package service

import (
	"context"
	"time"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/etl"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
)

// LoanRepository defines the interface for enriched loan persistence. The
// loader is the only writer of loan rows.
type LoanRepository interface {
	// UpsertBatch upserts a batch of enriched loans keyed by id, atomically
	// per batch, and returns the inserted and updated counts
	UpsertBatch(ctx context.Context, loans []*models.EnrichedLoan) (inserted, updated int64, err error)

	// GetByID retrieves an enriched loan by its id
	GetByID(ctx context.Context, id int64) (*models.EnrichedLoan, error)

	// Count returns the number of loan rows in the store
	Count(ctx context.Context) (int64, error)
}

// PipelineRunRepository defines the interface for run lineage records
type PipelineRunRepository interface {
	// Create inserts a new run in the running state; fails with
	// ErrAlreadyRunning if another run holds the run lock
	Create(ctx context.Context, run *models.PipelineRun) error

	// Finalize moves a run to a terminal state exactly once
	Finalize(ctx context.Context, executionID string, status models.RunStatus, rowsProcessed int64, errorMessage *string) error

	// GetByID retrieves a run by its execution id
	GetByID(ctx context.Context, executionID string) (*models.PipelineRun, error)

	// GetLatest returns the most recently started run
	GetLatest(ctx context.Context) (*models.PipelineRun, error)

	// ListRecent returns up to limit runs, most recent first
	ListRecent(ctx context.Context, limit int) ([]*models.PipelineRun, error)
}

// KpiRepository defines the interface for historical KPI snapshots
type KpiRepository interface {
	// Upsert writes a snapshot keyed by (calculation date, name, period)
	Upsert(ctx context.Context, kpi *models.HistoricalKpi) error

	// GetHistory returns snapshots for a KPI name within a date range
	GetHistory(ctx context.Context, name string, from, to time.Time) ([]*models.HistoricalKpi, error)
}

// AnalyticsRepository defines the read-only projections over the store
type AnalyticsRepository interface {
	// PortfolioKPIs returns the portfolio-wide aggregate row
	PortfolioKPIs(ctx context.Context) (*models.PortfolioKPIs, error)

	// MonthlyPerformance returns the issuance time series
	MonthlyPerformance(ctx context.Context) ([]*models.MonthlyPerformance, error)

	// StateDistribution returns the geographic breakdown
	StateDistribution(ctx context.Context) ([]*models.StateBreakdown, error)
}

// RecordSource yields raw records until io.EOF. Implemented by etl.Extractor.
type RecordSource interface {
	Next() (etl.RawRecord, error)
	Close() error
}

// SourceOpener opens a record source, validating its schema first. A schema
// mismatch or missing file fails here, before any run record exists.
type SourceOpener func(path string, sampleSize int) (RecordSource, error)
