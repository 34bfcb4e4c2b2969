package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/etl"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/events"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
)

const defaultBatchSize = 500

// RunOptions configures one pipeline execution
type RunOptions struct {
	SourcePath string
	SampleSize int
	BatchSize  int
}

// RunResult summarizes a finished pipeline execution
type RunResult struct {
	ExecutionID   string
	RowsProcessed int64
	Inserted      int64
	Updated       int64
	Duration      time.Duration
}

// PipelineService owns one pipeline run at a time: it acquires the run lock,
// sequences extract, transform and load in bounded batches, and records the
// execution outcome. It is the only component allowed to mark a run terminal.
type PipelineService struct {
	loans    LoanRepository
	runs     PipelineRunRepository
	rules    *etl.Rules
	eventBus *events.Bus
	open     SourceOpener
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(loans LoanRepository, runs PipelineRunRepository, rules *etl.Rules, eventBus *events.Bus) *PipelineService {
	return &PipelineService{
		loans:    loans,
		runs:     runs,
		rules:    rules,
		eventBus: eventBus,
		open: func(path string, sampleSize int) (RecordSource, error) {
			return etl.OpenExtractor(path, sampleSize)
		},
	}
}

// Run executes one full pipeline pass. The source is opened and its schema
// validated before any run record is created, so an absent file or a schema
// mismatch never produces a run. Once the run record exists, every failure is
// recorded on it; batches committed before a failure stand, and a retry
// converges to the same end state through the idempotent upsert.
func (s *PipelineService) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if opts.SourcePath == "" {
		return nil, fmt.Errorf("source path is required")
	}
	if _, err := os.Stat(opts.SourcePath); err != nil {
		return nil, fmt.Errorf("source file %s is not accessible: %w", opts.SourcePath, err)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	source, err := s.open(opts.SourcePath, opts.SampleSize)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	run := &models.PipelineRun{
		ExecutionID: uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Status:      models.RunStatusRunning,
		Config: map[string]interface{}{
			"source_path": opts.SourcePath,
			"sample_size": opts.SampleSize,
			"batch_size":  batchSize,
		},
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"executionId": run.ExecutionID,
		"source":      filepath.Base(opts.SourcePath),
	})
	logger.Info("Pipeline run started")

	result, runErr := s.process(ctx, source, opts.SourcePath, batchSize, logger)
	result.ExecutionID = run.ExecutionID
	result.Duration = time.Since(run.StartedAt)

	if runErr != nil {
		msg := runErr.Error()
		if err := s.runs.Finalize(ctx, run.ExecutionID, models.RunStatusFailed, result.RowsProcessed, &msg); err != nil {
			logger.WithField("error", err).Error("Failed to finalize failed run")
		}
		logger.WithFields(log.Fields{
			"rowsProcessed": result.RowsProcessed,
			"error":         runErr,
		}).Error("Pipeline run failed")

		s.eventBus.Emit(ctx, events.PipelineFailedEvent{
			ExecutionID:   run.ExecutionID,
			RowsProcessed: result.RowsProcessed,
			ErrorMessage:  msg,
		})
		return result, fmt.Errorf("run %s failed: %w", run.ExecutionID, runErr)
	}

	if err := s.runs.Finalize(ctx, run.ExecutionID, models.RunStatusSuccess, result.RowsProcessed, nil); err != nil {
		return result, fmt.Errorf("failed to finalize run %s: %w", run.ExecutionID, err)
	}

	logger.WithFields(log.Fields{
		"rowsProcessed": result.RowsProcessed,
		"inserted":      result.Inserted,
		"updated":       result.Updated,
		"duration":      result.Duration,
	}).Info("Pipeline run succeeded")

	s.eventBus.Emit(ctx, events.PipelineCompletedEvent{
		ExecutionID:   run.ExecutionID,
		RowsProcessed: result.RowsProcessed,
		Inserted:      result.Inserted,
		Updated:       result.Updated,
		Duration:      result.Duration,
		SourceFile:    filepath.Base(opts.SourcePath),
	})

	return result, nil
}

// process streams raw records through the transformer into batched upserts.
// Transform is pure and never fails a row; only extract and load errors
// terminate the run.
func (s *PipelineService) process(ctx context.Context, source RecordSource, sourcePath string, batchSize int, logger *log.Entry) (*RunResult, error) {
	result := &RunResult{}
	transformer := etl.NewTransformer(s.rules, filepath.Base(sourcePath))

	batch := make([]*models.EnrichedLoan, 0, batchSize)
	batchNum := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		batchNum++
		inserted, updated, err := s.loans.UpsertBatch(ctx, batch)
		if err != nil {
			return err
		}
		result.RowsProcessed += int64(len(batch))
		result.Inserted += inserted
		result.Updated += updated
		logger.WithFields(log.Fields{
			"batch":    batchNum,
			"rows":     len(batch),
			"inserted": inserted,
			"updated":  updated,
		}).Debug("Batch loaded")
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("run cancelled: %w", err)
		}

		raw, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("extract failed: %w", err)
		}

		batch = append(batch, transformer.Transform(raw))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	return result, nil
}
