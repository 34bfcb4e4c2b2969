package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/etl"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/events"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeSource replays canned records, standing in for a CSV extractor
type fakeSource struct {
	records []etl.RawRecord
	idx     int
	closed  bool
	nextErr error // returned after the canned records are exhausted
}

func (f *fakeSource) Next() (etl.RawRecord, error) {
	if f.idx >= len(f.records) {
		if f.nextErr != nil {
			return etl.RawRecord{}, f.nextErr
		}
		return etl.RawRecord{}, io.EOF
	}
	rec := f.records[f.idx]
	f.idx++
	return rec, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func makeRecords(n int) []etl.RawRecord {
	records := make([]etl.RawRecord, n)
	for i := range records {
		records[i] = etl.RawRecord{
			Line: i + 1,
			Fields: map[string]string{
				"id":          fmt.Sprintf("%d", i+1),
				"loan_amnt":   "10000",
				"annual_inc":  "50000",
				"int_rate":    "12.5",
				"grade":       "B",
				"issue_d":     "Mar-2018",
				"loan_status": "Current",
			},
		}
	}
	return records
}

// newTestPipeline wires a pipeline service against mocks and a fake source.
// The returned path exists on disk so the pre-flight stat check passes.
func newTestPipeline(t *testing.T, loans *MockLoanRepository, runs *MockPipelineRunRepository, source *fakeSource) (*PipelineService, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "loans.csv")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))

	svc := NewPipelineService(loans, runs, etl.DefaultRules(), events.NewBus())
	svc.open = func(string, int) (RecordSource, error) {
		return source, nil
	}
	return svc, path
}

func TestPipelineService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("successful run processes all rows in batches", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		source := &fakeSource{records: makeRecords(5)}
		svc, path := newTestPipeline(t, loans, runs, source)

		runs.On("Create", ctx, mock.AnythingOfType("*models.PipelineRun")).Return(nil)
		runs.On("Finalize", ctx, mock.AnythingOfType("string"), models.RunStatusSuccess, int64(5), (*string)(nil)).Return(nil)

		var batchSizes []int
		loans.On("UpsertBatch", ctx, mock.Anything).Run(func(args mock.Arguments) {
			batchSizes = append(batchSizes, len(args.Get(1).([]*models.EnrichedLoan)))
		}).Return(int64(2), int64(0), nil).Twice()
		loans.On("UpsertBatch", ctx, mock.Anything).Run(func(args mock.Arguments) {
			batchSizes = append(batchSizes, len(args.Get(1).([]*models.EnrichedLoan)))
		}).Return(int64(1), int64(0), nil).Once()

		result, err := svc.Run(ctx, RunOptions{SourcePath: path, BatchSize: 2})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, int64(5), result.RowsProcessed)
		assert.Equal(t, int64(5), result.Inserted)
		assert.Zero(t, result.Updated)
		assert.NotEmpty(t, result.ExecutionID)
		assert.Equal(t, []int{2, 2, 1}, batchSizes)
		assert.True(t, source.closed)

		runs.AssertExpectations(t)
		loans.AssertExpectations(t)
	})

	t.Run("concurrent run is rejected before any processing", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		source := &fakeSource{records: makeRecords(3)}
		svc, path := newTestPipeline(t, loans, runs, source)

		runs.On("Create", ctx, mock.Anything).Return(ErrAlreadyRunning)

		result, err := svc.Run(ctx, RunOptions{SourcePath: path})
		assert.ErrorIs(t, err, ErrAlreadyRunning)
		assert.Nil(t, result)

		loans.AssertNotCalled(t, "UpsertBatch", mock.Anything, mock.Anything)
		runs.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("load failure finalizes the run as failed with partial count", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		source := &fakeSource{records: makeRecords(5)}
		svc, path := newTestPipeline(t, loans, runs, source)

		runs.On("Create", ctx, mock.Anything).Return(nil)

		storeErr := &PersistenceError{Op: "loan batch upsert", Err: errors.New("connection reset")}
		loans.On("UpsertBatch", ctx, mock.Anything).Return(int64(2), int64(0), nil).Once()
		loans.On("UpsertBatch", ctx, mock.Anything).Return(int64(0), int64(0), storeErr).Once()

		var recordedMsg *string
		runs.On("Finalize", ctx, mock.Anything, models.RunStatusFailed, int64(2), mock.Anything).
			Run(func(args mock.Arguments) {
				recordedMsg = args.Get(4).(*string)
			}).Return(nil)

		result, err := svc.Run(ctx, RunOptions{SourcePath: path, BatchSize: 2})
		require.Error(t, err)
		assert.ErrorAs(t, err, new(*PersistenceError))

		// The first committed batch stands
		require.NotNil(t, result)
		assert.Equal(t, int64(2), result.RowsProcessed)

		require.NotNil(t, recordedMsg)
		assert.Contains(t, *recordedMsg, "connection reset")
		runs.AssertExpectations(t)
	})

	t.Run("extract failure mid-stream fails the run", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		source := &fakeSource{records: makeRecords(2), nextErr: errors.New("read error")}
		svc, path := newTestPipeline(t, loans, runs, source)

		runs.On("Create", ctx, mock.Anything).Return(nil)
		runs.On("Finalize", ctx, mock.Anything, models.RunStatusFailed, int64(0), mock.Anything).Return(nil)

		_, err := svc.Run(ctx, RunOptions{SourcePath: path, BatchSize: 10})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extract failed")
		runs.AssertExpectations(t)
	})

	t.Run("sampled source caps the processed count", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		// The opener applies sampling; the service sees only the capped stream
		source := &fakeSource{records: makeRecords(100)}
		svc, path := newTestPipeline(t, loans, runs, source)

		var gotSample int
		svc.open = func(_ string, sampleSize int) (RecordSource, error) {
			gotSample = sampleSize
			return source, nil
		}

		runs.On("Create", ctx, mock.Anything).Return(nil)
		runs.On("Finalize", ctx, mock.Anything, models.RunStatusSuccess, int64(100), (*string)(nil)).Return(nil)
		loans.On("UpsertBatch", ctx, mock.Anything).Return(int64(100), int64(0), nil)

		result, err := svc.Run(ctx, RunOptions{SourcePath: path, SampleSize: 100, BatchSize: 500})
		require.NoError(t, err)
		assert.Equal(t, 100, gotSample)
		assert.Equal(t, int64(100), result.RowsProcessed)
	})

	t.Run("absent source file fails before a run record exists", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		svc := NewPipelineService(loans, runs, etl.DefaultRules(), events.NewBus())

		_, err := svc.Run(ctx, RunOptions{SourcePath: filepath.Join(t.TempDir(), "absent.csv")})
		require.Error(t, err)

		runs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("schema mismatch fails before a run record exists", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		source := &fakeSource{}
		svc, path := newTestPipeline(t, loans, runs, source)

		mismatch := &etl.SchemaMismatchError{Source: "loans.csv", Missing: []string{"int_rate"}}
		svc.open = func(string, int) (RecordSource, error) {
			return nil, mismatch
		}

		_, err := svc.Run(ctx, RunOptions{SourcePath: path})
		require.Error(t, err)
		assert.ErrorAs(t, err, new(*etl.SchemaMismatchError))

		runs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("empty source path is rejected", func(t *testing.T) {
		svc := NewPipelineService(new(MockLoanRepository), new(MockPipelineRunRepository), etl.DefaultRules(), events.NewBus())
		_, err := svc.Run(ctx, RunOptions{})
		assert.Error(t, err)
	})

	t.Run("cancelled context fails the run", func(t *testing.T) {
		loans := new(MockLoanRepository)
		runs := new(MockPipelineRunRepository)
		source := &fakeSource{records: makeRecords(10)}
		svc, path := newTestPipeline(t, loans, runs, source)

		cancelledCtx, cancel := context.WithCancel(ctx)
		cancel()

		runs.On("Create", cancelledCtx, mock.Anything).Return(nil)
		runs.On("Finalize", cancelledCtx, mock.Anything, models.RunStatusFailed, int64(0), mock.Anything).Return(nil)

		_, err := svc.Run(cancelledCtx, RunOptions{SourcePath: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cancelled")
		runs.AssertExpectations(t)
	})
}
