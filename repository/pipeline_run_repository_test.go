package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/repository/testutil"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineRunRepository_Create(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPipelineRunRepository(testDB.DB)
	ctx := context.Background()

	t.Run("successful creation", func(t *testing.T) {
		run := testutil.CreateTestRun(uuid.NewString())

		err := repo.Create(ctx, run)
		require.NoError(t, err)
		assert.False(t, run.CreatedAt.IsZero())

		// Unblock the run lock for the following subtests
		err = repo.Finalize(ctx, run.ExecutionID, models.RunStatusSuccess, 0, nil)
		require.NoError(t, err)
	})

	t.Run("second running run is rejected", func(t *testing.T) {
		first := testutil.CreateTestRun(uuid.NewString())
		require.NoError(t, repo.Create(ctx, first))

		second := testutil.CreateTestRun(uuid.NewString())
		err := repo.Create(ctx, second)
		assert.ErrorIs(t, err, service.ErrAlreadyRunning)

		// The rejected run left no row behind
		stored, err := repo.GetByID(ctx, second.ExecutionID)
		require.NoError(t, err)
		assert.Nil(t, stored)

		require.NoError(t, repo.Finalize(ctx, first.ExecutionID, models.RunStatusFailed, 0, nil))
	})

	t.Run("lock releases on terminal state", func(t *testing.T) {
		first := testutil.CreateTestRun(uuid.NewString())
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Finalize(ctx, first.ExecutionID, models.RunStatusSuccess, 10, nil))

		// Terminal runs no longer hold the lock
		second := testutil.CreateTestRun(uuid.NewString())
		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, repo.Finalize(ctx, second.ExecutionID, models.RunStatusSuccess, 10, nil))
	})

	t.Run("config round-trips as JSON", func(t *testing.T) {
		run := testutil.CreateTestRun(uuid.NewString())
		run.Config = map[string]interface{}{
			"source_file": "loans_2024.csv",
			"sample_size": 1000,
			"batch_size":  500,
		}
		require.NoError(t, repo.Create(ctx, run))

		stored, err := repo.GetByID(ctx, run.ExecutionID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "loans_2024.csv", stored.Config["source_file"])
		assert.Equal(t, float64(1000), stored.Config["sample_size"])

		require.NoError(t, repo.Finalize(ctx, run.ExecutionID, models.RunStatusSuccess, 1000, nil))
	})
}

func TestPipelineRunRepository_Finalize(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPipelineRunRepository(testDB.DB)
	ctx := context.Background()

	t.Run("success records duration and counts", func(t *testing.T) {
		run := testutil.CreateTestRun(uuid.NewString())
		require.NoError(t, repo.Create(ctx, run))

		err := repo.Finalize(ctx, run.ExecutionID, models.RunStatusSuccess, 2500, nil)
		require.NoError(t, err)

		stored, err := repo.GetByID(ctx, run.ExecutionID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.RunStatusSuccess, stored.Status)
		assert.Equal(t, int64(2500), stored.RowsProcessed)
		assert.NotNil(t, stored.FinishedAt)
		require.NotNil(t, stored.DurationMs)
		assert.GreaterOrEqual(t, *stored.DurationMs, int64(0))
		assert.Nil(t, stored.ErrorMessage)
	})

	t.Run("failure records error message", func(t *testing.T) {
		run := testutil.CreateTestRun(uuid.NewString())
		require.NoError(t, repo.Create(ctx, run))

		msg := "batch upsert failed: connection reset"
		err := repo.Finalize(ctx, run.ExecutionID, models.RunStatusFailed, 1500, &msg)
		require.NoError(t, err)

		stored, err := repo.GetByID(ctx, run.ExecutionID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.RunStatusFailed, stored.Status)
		assert.Equal(t, int64(1500), stored.RowsProcessed)
		require.NotNil(t, stored.ErrorMessage)
		assert.Equal(t, msg, *stored.ErrorMessage)
	})

	t.Run("terminal run cannot be finalized again", func(t *testing.T) {
		run := testutil.CreateTestRun(uuid.NewString())
		require.NoError(t, repo.Create(ctx, run))
		require.NoError(t, repo.Finalize(ctx, run.ExecutionID, models.RunStatusSuccess, 100, nil))

		err := repo.Finalize(ctx, run.ExecutionID, models.RunStatusFailed, 0, nil)
		assert.Error(t, err)

		// First terminal state stands
		stored, err := repo.GetByID(ctx, run.ExecutionID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.RunStatusSuccess, stored.Status)
		assert.Equal(t, int64(100), stored.RowsProcessed)
	})

	t.Run("rejects non-terminal target status", func(t *testing.T) {
		err := repo.Finalize(ctx, uuid.NewString(), models.RunStatusRunning, 0, nil)
		assert.Error(t, err)
	})

	t.Run("unknown run", func(t *testing.T) {
		err := repo.Finalize(ctx, uuid.NewString(), models.RunStatusSuccess, 0, nil)
		assert.Error(t, err)
	})
}

func TestPipelineRunRepository_Queries(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPipelineRunRepository(testDB.DB)
	ctx := context.Background()

	t.Run("no runs exist", func(t *testing.T) {
		latest, err := repo.GetLatest(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)

		runs, err := repo.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("latest and recent ordering", func(t *testing.T) {
		var ids []string
		base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			run := testutil.CreateTestRun(uuid.NewString())
			run.StartedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, repo.Create(ctx, run))
			require.NoError(t, repo.Finalize(ctx, run.ExecutionID, models.RunStatusSuccess, int64(i*100), nil))
			ids = append(ids, run.ExecutionID)
		}

		latest, err := repo.GetLatest(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, ids[len(ids)-1], latest.ExecutionID)

		runs, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, ids[2], runs[0].ExecutionID)
		assert.Equal(t, ids[1], runs[1].ExecutionID)
	})
}
