package repository

import (
	"context"
	"testing"
	"time"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKpiRepository_Upsert(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewKpiRepository(testDB.DB)
	ctx := context.Background()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("creates new snapshot", func(t *testing.T) {
		kpi := testutil.CreateTestKpi("Taux Défaut", day, 12.5)

		err := repo.Upsert(ctx, kpi)
		require.NoError(t, err)
		assert.NotZero(t, kpi.ID)
		assert.False(t, kpi.CreatedAt.IsZero())
	})

	t.Run("same cell overwrites instead of duplicating", func(t *testing.T) {
		first := testutil.CreateTestKpi("Portfolio Total", day, 10000)
		require.NoError(t, repo.Upsert(ctx, first))

		second := testutil.CreateTestKpi("Portfolio Total", day, 10250)
		require.NoError(t, repo.Upsert(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		history, err := repo.GetHistory(ctx, "Portfolio Total", day, day)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, 10250.0, history[0].Value)
	})

	t.Run("same name on different days stacks", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			kpi := testutil.CreateTestKpi("Montant Total", day.AddDate(0, 0, i), float64(1000*(i+1)))
			require.NoError(t, repo.Upsert(ctx, kpi))
		}

		history, err := repo.GetHistory(ctx, "Montant Total", day, day.AddDate(0, 0, 2))
		require.NoError(t, err)
		require.Len(t, history, 3)
	})
}

func TestKpiRepository_GetHistory(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewKpiRepository(testDB.DB)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		kpi := testutil.CreateTestKpi("Taux Intérêt Moyen", start.AddDate(0, 0, i), 11.0+float64(i)*0.1)
		require.NoError(t, repo.Upsert(ctx, kpi))
	}

	t.Run("range is inclusive and ordered oldest first", func(t *testing.T) {
		history, err := repo.GetHistory(ctx, "Taux Intérêt Moyen", start.AddDate(0, 0, 2), start.AddDate(0, 0, 5))
		require.NoError(t, err)
		require.Len(t, history, 4)

		for i := 1; i < len(history); i++ {
			assert.True(t, history[i].CalculationDate.After(history[i-1].CalculationDate))
		}
		assert.InDelta(t, 11.2, history[0].Value, 0.0001)
		assert.InDelta(t, 11.5, history[len(history)-1].Value, 0.0001)
	})

	t.Run("unknown name yields empty history", func(t *testing.T) {
		history, err := repo.GetHistory(ctx, "Unknown KPI", start, start.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}
