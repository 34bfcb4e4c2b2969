package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/database"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
)

// KpiRepository persists dated KPI snapshots
type KpiRepository struct {
	q queryable
}

// NewKpiRepository creates a new KPI repository
func NewKpiRepository(db *database.DB) *KpiRepository {
	return &KpiRepository{q: db.Pool}
}

// Upsert writes a KPI value for its (date, name, period) cell. Re-snapshotting
// the same day overwrites the value rather than stacking duplicate rows.
func (r *KpiRepository) Upsert(ctx context.Context, kpi *models.HistoricalKpi) error {
	query := `
		INSERT INTO historical_kpis (calculation_date, kpi_name, kpi_value, kpi_description, period)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (calculation_date, kpi_name, period) DO UPDATE SET
			kpi_value = EXCLUDED.kpi_value,
			kpi_description = EXCLUDED.kpi_description
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		kpi.CalculationDate,
		kpi.Name,
		kpi.Value,
		kpi.Description,
		kpi.Period,
	).Scan(&kpi.ID, &kpi.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert KPI %s: %w", kpi.Name, err)
	}

	return nil
}

// GetHistory returns snapshots of one KPI over [from, to], oldest first
func (r *KpiRepository) GetHistory(ctx context.Context, name string, from, to time.Time) ([]*models.HistoricalKpi, error) {
	query := `
		SELECT id, calculation_date, kpi_name, kpi_value, kpi_description, period, created_at
		FROM historical_kpis
		WHERE kpi_name = $1 AND calculation_date BETWEEN $2 AND $3
		ORDER BY calculation_date ASC
	`

	rows, err := r.q.Query(ctx, query, name, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query KPI history for %s: %w", name, err)
	}
	defer rows.Close()

	var kpis []*models.HistoricalKpi
	for rows.Next() {
		var kpi models.HistoricalKpi
		err := rows.Scan(
			&kpi.ID,
			&kpi.CalculationDate,
			&kpi.Name,
			&kpi.Value,
			&kpi.Description,
			&kpi.Period,
			&kpi.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan KPI row: %w", err)
		}
		kpis = append(kpis, &kpi)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate KPI rows: %w", err)
	}

	return kpis, nil
}
