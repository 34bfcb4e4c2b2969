package repository

import (
	"context"
	"fmt"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/database"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
)

// AnalyticsRepository reads the aggregate reporting views
type AnalyticsRepository struct {
	q queryable
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *database.DB) *AnalyticsRepository {
	return &AnalyticsRepository{q: db.Pool}
}

// PortfolioKPIs returns the portfolio-wide aggregate row. The view always
// yields exactly one row, even over an empty loans table.
func (r *AnalyticsRepository) PortfolioKPIs(ctx context.Context) (*models.PortfolioKPIs, error) {
	query := `
		SELECT total_loans, total_amount, default_rate, fully_paid_rate,
		       avg_interest_rate, avg_annual_income, avg_dti
		FROM portfolio_kpis
	`

	var kpis models.PortfolioKPIs
	err := r.q.QueryRow(ctx, query).Scan(
		&kpis.TotalLoans,
		&kpis.TotalAmount,
		&kpis.DefaultRate,
		&kpis.FullyPaidRate,
		&kpis.AvgInterestRate,
		&kpis.AvgAnnualIncome,
		&kpis.AvgDTI,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio KPIs: %w", err)
	}

	return &kpis, nil
}

// MonthlyPerformance returns per-month issuance and outcome aggregates,
// oldest month first
func (r *AnalyticsRepository) MonthlyPerformance(ctx context.Context) ([]*models.MonthlyPerformance, error) {
	query := `
		SELECT year, month, quarter, season, loans_issued, amount_issued,
		       avg_interest_rate, default_count, default_rate
		FROM monthly_performance
		ORDER BY year ASC, month ASC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly performance: %w", err)
	}
	defer rows.Close()

	var results []*models.MonthlyPerformance
	for rows.Next() {
		var row models.MonthlyPerformance
		err := rows.Scan(
			&row.Year,
			&row.Month,
			&row.Quarter,
			&row.Season,
			&row.LoansIssued,
			&row.AmountIssued,
			&row.AvgInterestRate,
			&row.DefaultCount,
			&row.DefaultRate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monthly performance row: %w", err)
		}
		results = append(results, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly performance rows: %w", err)
	}

	return results, nil
}

// StateDistribution returns per-state portfolio aggregates, largest book first
func (r *AnalyticsRepository) StateDistribution(ctx context.Context) ([]*models.StateBreakdown, error) {
	query := `
		SELECT state, loan_count, total_amount, avg_interest_rate,
		       default_count, default_rate
		FROM state_distribution
		ORDER BY loan_count DESC, state ASC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query state distribution: %w", err)
	}
	defer rows.Close()

	var results []*models.StateBreakdown
	for rows.Next() {
		var row models.StateBreakdown
		err := rows.Scan(
			&row.State,
			&row.LoanCount,
			&row.TotalAmount,
			&row.AvgInterestRate,
			&row.DefaultCount,
			&row.DefaultRate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state distribution row: %w", err)
		}
		results = append(results, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state distribution rows: %w", err)
	}

	return results, nil
}
