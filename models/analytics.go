package models

// PortfolioKPIs is the portfolio-wide aggregate row from the portfolio_kpis view
type PortfolioKPIs struct {
	TotalLoans      int64   `json:"total_loans"`
	TotalAmount     float64 `json:"total_amount"`
	DefaultRate     float64 `json:"default_rate"`
	FullyPaidRate   float64 `json:"fully_paid_rate"`
	AvgInterestRate float64 `json:"avg_interest_rate"`
	AvgAnnualIncome float64 `json:"avg_annual_income"`
	AvgDTI          float64 `json:"avg_dti"`
}

// MonthlyPerformance is one row of the monthly_performance view
type MonthlyPerformance struct {
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	Quarter         int     `json:"quarter"`
	Season          string  `json:"season"`
	LoansIssued     int64   `json:"loans_issued"`
	AmountIssued    float64 `json:"amount_issued"`
	AvgInterestRate float64 `json:"avg_interest_rate"`
	DefaultCount    int64   `json:"default_count"`
	DefaultRate     float64 `json:"default_rate"`
}

// StateBreakdown is one row of the state_distribution view
type StateBreakdown struct {
	State           string  `json:"state"`
	LoanCount       int64   `json:"loan_count"`
	TotalAmount     float64 `json:"total_amount"`
	AvgInterestRate float64 `json:"avg_interest_rate"`
	DefaultCount    int64   `json:"default_count"`
	DefaultRate     float64 `json:"default_rate"`
}
