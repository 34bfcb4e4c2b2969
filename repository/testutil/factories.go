package testutil

import (
	"time"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
func intPtr(v int) *int           { return &v }

// CreateTestLoan creates an enriched loan with default values
func CreateTestLoan(id int64) *models.EnrichedLoan {
	issued := time.Date(2018, time.July, 1, 0, 0, 0, 0, time.UTC)
	earliest := time.Date(2010, time.March, 1, 0, 0, 0, 0, time.UTC)
	return &models.EnrichedLoan{
		ID:                 id,
		LoanAmount:         floatPtr(10000),
		FundedAmount:       floatPtr(10000),
		Term:               strPtr("36 months"),
		IntRate:            floatPtr(11.5),
		Grade:              strPtr("B"),
		SubGrade:           strPtr("B3"),
		EmpLength:          strPtr("5 years"),
		HomeOwnership:      strPtr("RENT"),
		AnnualIncome:       floatPtr(55000),
		VerificationStatus: strPtr("Verified"),
		Purpose:            strPtr("debt_consolidation"),
		AddrState:          strPtr("CA"),
		DTI:                floatPtr(18.2),
		Delinq2Yrs:         intPtr(0),
		EarliestCreditLine: &earliest,
		RevolUtil:          floatPtr(45.0),
		IssueDate:          &issued,
		LoanStatus:         strPtr("FULLY PAID"),
		IsFullyPaid:        true,
		IncomeCategory:     "Faible",
		LoanToIncomeRatio:  floatPtr(10000.0 / 55000.0),
		CreditAgeYears:     floatPtr(8.33),
		CreditAgeCategory:  strPtr("5-10 ans"),
		RiskCategory:       strPtr("Risque modéré"),
		IntRateCategory:    strPtr("10-15%"),
		IssueYear:          intPtr(2018),
		IssueMonth:         intPtr(7),
		IssueQuarter:       intPtr(3),
		IssueSeason:        strPtr("Été"),
		SourceFile:         "test_loans.csv",
	}
}

// CreateTestDefaultedLoan creates a charged-off loan
func CreateTestDefaultedLoan(id int64) *models.EnrichedLoan {
	loan := CreateTestLoan(id)
	loan.LoanStatus = strPtr("CHARGED OFF")
	loan.IsDefault = true
	loan.IsFullyPaid = false
	loan.Grade = strPtr("E")
	loan.IntRate = floatPtr(22.4)
	loan.IntRateCategory = strPtr("20-30%")
	loan.RiskCategory = strPtr("Risque élevé")
	return loan
}

// CreateTestRun creates a pipeline run in the running state
func CreateTestRun(executionID string) *models.PipelineRun {
	return &models.PipelineRun{
		ExecutionID:   executionID,
		StartedAt:     time.Now().UTC().Truncate(time.Millisecond),
		Status:        models.RunStatusRunning,
		RowsProcessed: 0,
		Config: map[string]interface{}{
			"source_file": "test_loans.csv",
			"batch_size":  500,
		},
	}
}

// CreateTestKpi creates a KPI snapshot for a given date
func CreateTestKpi(name string, date time.Time, value float64) *models.HistoricalKpi {
	return &models.HistoricalKpi{
		CalculationDate: date,
		Name:            name,
		Value:           value,
		Description:     "Test KPI",
		Period:          "daily",
	}
}
