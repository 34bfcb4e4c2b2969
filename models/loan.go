package models

import (
	"time"
)

// EnrichedLoan is one loan row after feature derivation, as persisted in the
// loans table. Raw fields that failed to parse are nil; derived fields degrade
// to nil rather than failing the row.
type EnrichedLoan struct {
	ID int64 `db:"id" json:"id"`

	// Loan terms
	LoanAmount   *float64 `db:"loan_amnt" json:"loan_amnt"`
	FundedAmount *float64 `db:"funded_amnt" json:"funded_amnt"`
	Term         *string  `db:"term" json:"term"`
	IntRate      *float64 `db:"int_rate" json:"int_rate"`
	Grade        *string  `db:"grade" json:"grade"`
	SubGrade     *string  `db:"sub_grade" json:"sub_grade"`

	// Borrower attributes
	EmpTitle           *string  `db:"emp_title" json:"emp_title"`
	EmpLength          *string  `db:"emp_length" json:"emp_length"`
	HomeOwnership      *string  `db:"home_ownership" json:"home_ownership"`
	AnnualIncome       *float64 `db:"annual_inc" json:"annual_inc"`
	VerificationStatus *string  `db:"verification_status" json:"verification_status"`
	Purpose            *string  `db:"purpose" json:"purpose"`
	AddrState          *string  `db:"addr_state" json:"addr_state"`
	DTI                *float64 `db:"dti" json:"dti"`

	// Credit history
	Delinq2Yrs         *int       `db:"delinq_2yrs" json:"delinq_2yrs"`
	EarliestCreditLine *time.Time `db:"earliest_cr_line" json:"earliest_cr_line"`
	InqLast6Mths       *int       `db:"inq_last_6mths" json:"inq_last_6mths"`
	OpenAcc            *int       `db:"open_acc" json:"open_acc"`
	PubRec             *int       `db:"pub_rec" json:"pub_rec"`
	RevolBal           *float64   `db:"revol_bal" json:"revol_bal"`
	RevolUtil          *float64   `db:"revol_util" json:"revol_util"`
	TotalAcc           *int       `db:"total_acc" json:"total_acc"`

	// Payment / outcome
	IssueDate         *time.Time `db:"issue_d" json:"issue_d"`
	LoanStatus        *string    `db:"loan_status" json:"loan_status"`
	TotalPayment      *float64   `db:"total_pymnt" json:"total_pymnt"`
	Recoveries        *float64   `db:"recoveries" json:"recoveries"`
	LastPaymentDate   *time.Time `db:"last_pymnt_d" json:"last_pymnt_d"`
	LastPaymentAmount *float64   `db:"last_pymnt_amnt" json:"last_pymnt_amnt"`

	// Derived features
	IsDefault         bool     `db:"is_default" json:"is_default"`
	IsFullyPaid       bool     `db:"is_fully_paid" json:"is_fully_paid"`
	IncomeCategory    string   `db:"income_category" json:"income_category"`
	LoanToIncomeRatio *float64 `db:"loan_to_income_ratio" json:"loan_to_income_ratio"`
	CreditAgeYears    *float64 `db:"credit_age_years" json:"credit_age_years"`
	CreditAgeCategory *string  `db:"credit_age_category" json:"credit_age_category"`
	RiskCategory      *string  `db:"risk_category" json:"risk_category"`
	IntRateCategory   *string  `db:"int_rate_category" json:"int_rate_category"`
	IssueYear         *int     `db:"issue_year" json:"issue_year"`
	IssueMonth        *int     `db:"issue_month" json:"issue_month"`
	IssueQuarter      *int     `db:"issue_quarter" json:"issue_quarter"`
	IssueSeason       *string  `db:"issue_season" json:"issue_season"`

	// Provenance
	SourceFile string    `db:"source_file" json:"source_file"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
