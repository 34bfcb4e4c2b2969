package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/database"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/service"
)

// loanColumns lists every column written by the upsert, in statement order.
const loanColumns = `id, loan_amnt, funded_amnt, term, int_rate, grade, sub_grade,
	emp_title, emp_length, home_ownership, annual_inc, verification_status,
	purpose, addr_state, dti,
	delinq_2yrs, earliest_cr_line, inq_last_6mths, open_acc, pub_rec,
	revol_bal, revol_util, total_acc,
	issue_d, loan_status, total_pymnt, recoveries, last_pymnt_d, last_pymnt_amnt,
	is_default, is_fully_paid, income_category, loan_to_income_ratio,
	credit_age_years, credit_age_category, risk_category, int_rate_category,
	issue_year, issue_month, issue_quarter, issue_season, source_file`

// upsertLoanQuery inserts a loan or overwrites every raw and derived field of
// the existing row. created_at is set once on insert; updated_at is refreshed
// explicitly on every write. xmax = 0 distinguishes a fresh insert from an
// update of an existing row.
const upsertLoanQuery = `
	INSERT INTO loans (` + loanColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
	        $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, $42)
	ON CONFLICT (id) DO UPDATE SET
		loan_amnt = EXCLUDED.loan_amnt,
		funded_amnt = EXCLUDED.funded_amnt,
		term = EXCLUDED.term,
		int_rate = EXCLUDED.int_rate,
		grade = EXCLUDED.grade,
		sub_grade = EXCLUDED.sub_grade,
		emp_title = EXCLUDED.emp_title,
		emp_length = EXCLUDED.emp_length,
		home_ownership = EXCLUDED.home_ownership,
		annual_inc = EXCLUDED.annual_inc,
		verification_status = EXCLUDED.verification_status,
		purpose = EXCLUDED.purpose,
		addr_state = EXCLUDED.addr_state,
		dti = EXCLUDED.dti,
		delinq_2yrs = EXCLUDED.delinq_2yrs,
		earliest_cr_line = EXCLUDED.earliest_cr_line,
		inq_last_6mths = EXCLUDED.inq_last_6mths,
		open_acc = EXCLUDED.open_acc,
		pub_rec = EXCLUDED.pub_rec,
		revol_bal = EXCLUDED.revol_bal,
		revol_util = EXCLUDED.revol_util,
		total_acc = EXCLUDED.total_acc,
		issue_d = EXCLUDED.issue_d,
		loan_status = EXCLUDED.loan_status,
		total_pymnt = EXCLUDED.total_pymnt,
		recoveries = EXCLUDED.recoveries,
		last_pymnt_d = EXCLUDED.last_pymnt_d,
		last_pymnt_amnt = EXCLUDED.last_pymnt_amnt,
		is_default = EXCLUDED.is_default,
		is_fully_paid = EXCLUDED.is_fully_paid,
		income_category = EXCLUDED.income_category,
		loan_to_income_ratio = EXCLUDED.loan_to_income_ratio,
		credit_age_years = EXCLUDED.credit_age_years,
		credit_age_category = EXCLUDED.credit_age_category,
		risk_category = EXCLUDED.risk_category,
		int_rate_category = EXCLUDED.int_rate_category,
		issue_year = EXCLUDED.issue_year,
		issue_month = EXCLUDED.issue_month,
		issue_quarter = EXCLUDED.issue_quarter,
		issue_season = EXCLUDED.issue_season,
		source_file = EXCLUDED.source_file,
		updated_at = NOW()
	RETURNING (xmax = 0) AS inserted
`

// LoanRepository persists enriched loan rows
type LoanRepository struct {
	db *database.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *database.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// UpsertBatch upserts a batch of enriched loans keyed by id inside a single
// transaction, so the batch is either fully committed or not at all. Returns
// inserted and updated counts; storage failures surface as PersistenceError.
func (r *LoanRepository) UpsertBatch(ctx context.Context, loans []*models.EnrichedLoan) (int64, int64, error) {
	var inserted, updated int64

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, loan := range loans {
			batch.Queue(upsertLoanQuery, upsertArgs(loan)...)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for i := range loans {
			var wasInsert bool
			if err := results.QueryRow().Scan(&wasInsert); err != nil {
				return fmt.Errorf("failed to upsert loan %d: %w", loans[i].ID, err)
			}
			if wasInsert {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, &service.PersistenceError{Op: "loan batch upsert", Err: err}
	}

	return inserted, updated, nil
}

func upsertArgs(loan *models.EnrichedLoan) []any {
	return []any{
		loan.ID, loan.LoanAmount, loan.FundedAmount, loan.Term, loan.IntRate,
		loan.Grade, loan.SubGrade,
		loan.EmpTitle, loan.EmpLength, loan.HomeOwnership, loan.AnnualIncome,
		loan.VerificationStatus, loan.Purpose, loan.AddrState, loan.DTI,
		loan.Delinq2Yrs, loan.EarliestCreditLine, loan.InqLast6Mths,
		loan.OpenAcc, loan.PubRec, loan.RevolBal, loan.RevolUtil, loan.TotalAcc,
		loan.IssueDate, loan.LoanStatus, loan.TotalPayment, loan.Recoveries,
		loan.LastPaymentDate, loan.LastPaymentAmount,
		loan.IsDefault, loan.IsFullyPaid, loan.IncomeCategory,
		loan.LoanToIncomeRatio, loan.CreditAgeYears, loan.CreditAgeCategory,
		loan.RiskCategory, loan.IntRateCategory,
		loan.IssueYear, loan.IssueMonth, loan.IssueQuarter, loan.IssueSeason,
		loan.SourceFile,
	}
}

// GetByID retrieves an enriched loan by its id
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*models.EnrichedLoan, error) {
	query := `
		SELECT ` + loanColumns + `, created_at, updated_at
		FROM loans
		WHERE id = $1
	`

	var loan models.EnrichedLoan
	err := r.db.QueryRow(ctx, query, id).Scan(
		&loan.ID, &loan.LoanAmount, &loan.FundedAmount, &loan.Term, &loan.IntRate,
		&loan.Grade, &loan.SubGrade,
		&loan.EmpTitle, &loan.EmpLength, &loan.HomeOwnership, &loan.AnnualIncome,
		&loan.VerificationStatus, &loan.Purpose, &loan.AddrState, &loan.DTI,
		&loan.Delinq2Yrs, &loan.EarliestCreditLine, &loan.InqLast6Mths,
		&loan.OpenAcc, &loan.PubRec, &loan.RevolBal, &loan.RevolUtil, &loan.TotalAcc,
		&loan.IssueDate, &loan.LoanStatus, &loan.TotalPayment, &loan.Recoveries,
		&loan.LastPaymentDate, &loan.LastPaymentAmount,
		&loan.IsDefault, &loan.IsFullyPaid, &loan.IncomeCategory,
		&loan.LoanToIncomeRatio, &loan.CreditAgeYears, &loan.CreditAgeCategory,
		&loan.RiskCategory, &loan.IntRateCategory,
		&loan.IssueYear, &loan.IssueMonth, &loan.IssueQuarter, &loan.IssueSeason,
		&loan.SourceFile, &loan.CreatedAt, &loan.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, err)
	}

	return &loan, nil
}

// Count returns the number of loan rows in the store
func (r *LoanRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM loans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count loans: %w", err)
	}
	return count, nil
}
