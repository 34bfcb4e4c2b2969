package etl

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/konaken73/Loan-Portfolio-Analysis-Dashboard/models"
)

// daysPerYear converts a date span to fractional years.
const daysPerYear = 365.25

// dateLayouts are tried in order when parsing raw date fields. LendingClub
// exports use the Mon-Year form ("Dec-2018"); the rest cover re-exported data.
var dateLayouts = []string{
	"Jan-2006",
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
}

// Transformer derives the enriched feature set for one raw record. Transform
// is pure and total: it never fails a row and reads no external state, so the
// same input always produces the same output.
type Transformer struct {
	rules      *Rules
	sourceFile string
}

// NewTransformer creates a transformer using the given derivation rules.
// Rules must have been validated; nil falls back to the defaults.
func NewTransformer(rules *Rules, sourceFile string) *Transformer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Transformer{rules: rules, sourceFile: sourceFile}
}

// Transform maps one raw record to its enriched form, applying every
// derivation rule independently. Unparseable or missing inputs degrade to nil
// derived fields.
func (t *Transformer) Transform(raw RawRecord) *models.EnrichedLoan {
	loan := &models.EnrichedLoan{
		ID:         parseID(raw.Fields["id"]),
		SourceFile: t.sourceFile,

		LoanAmount:   parseFloat(raw.Fields["loan_amnt"]),
		FundedAmount: parseFloat(raw.Fields["funded_amnt"]),
		Term:         parseString(raw.Fields["term"]),
		IntRate:      parseFloat(raw.Fields["int_rate"]),
		Grade:        parseUpper(raw.Fields["grade"]),
		SubGrade:     parseUpper(raw.Fields["sub_grade"]),

		EmpTitle:           parseUpper(raw.Fields["emp_title"]),
		EmpLength:          parseString(raw.Fields["emp_length"]),
		HomeOwnership:      parseUpper(raw.Fields["home_ownership"]),
		AnnualIncome:       parseFloat(raw.Fields["annual_inc"]),
		VerificationStatus: parseString(raw.Fields["verification_status"]),
		Purpose:            parseString(raw.Fields["purpose"]),
		AddrState:          parseUpper(raw.Fields["addr_state"]),
		DTI:                parseFloat(raw.Fields["dti"]),

		Delinq2Yrs:         parseInt(raw.Fields["delinq_2yrs"]),
		EarliestCreditLine: parseDate(raw.Fields["earliest_cr_line"]),
		InqLast6Mths:       parseInt(raw.Fields["inq_last_6mths"]),
		OpenAcc:            parseInt(raw.Fields["open_acc"]),
		PubRec:             parseInt(raw.Fields["pub_rec"]),
		RevolBal:           parseFloat(raw.Fields["revol_bal"]),
		RevolUtil:          parseFloat(raw.Fields["revol_util"]),
		TotalAcc:           parseInt(raw.Fields["total_acc"]),

		IssueDate:         parseDate(raw.Fields["issue_d"]),
		LoanStatus:        parseUpper(raw.Fields["loan_status"]),
		TotalPayment:      parseFloat(raw.Fields["total_pymnt"]),
		Recoveries:        parseFloat(raw.Fields["recoveries"]),
		LastPaymentDate:   parseDate(raw.Fields["last_pymnt_d"]),
		LastPaymentAmount: parseFloat(raw.Fields["last_pymnt_amnt"]),
	}

	t.deriveOutcomeFlags(loan)
	t.deriveIncomeCategory(loan)
	t.deriveLoanToIncomeRatio(loan)
	t.deriveCreditAge(loan)
	t.deriveRiskCategory(loan)
	t.deriveIntRateCategory(loan)
	t.deriveIssueDateParts(loan)

	return loan
}

func (t *Transformer) deriveOutcomeFlags(loan *models.EnrichedLoan) {
	if loan.LoanStatus == nil {
		return
	}
	status := *loan.LoanStatus
	for _, s := range t.rules.DefaultStatuses {
		if status == s {
			loan.IsDefault = true
			break
		}
	}
	loan.IsFullyPaid = status == t.rules.FullyPaidStatus
}

// deriveIncomeCategory buckets annual income; missing or negative income maps
// to the unknown bucket, which sorts after all defined buckets downstream.
func (t *Transformer) deriveIncomeCategory(loan *models.EnrichedLoan) {
	if loan.AnnualIncome == nil || *loan.AnnualIncome < 0 {
		loan.IncomeCategory = t.rules.UnknownIncomeLabel
		return
	}
	loan.IncomeCategory = bucketLabel(t.rules.IncomeBuckets, *loan.AnnualIncome)
}

// deriveLoanToIncomeRatio computes loan_amnt / annual_inc. Zero or missing
// income yields nil, never a division error or Inf.
func (t *Transformer) deriveLoanToIncomeRatio(loan *models.EnrichedLoan) {
	if loan.LoanAmount == nil || loan.AnnualIncome == nil || *loan.AnnualIncome <= 0 {
		return
	}
	ratio := *loan.LoanAmount / *loan.AnnualIncome
	loan.LoanToIncomeRatio = &ratio
}

// deriveCreditAge computes the span between the earliest credit line and the
// issue date in years. A credit line reported after the issue date is treated
// as missing, never as a negative age.
func (t *Transformer) deriveCreditAge(loan *models.EnrichedLoan) {
	if loan.IssueDate == nil || loan.EarliestCreditLine == nil {
		return
	}
	if loan.EarliestCreditLine.After(*loan.IssueDate) {
		return
	}
	years := loan.IssueDate.Sub(*loan.EarliestCreditLine).Hours() / 24 / daysPerYear
	loan.CreditAgeYears = &years
	category := bucketLabel(t.rules.CreditAgeBuckets, years)
	loan.CreditAgeCategory = &category
}

// deriveRiskCategory computes the composite risk score. Each criterion
// contributes independently and missing criteria contribute zero; the category
// is nil only when every scoring input is missing.
func (t *Transformer) deriveRiskCategory(loan *models.EnrichedLoan) {
	if loan.Grade == nil && loan.DTI == nil && loan.RevolUtil == nil && loan.Delinq2Yrs == nil {
		return
	}

	score := 0
	if loan.Grade != nil {
		score += t.rules.Risk.GradePoints[*loan.Grade]
	}
	if loan.DTI != nil {
		score += thresholdPoints(t.rules.Risk.DTIThresholds, *loan.DTI)
	}
	if loan.RevolUtil != nil {
		score += thresholdPoints(t.rules.Risk.UtilThresholds, *loan.RevolUtil)
	}
	if loan.Delinq2Yrs != nil {
		score += thresholdPoints(t.rules.Risk.DelinqThreshold, float64(*loan.Delinq2Yrs))
	}

	category := bandLabel(t.rules.Risk.Bands, score)
	loan.RiskCategory = &category
}

func (t *Transformer) deriveIntRateCategory(loan *models.EnrichedLoan) {
	if loan.IntRate == nil || *loan.IntRate < 0 {
		return
	}
	category := bucketLabel(t.rules.IntRateBuckets, *loan.IntRate)
	loan.IntRateCategory = &category
}

// deriveIssueDateParts decomposes the issue date into year, month, quarter
// and season. Northern-hemisphere seasons: Dec-Feb Hiver, Mar-May Printemps,
// Jun-Aug Été, Sep-Nov Automne.
func (t *Transformer) deriveIssueDateParts(loan *models.EnrichedLoan) {
	if loan.IssueDate == nil {
		return
	}
	year := loan.IssueDate.Year()
	month := int(loan.IssueDate.Month())
	quarter := (month-1)/3 + 1
	season := seasonOf(month)

	loan.IssueYear = &year
	loan.IssueMonth = &month
	loan.IssueQuarter = &quarter
	loan.IssueSeason = &season
}

func seasonOf(month int) string {
	switch month {
	case 12, 1, 2:
		return "Hiver"
	case 3, 4, 5:
		return "Printemps"
	case 6, 7, 8:
		return "Été"
	default:
		return "Automne"
	}
}

// parseID parses the source-assigned loan id; 0 marks an unidentifiable row.
func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || isNullToken(s) {
		return nil
	}
	return &s
}

func parseUpper(s string) *string {
	p := parseString(s)
	if p == nil {
		return nil
	}
	upper := strings.ToUpper(*p)
	return &upper
}

// parseFloat parses a raw numeric field. Percent suffixes ("10.5%") and
// thousands separators are stripped; NaN and Inf are treated as missing so
// they never reach storage.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || isNullToken(s) {
		return nil
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	f := parseFloat(s)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || isNullToken(s) {
		return nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return &d
		}
	}
	return nil
}

func isNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "none", "null", "na", "n/a":
		return true
	}
	return false
}
