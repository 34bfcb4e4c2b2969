package etl

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Bucket is one ordered range of a categorical feature. A record falls into
// the first bucket whose upper bound is >= the value; Max < 0 means unbounded.
type Bucket struct {
	Max   float64 `json:"max"`
	Label string  `json:"label"`
}

// Threshold awards Points when a numeric criterion is >= Min.
type Threshold struct {
	Min    float64 `json:"min"`
	Points int     `json:"points"`
}

// RiskBand maps a minimum composite score to a risk label. Bands are ordered
// ascending by MinScore; the highest matching band wins.
type RiskBand struct {
	MinScore int    `json:"min_score"`
	Label    string `json:"label"`
}

// RiskRules holds the scoring weights for the composite risk category.
// Each criterion contributes points independently; thresholds within a
// criterion are ordered descending and only the first match counts.
type RiskRules struct {
	GradePoints     map[string]int `json:"grade_points"`
	DTIThresholds   []Threshold    `json:"dti_thresholds"`
	UtilThresholds  []Threshold    `json:"util_thresholds"`
	DelinqThreshold []Threshold    `json:"delinq_thresholds"`
	Bands           []RiskBand     `json:"bands"`
}

// Rules is the full derivation configuration for the Transformer: bucket
// boundaries and risk scoring weights supplied as data, not inline logic.
type Rules struct {
	IncomeBuckets      []Bucket  `json:"income_buckets"`
	UnknownIncomeLabel string    `json:"unknown_income_label"`
	CreditAgeBuckets   []Bucket  `json:"credit_age_buckets"`
	IntRateBuckets     []Bucket  `json:"int_rate_buckets"`
	Risk               RiskRules `json:"risk"`
	DefaultStatuses    []string  `json:"default_statuses"`
	FullyPaidStatus    string    `json:"fully_paid_status"`
}

// DefaultRules returns the documented default derivation rules. Income bucket
// boundaries follow the 30k/60k/100k/200k cut-points, credit age ranges are
// 0-2/2-5/5-10/10-20/20+ years and interest rate edges sit at 5/10/15/20/30
// percent. Risk scoring sums grade, dti, revolving utilization and
// delinquency points into six ordered bands.
func DefaultRules() *Rules {
	return &Rules{
		IncomeBuckets: []Bucket{
			{Max: 30000, Label: "Très faible"},
			{Max: 60000, Label: "Faible"},
			{Max: 100000, Label: "Moyen"},
			{Max: 200000, Label: "Élevé"},
			{Max: -1, Label: "Très élevé"},
		},
		UnknownIncomeLabel: "Non renseigné",
		CreditAgeBuckets: []Bucket{
			{Max: 2, Label: "0-2 ans"},
			{Max: 5, Label: "2-5 ans"},
			{Max: 10, Label: "5-10 ans"},
			{Max: 20, Label: "10-20 ans"},
			{Max: -1, Label: "20+ ans"},
		},
		IntRateBuckets: []Bucket{
			{Max: 5, Label: "0-5%"},
			{Max: 10, Label: "5-10%"},
			{Max: 15, Label: "10-15%"},
			{Max: 20, Label: "15-20%"},
			{Max: 30, Label: "20-30%"},
			{Max: -1, Label: "30%+"},
		},
		Risk: RiskRules{
			GradePoints: map[string]int{
				"A": 0, "B": 1, "C": 2, "D": 3, "E": 4, "F": 5, "G": 5,
			},
			DTIThresholds: []Threshold{
				{Min: 30, Points: 2},
				{Min: 20, Points: 1},
			},
			UtilThresholds: []Threshold{
				{Min: 80, Points: 2},
				{Min: 50, Points: 1},
			},
			DelinqThreshold: []Threshold{
				{Min: 2, Points: 2},
				{Min: 1, Points: 1},
			},
			Bands: []RiskBand{
				{MinScore: 0, Label: "Faible risque"},
				{MinScore: 2, Label: "Risque modéré"},
				{MinScore: 4, Label: "Risque moyen"},
				{MinScore: 6, Label: "Risque élevé"},
				{MinScore: 8, Label: "Risque très élevé"},
				{MinScore: 10, Label: "Risque extrême"},
			},
		},
		DefaultStatuses: []string{"CHARGED OFF", "DEFAULT"},
		FullyPaidStatus: "FULLY PAID",
	}
}

// LoadRules reads a rules override from a JSON file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	return &rules, nil
}

// Validate checks that every bucket set partitions its domain: non-empty,
// strictly increasing upper bounds, and exactly one unbounded terminal bucket.
func (r *Rules) Validate() error {
	bucketSets := map[string][]Bucket{
		"income_buckets":     r.IncomeBuckets,
		"credit_age_buckets": r.CreditAgeBuckets,
		"int_rate_buckets":   r.IntRateBuckets,
	}
	for name, buckets := range bucketSets {
		if len(buckets) == 0 {
			return fmt.Errorf("%s is empty", name)
		}
		last := buckets[len(buckets)-1]
		if last.Max >= 0 {
			return fmt.Errorf("%s: last bucket must be unbounded (max < 0)", name)
		}
		prev := 0.0
		for i, b := range buckets[:len(buckets)-1] {
			if b.Max < 0 {
				return fmt.Errorf("%s: only the last bucket may be unbounded", name)
			}
			if i > 0 && b.Max <= prev {
				return fmt.Errorf("%s: bucket bounds must be strictly increasing", name)
			}
			prev = b.Max
		}
	}

	if len(r.Risk.Bands) == 0 {
		return fmt.Errorf("risk.bands is empty")
	}
	if !sort.SliceIsSorted(r.Risk.Bands, func(i, j int) bool {
		return r.Risk.Bands[i].MinScore < r.Risk.Bands[j].MinScore
	}) {
		return fmt.Errorf("risk.bands must be ordered by min_score")
	}
	if r.Risk.Bands[0].MinScore != 0 {
		return fmt.Errorf("risk.bands must start at score 0")
	}

	if r.UnknownIncomeLabel == "" {
		return fmt.Errorf("unknown_income_label is required")
	}

	return nil
}

// bucketLabel places v into its ordered bucket. Buckets are right-closed:
// v belongs to the first bucket with v <= max.
func bucketLabel(buckets []Bucket, v float64) string {
	for _, b := range buckets {
		if b.Max < 0 || v <= b.Max {
			return b.Label
		}
	}
	// unreachable for validated rules; the terminal bucket is unbounded
	return buckets[len(buckets)-1].Label
}

// thresholdPoints returns the points of the first threshold v reaches.
func thresholdPoints(thresholds []Threshold, v float64) int {
	for _, t := range thresholds {
		if v >= t.Min {
			return t.Points
		}
	}
	return 0
}

// bandLabel returns the label of the highest band score reaches.
func bandLabel(bands []RiskBand, score int) string {
	label := bands[0].Label
	for _, b := range bands {
		if score >= b.MinScore {
			label = b.Label
		}
	}
	return label
}
