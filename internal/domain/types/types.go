// Package types contains the result types returned by the query contract.
package types

// Reason codes attached to null derived values.
const (
	ReasonChronicLoadZero      = "chronic_load_zero"
	ReasonStdevZero            = "stdev_zero"
	ReasonInsufficientHistory  = "insufficient_history"
	ReasonNoInputs             = "no_inputs"
	ReasonMonotonyUndefined    = "monotony_undefined"
	ReasonInsufficientBaseline = "insufficient_baseline"
)

// Bucket is one time bucket of a series. Values map a metric key to its
// aggregated value; nil means no data in the bucket.
type Bucket struct {
	Start  string              `json:"bucket_start"`
	End    string              `json:"bucket_end"`
	Values map[string]*float64 `json:"values"`
}

// BucketedSeries is an ordered, contiguous list of buckets.
type BucketedSeries struct {
	PlayerID string   `json:"player_id"`
	From     string   `json:"date_from"`
	To       string   `json:"date_to"`
	Grouping string   `json:"bucket_type"`
	Metrics  []string `json:"metrics"`
	Buckets  []Bucket `json:"buckets"`
}

// WorkloadPoint is the workload state for one calendar day.
type WorkloadPoint struct {
	Date                string   `json:"date"`
	SessionLoad         float64  `json:"session_load"`
	AcuteLoad           float64  `json:"acute_load"`
	ChronicLoad         float64  `json:"chronic_load"`
	ACWR                *float64 `json:"acwr"`
	ACWRReason          string   `json:"acwr_reason,omitempty"`
	Monotony            *float64 `json:"monotony"`
	MonotonyReason      string   `json:"monotony_reason,omitempty"`
	Strain              *float64 `json:"strain"`
	ChronicDaysWithData int      `json:"chronic_days_with_data"`
	LowConfidence       bool     `json:"low_confidence"`
}

// ReadinessComponents holds the per-input sub-scores in [0,100].
type ReadinessComponents struct {
	Sleep     *float64 `json:"sleep"`
	Autonomic *float64 `json:"autonomic"`
	Recovery  *float64 `json:"recovery"`
	Wellness  *float64 `json:"wellness"`
	Workload  *float64 `json:"workload"`
}

// ReadinessPoint is the composite readiness for one day.
type ReadinessPoint struct {
	Date       string              `json:"date"`
	Score      *float64            `json:"score"`
	Reason     string              `json:"reason,omitempty"`
	Components ReadinessComponents `json:"components"`
}

// Severity of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a threshold breach for one player-day.
type Alert struct {
	ID            string   `json:"id"`
	PlayerID      string   `json:"player_id"`
	Date          string   `json:"date"`
	Type          string   `json:"type"`
	Metric        string   `json:"metric"`
	Comparator    string   `json:"comparator"`
	ObservedValue float64  `json:"observed_value"`
	Threshold     float64  `json:"threshold"`
	Severity      Severity `json:"severity"`
}

// FeatureContribution is one feature's additive share of a risk score.
type FeatureContribution struct {
	Feature      string   `json:"feature"`
	Value        *float64 `json:"value"`
	Normalized   float64  `json:"normalized"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
	Missing      bool     `json:"missing,omitempty"`
}

// RiskPrediction is the baseline risk classification for one horizon.
type RiskPrediction struct {
	PlayerID             string                `json:"player_id"`
	AsOfDate             string                `json:"as_of_date"`
	HorizonDays          int                   `json:"horizon_days"`
	RiskScore            float64               `json:"risk_score"`
	RiskClass            string                `json:"risk_class"`
	Intercept            float64               `json:"intercept"`
	FeatureContributions []FeatureContribution `json:"feature_contributions"`
	ModelVersion         string                `json:"model_version"`
	SampleSize           int                   `json:"sample_size"`
	Confidence           string                `json:"confidence"`
	LowConfidence        bool                  `json:"low_confidence"`
}

// CompletenessReport counts days with data for one family.
type CompletenessReport struct {
	PlayerID        string  `json:"player_id"`
	Family          string  `json:"family"`
	DateFrom        string  `json:"date_from"`
	DateTo          string  `json:"date_to"`
	DaysWithData    int     `json:"days_with_data"`
	TotalDays       int     `json:"total_days"`
	CompletenessPct float64 `json:"completeness_pct"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
