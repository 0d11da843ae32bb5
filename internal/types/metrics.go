package types

import (
	"math"
	"strings"
	"time"
)

// MetricType identifies one tracked semen-analysis metric
type MetricType string

const (
	MetricCount      MetricType = "count"      // million/mL, must be >= 0
	MetricMotility   MetricType = "motility"   // percent, 0-100
	MetricMorphology MetricType = "morphology" // percent normal forms, 0-100
)

// AllMetrics lists every metric type in display order
var AllMetrics = []MetricType{MetricCount, MetricMotility, MetricMorphology}

// IsValid checks if the metric type value is valid
func (m MetricType) IsValid() bool {
	switch m {
	case MetricCount, MetricMotility, MetricMorphology:
		return true
	}
	return false
}

// ParseMetricType parses a metric type name (case-insensitive)
func ParseMetricType(s string) (MetricType, error) {
	m := MetricType(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", NewValidationError("metric", "unknown metric type %q", s)
	}
	return m, nil
}

// ValidateValue checks that a value is within the metric's physical range
func (m MetricType) ValidateValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewValidationError("value", "must be a finite number (got %v)", value)
	}
	switch m {
	case MetricCount:
		if value < 0 {
			return NewValidationError("value", "count must be >= 0 (got %v)", value)
		}
	case MetricMotility, MetricMorphology:
		if value < 0 || value > 100 {
			return NewValidationError("value", "%s must be between 0 and 100 (got %v)", m, value)
		}
	default:
		return NewValidationError("metric", "unknown metric type %q", string(m))
	}
	return nil
}

// MetricSample is one immutable measurement for a subject
type MetricSample struct {
	SubjectID string     `json:"subject_id"`
	Metric    MetricType `json:"metric"`
	TakenAt   time.Time  `json:"taken_at"`
	Value     float64    `json:"value"`
}

// Validate checks if the sample has valid field values
func (s *MetricSample) Validate() error {
	if strings.TrimSpace(s.SubjectID) == "" {
		return NewValidationError("subject_id", "is required")
	}
	if !s.Metric.IsValid() {
		return NewValidationError("metric", "unknown metric type %q", string(s.Metric))
	}
	if s.TakenAt.IsZero() {
		return NewValidationError("taken_at", "is required")
	}
	return s.Metric.ValidateValue(s.Value)
}

// Direction is the qualitative slope classification of a series
type Direction string

const (
	DirectionIncreasing       Direction = "increasing"
	DirectionDecreasing       Direction = "decreasing"
	DirectionStable           Direction = "stable"
	DirectionInsufficientData Direction = "insufficient-data"
)

// AllDirections lists every direction value
var AllDirections = []Direction{
	DirectionIncreasing,
	DirectionDecreasing,
	DirectionStable,
	DirectionInsufficientData,
}

// IsValid checks if the direction value is valid
func (d Direction) IsValid() bool {
	switch d {
	case DirectionIncreasing, DirectionDecreasing, DirectionStable, DirectionInsufficientData:
		return true
	}
	return false
}

// TrendResult is the derived classification of a metric series.
// It is recomputed on every query and never persisted on its own.
type TrendResult struct {
	Metric     MetricType `json:"metric"`
	Direction  Direction  `json:"direction"`
	Confidence float64    `json:"confidence"`
	// Slope is in value units per day over the trailing window
	Slope float64 `json:"slope"`
	// Samples is the number of samples that fell in the window
	Samples int `json:"samples"`
}

// Goal is a static per-deployment target for one metric
type Goal struct {
	Metric MetricType `json:"metric"`
	Target float64    `json:"target"`
}

// GoalState is the qualitative comparison against a goal
type GoalState string

const (
	GoalOnTrack  GoalState = "on-track"
	GoalAtRisk   GoalState = "at-risk"
	GoalOffTrack GoalState = "off-track"
)

// AllGoalStates lists every goal state value
var AllGoalStates = []GoalState{GoalOnTrack, GoalAtRisk, GoalOffTrack}

// IsValid checks if the goal state value is valid
func (s GoalState) IsValid() bool {
	switch s {
	case GoalOnTrack, GoalAtRisk, GoalOffTrack:
		return true
	}
	return false
}

// GoalStatus is derived from the latest value, the trend and the goal
type GoalStatus struct {
	Metric MetricType `json:"metric"`
	State  GoalState  `json:"state"`
	Latest float64    `json:"latest"`
	Target float64    `json:"target"`
}

// RecommendationBasis is the snapshot a recommendation was derived from
type RecommendationBasis struct {
	Trend  TrendResult `json:"trend"`
	Status GoalStatus  `json:"status"`
}

// Recommendation is one piece of advice for a subject.
// Recommendations are never mutated, only superseded by newer ones.
type Recommendation struct {
	ID        string              `json:"id"`
	SubjectID string              `json:"subject_id"`
	Metric    MetricType          `json:"metric"`
	Text      string              `json:"text"`
	Basis     RecommendationBasis `json:"basis"`
	CreatedAt time.Time           `json:"created_at"`
}

// Subject is a tracked user
type Subject struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks if the subject has valid field values
func (s *Subject) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return NewValidationError("id", "is required")
	}
	if strings.TrimSpace(s.Email) == "" {
		return NewValidationError("email", "is required")
	}
	if !strings.Contains(s.Email, "@") {
		return NewValidationError("email", "invalid address %q", s.Email)
	}
	return nil
}

// Report bundles goals, trends and raw metrics for one subject
type Report struct {
	SubjectID string                       `json:"subject_id"`
	Goals     map[MetricType]Goal          `json:"goals"`
	Trends    map[MetricType]TrendResult   `json:"trends"`
	Statuses  map[MetricType]GoalStatus    `json:"statuses"`
	Metrics   map[MetricType][]MetricSample `json:"metrics"`
}
