// Package goals compares a subject's latest metric value and trend against a target.
package goals

import (
	"fmt"
	"math"

	"github.com/steveyegge/vitality/internal/types"
)

// DefaultTolerance is the fraction of the target treated as "close enough"
// when the trajectory is flat or improving.
const DefaultTolerance = 0.05

// DefaultGoals returns the stock per-metric targets
func DefaultGoals() map[types.MetricType]types.Goal {
	return map[types.MetricType]types.Goal{
		types.MetricCount:      {Metric: types.MetricCount, Target: 55},
		types.MetricMotility:   {Metric: types.MetricMotility, Target: 65},
		types.MetricMorphology: {Metric: types.MetricMorphology, Target: 75},
	}
}

// ValidateGoals checks that every metric has exactly one in-range target
func ValidateGoals(goals map[types.MetricType]types.Goal) error {
	for _, m := range types.AllMetrics {
		g, ok := goals[m]
		if !ok {
			return fmt.Errorf("missing goal for metric %s", m)
		}
		if g.Metric != m {
			return fmt.Errorf("goal keyed %s declares metric %s", m, g.Metric)
		}
		if err := m.ValidateValue(g.Target); err != nil {
			return fmt.Errorf("goal for %s: %w", m, err)
		}
	}
	for m := range goals {
		if !m.IsValid() {
			return fmt.Errorf("goal for unknown metric %q", string(m))
		}
	}
	return nil
}

// Evaluate maps (latest, trend, goal) to exactly one goal state.
//
// All metrics are higher-is-better. A value at or above target is on-track unless
// the trend is decreasing (regression risk). Below target, a flat or improving
// value within the tolerance band is on-track, an improving value outside it is
// at-risk, and everything else is off-track.
func Evaluate(latest float64, trend types.TrendResult, goal types.Goal, tolerance float64) types.GoalStatus {
	status := types.GoalStatus{Metric: goal.Metric, Latest: latest, Target: goal.Target}
	status.State = classify(latest, trend.Direction, goal.Target, tolerance)
	return status
}

func classify(latest float64, dir types.Direction, target, tolerance float64) types.GoalState {
	if math.IsNaN(latest) {
		return types.GoalOffTrack
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}

	if latest >= target {
		if dir == types.DirectionDecreasing {
			return types.GoalAtRisk
		}
		return types.GoalOnTrack
	}

	withinBand := target-latest <= tolerance*math.Abs(target)
	switch dir {
	case types.DirectionIncreasing:
		if withinBand {
			return types.GoalOnTrack
		}
		return types.GoalAtRisk
	case types.DirectionStable:
		if withinBand {
			return types.GoalOnTrack
		}
		return types.GoalOffTrack
	default:
		// decreasing, insufficient-data, or an unrecognized direction
		return types.GoalOffTrack
	}
}

// Evaluator binds goals and tolerance for repeated use
type Evaluator struct {
	goals     map[types.MetricType]types.Goal
	tolerance float64
}

// NewEvaluator creates an evaluator. A nil goal map selects DefaultGoals.
func NewEvaluator(goals map[types.MetricType]types.Goal, tolerance float64) (*Evaluator, error) {
	if goals == nil {
		goals = DefaultGoals()
	}
	if err := ValidateGoals(goals); err != nil {
		return nil, err
	}
	if tolerance < 0 || tolerance > 1 || math.IsNaN(tolerance) {
		return nil, fmt.Errorf("tolerance must be between 0 and 1 (got %v)", tolerance)
	}
	copied := make(map[types.MetricType]types.Goal, len(goals))
	for k, v := range goals {
		copied[k] = v
	}
	return &Evaluator{goals: copied, tolerance: tolerance}, nil
}

// Goal returns the configured goal for a metric
func (e *Evaluator) Goal(metric types.MetricType) (types.Goal, bool) {
	g, ok := e.goals[metric]
	return g, ok
}

// Goals returns a copy of all configured goals
func (e *Evaluator) Goals() map[types.MetricType]types.Goal {
	out := make(map[types.MetricType]types.Goal, len(e.goals))
	for k, v := range e.goals {
		out[k] = v
	}
	return out
}

// Evaluate compares latest and trend against the configured goal for the trend's metric
func (e *Evaluator) Evaluate(metric types.MetricType, latest float64, trend types.TrendResult) (types.GoalStatus, error) {
	g, ok := e.goals[metric]
	if !ok {
		return types.GoalStatus{}, types.NewValidationError("metric", "unknown metric type %q", string(metric))
	}
	return Evaluate(latest, trend, g, e.tolerance), nil
}
