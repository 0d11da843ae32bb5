package goals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/vitality/internal/types"
)

func trendOf(dir types.Direction) types.TrendResult {
	return types.TrendResult{Metric: types.MetricMotility, Direction: dir}
}

func TestEvaluate(t *testing.T) {
	goal := types.Goal{Metric: types.MetricMotility, Target: 60}

	tests := []struct {
		name   string
		latest float64
		dir    types.Direction
		want   types.GoalState
	}{
		{"above target stable", 70, types.DirectionStable, types.GoalOnTrack},
		{"above target increasing", 70, types.DirectionIncreasing, types.GoalOnTrack},
		{"at target insufficient", 60, types.DirectionInsufficientData, types.GoalOnTrack},
		{"above target decreasing", 70, types.DirectionDecreasing, types.GoalAtRisk},
		{"within band increasing", 58, types.DirectionIncreasing, types.GoalOnTrack},
		{"within band stable", 57, types.DirectionStable, types.GoalOnTrack},
		{"within band decreasing", 58, types.DirectionDecreasing, types.GoalOffTrack},
		{"within band insufficient", 58, types.DirectionInsufficientData, types.GoalOffTrack},
		{"below band increasing", 40, types.DirectionIncreasing, types.GoalAtRisk},
		{"below band stable", 40, types.DirectionStable, types.GoalOffTrack},
		{"below band decreasing", 40, types.DirectionDecreasing, types.GoalOffTrack},
		{"below band insufficient", 40, types.DirectionInsufficientData, types.GoalOffTrack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.latest, trendOf(tt.dir), goal, DefaultTolerance)
			assert.Equal(t, tt.want, got.State)
			assert.Equal(t, tt.latest, got.Latest)
			assert.Equal(t, goal.Target, got.Target)
			assert.Equal(t, goal.Metric, got.Metric)
		})
	}
}

// Every (value, direction, goal) combination yields exactly one valid state
func TestEvaluateIsTotal(t *testing.T) {
	values := []float64{0, 1, 54.9, 55, 55.1, 64, 65, 99, 100, 1e6, math.NaN()}
	tolerances := []float64{0, DefaultTolerance, 1, -1}
	dirs := append([]types.Direction{}, types.AllDirections...)
	dirs = append(dirs, types.Direction("bogus"))

	for _, g := range DefaultGoals() {
		for _, v := range values {
			for _, d := range dirs {
				for _, tol := range tolerances {
					got := Evaluate(v, trendOf(d), g, tol)
					assert.True(t, got.State.IsValid(), "value=%v dir=%s goal=%v tol=%v", v, d, g, tol)
				}
			}
		}
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	goal := types.Goal{Metric: types.MetricCount, Target: 55}
	first := Evaluate(50, trendOf(types.DirectionIncreasing), goal, DefaultTolerance)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(50, trendOf(types.DirectionIncreasing), goal, DefaultTolerance))
	}
}

func TestDefaultGoals(t *testing.T) {
	g := DefaultGoals()
	require.NoError(t, ValidateGoals(g))
	assert.Equal(t, 55.0, g[types.MetricCount].Target)
	assert.Equal(t, 65.0, g[types.MetricMotility].Target)
	assert.Equal(t, 75.0, g[types.MetricMorphology].Target)
}

func TestValidateGoals(t *testing.T) {
	missing := DefaultGoals()
	delete(missing, types.MetricMorphology)
	assert.Error(t, ValidateGoals(missing))

	outOfRange := DefaultGoals()
	outOfRange[types.MetricMotility] = types.Goal{Metric: types.MetricMotility, Target: 140}
	assert.Error(t, ValidateGoals(outOfRange))

	mismatched := DefaultGoals()
	mismatched[types.MetricCount] = types.Goal{Metric: types.MetricMotility, Target: 10}
	assert.Error(t, ValidateGoals(mismatched))
}

func TestEvaluator(t *testing.T) {
	e, err := NewEvaluator(nil, DefaultTolerance)
	require.NoError(t, err)

	st, err := e.Evaluate(types.MetricCount, 60, trendOf(types.DirectionStable))
	require.NoError(t, err)
	assert.Equal(t, types.GoalOnTrack, st.State)
	assert.Equal(t, types.MetricCount, st.Metric)

	_, err = e.Evaluate(types.MetricType("weight"), 1, trendOf(types.DirectionStable))
	assert.True(t, types.IsValidation(err))

	_, err = NewEvaluator(nil, 2)
	assert.Error(t, err)

	goals := e.Goals()
	goals[types.MetricCount] = types.Goal{Metric: types.MetricCount, Target: 1}
	g, _ := e.Goal(types.MetricCount)
	assert.Equal(t, 55.0, g.Target, "Goals returns a copy")
}
