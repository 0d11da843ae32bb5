// Package recommend turns a metric's trend and goal status into advice text.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/vitality/internal/types"
)

// Key identifies one row of the rule table
type Key struct {
	Metric    types.MetricType
	Direction types.Direction
	State     types.GoalState
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Metric, k.Direction, k.State)
}

// AllKeys enumerates every (metric x direction x state) combination
func AllKeys() []Key {
	keys := make([]Key, 0, len(types.AllMetrics)*len(types.AllDirections)*len(types.AllGoalStates))
	for _, m := range types.AllMetrics {
		for _, d := range types.AllDirections {
			for _, s := range types.AllGoalStates {
				keys = append(keys, Key{Metric: m, Direction: d, State: s})
			}
		}
	}
	return keys
}

// Table is an exhaustive, immutable mapping from Key to a text template.
// Templates may reference {metric}, {latest} and {target}.
type Table struct {
	entries map[Key]string
}

// NewTable builds a table and fails unless every key in AllKeys has non-empty text
// and no entry uses an unknown enum value.
func NewTable(entries map[Key]string) (*Table, error) {
	var missing []string
	for _, k := range AllKeys() {
		if strings.TrimSpace(entries[k]) == "" {
			missing = append(missing, k.String())
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("recommendation table missing %d entries: %s", len(missing), strings.Join(missing, ", "))
	}
	for k := range entries {
		if !k.Metric.IsValid() || !k.Direction.IsValid() || !k.State.IsValid() {
			return nil, fmt.Errorf("recommendation table has entry for unknown key %s", k)
		}
	}

	copied := make(map[Key]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Table{entries: copied}, nil
}

// Lookup returns the template for a key
func (t *Table) Lookup(k Key) (string, bool) {
	s, ok := t.entries[k]
	return s, ok
}

// Render fills the template for key k with the status numbers
func (t *Table) Render(k Key, status types.GoalStatus) (string, bool) {
	tmpl, ok := t.entries[k]
	if !ok {
		return "", false
	}
	r := strings.NewReplacer(
		"{metric}", metricLabel(k.Metric),
		"{latest}", formatValue(k.Metric, status.Latest),
		"{target}", formatValue(k.Metric, status.Target),
	)
	return r.Replace(tmpl), true
}

func metricLabel(m types.MetricType) string {
	switch m {
	case types.MetricCount:
		return "sperm count"
	case types.MetricMotility:
		return "motility"
	case types.MetricMorphology:
		return "morphology"
	}
	return string(m)
}

func formatValue(m types.MetricType, v float64) string {
	if m == types.MetricCount {
		return fmt.Sprintf("%.1f million/mL", v)
	}
	return fmt.Sprintf("%.0f%%", v)
}

// Lead-in sentence per (direction, state)
var leadIns = map[types.Direction]map[types.GoalState]string{
	types.DirectionIncreasing: {
		types.GoalOnTrack:  "Your {metric} is improving and sits at {latest} (goal {target}). Keep doing what you are doing.",
		types.GoalAtRisk:   "Your {metric} is improving but is still below goal at {latest} (goal {target}).",
		types.GoalOffTrack: "Your {metric} shows some improvement but remains well short of {target}.",
	},
	types.DirectionDecreasing: {
		types.GoalOnTrack:  "Your {metric} is at {latest}, above the {target} goal, though recent readings dip slightly.",
		types.GoalAtRisk:   "Your {metric} meets the {target} goal at {latest}, but it has been declining.",
		types.GoalOffTrack: "Your {metric} is below goal at {latest} (goal {target}) and has been declining.",
	},
	types.DirectionStable: {
		types.GoalOnTrack:  "Your {metric} is steady at {latest}, meeting the {target} goal.",
		types.GoalAtRisk:   "Your {metric} is steady at {latest}, close to the {target} goal.",
		types.GoalOffTrack: "Your {metric} has plateaued at {latest}, below the {target} goal.",
	},
	types.DirectionInsufficientData: {
		types.GoalOnTrack:  "Your latest {metric} reading of {latest} meets the {target} goal. Log another result to see your trend.",
		types.GoalAtRisk:   "Your latest {metric} reading is {latest} (goal {target}). Log another result to see your trend.",
		types.GoalOffTrack: "We need at least two {metric} results to judge your trend. Your latest reading is {latest} (goal {target}).",
	},
}

// Per-metric advice per state
var advice = map[types.MetricType]map[types.GoalState]string{
	types.MetricCount: {
		types.GoalOnTrack:  "Maintain a balanced diet, regular exercise and good sleep.",
		types.GoalAtRisk:   "Limit alcohol, avoid smoking and keep the groin area cool to protect your count.",
		types.GoalOffTrack: "Consider zinc and folate rich foods, reduce heat exposure and talk to a specialist if the trend continues.",
	},
	types.MetricMotility: {
		types.GoalOnTrack:  "Stay active and keep up antioxidant rich foods like berries and leafy greens.",
		types.GoalAtRisk:   "Moderate exercise and cutting back on processed food can help motility recover.",
		types.GoalOffTrack: "Review medications and supplements with your doctor; omega-3s and CoQ10 are commonly discussed options.",
	},
	types.MetricMorphology: {
		types.GoalOnTrack:  "Keep avoiding toxins and maintain a healthy weight.",
		types.GoalAtRisk:   "Reduce exposure to pesticides, plastics and tobacco smoke to support morphology.",
		types.GoalOffTrack: "Morphology responds slowly; focus on long term habits and consider a follow-up analysis in three months.",
	},
}

// DefaultTable returns the stock advice table
func DefaultTable() *Table {
	entries := make(map[Key]string, len(AllKeys()))
	for _, k := range AllKeys() {
		entries[k] = leadIns[k.Direction][k.State] + " " + advice[k.Metric][k.State]
	}
	t, err := NewTable(entries)
	if err != nil {
		panic(fmt.Sprintf("default recommendation table is incomplete: %v", err))
	}
	return t
}
