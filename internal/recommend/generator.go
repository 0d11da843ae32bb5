package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/vitality/internal/types"
)

// DefaultCoolDown is how long identical advice is suppressed
const DefaultCoolDown = 7 * 24 * time.Hour

// Personalizer rewrites template advice into friendlier, subject-specific text
type Personalizer interface {
	Personalize(ctx context.Context, rec *types.Recommendation) (string, error)
}

// Generator maps (trend, status) to a Recommendation with cool-down suppression.
// Apart from the injected clock and id source it is a pure function of its inputs.
type Generator struct {
	table        *Table
	coolDown     time.Duration
	now          func() time.Time
	newID        func() string
	personalizer Personalizer
	logger       *slog.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithIDGenerator injects the id source
func WithIDGenerator(newID func() string) Option {
	return func(g *Generator) { g.newID = newID }
}

// WithPersonalizer enables optional text rewriting
func WithPersonalizer(p Personalizer) Option {
	return func(g *Generator) { g.personalizer = p }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator. A nil table selects DefaultTable.
func NewGenerator(table *Table, coolDown time.Duration, opts ...Option) (*Generator, error) {
	if coolDown < 0 {
		return nil, fmt.Errorf("cool-down must be non-negative (got %v)", coolDown)
	}
	if table == nil {
		table = DefaultTable()
	}
	g := &Generator{
		table:    table,
		coolDown: coolDown,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// Generate returns a new recommendation, or false when the same advice
// (subject, metric, goal state) was already given within the cool-down.
func (g *Generator) Generate(subjectID string, trend types.TrendResult, status types.GoalStatus, history []*types.Recommendation) (*types.Recommendation, bool) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, false
	}
	metric := status.Metric
	if metric == "" {
		metric = trend.Metric
	}
	now := g.now()

	if g.suppressed(subjectID, metric, status.State, history, now) {
		return nil, false
	}

	key := Key{Metric: metric, Direction: trend.Direction, State: status.State}
	text, ok := g.table.Render(key, status)
	if !ok {
		return nil, false
	}

	return &types.Recommendation{
		ID:        g.newID(),
		SubjectID: subjectID,
		Metric:    metric,
		Text:      text,
		Basis:     types.RecommendationBasis{Trend: trend, Status: status},
		CreatedAt: now,
	}, true
}

func (g *Generator) suppressed(subjectID string, metric types.MetricType, state types.GoalState, history []*types.Recommendation, now time.Time) bool {
	for _, prev := range history {
		if prev == nil {
			continue
		}
		if prev.SubjectID != subjectID || prev.Metric != metric || prev.Basis.Status.State != state {
			continue
		}
		if now.Sub(prev.CreatedAt) < g.coolDown {
			return true
		}
	}
	return false
}

// Personalize rewrites rec.Text through the configured Personalizer.
// Any failure leaves the template text in place.
func (g *Generator) Personalize(ctx context.Context, rec *types.Recommendation) *types.Recommendation {
	if g.personalizer == nil || rec == nil {
		return rec
	}
	text, err := g.personalizer.Personalize(ctx, rec)
	if err != nil {
		g.logger.Warn("personalization failed, keeping template text",
			"recommendation_id", rec.ID, "metric", rec.Metric, "error", err)
		return rec
	}
	if strings.TrimSpace(text) == "" {
		return rec
	}
	out := *rec
	out.Text = strings.TrimSpace(text)
	return &out
}
