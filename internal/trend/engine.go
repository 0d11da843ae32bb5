package trend

import (
	"fmt"
	"math"
	"time"

	"github.com/steveyegge/vitality/internal/types"
)

// Config holds the tunables for trend classification
type Config struct {
	// HalfLife is the age (relative to the newest sample) at which a sample's weight halves.
	// Zero disables decay.
	HalfLife time.Duration
	// Epsilon is the stability threshold on the normalized slope
	Epsilon float64
	// Window is the default number of trailing samples considered (0 = all)
	Window int
}

// DefaultConfig returns the default trend configuration
func DefaultConfig() Config {
	return Config{
		HalfLife: 30 * 24 * time.Hour,
		Epsilon:  0.1,
		Window:   10,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.HalfLife < 0 {
		return fmt.Errorf("half_life must be non-negative (got %v)", c.HalfLife)
	}
	if c.Epsilon < 0 || math.IsNaN(c.Epsilon) {
		return fmt.Errorf("epsilon must be non-negative (got %v)", c.Epsilon)
	}
	if c.Window < 0 {
		return fmt.Errorf("window must be non-negative (got %d)", c.Window)
	}
	return nil
}

// Engine computes trends with a fixed configuration. It holds no mutable state.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine after validating cfg
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trend config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config { return e.cfg }

// Compute classifies the trailing window of the series. window <= 0 uses the engine default.
func (e *Engine) Compute(series *Series, window int) types.TrendResult {
	if window <= 0 {
		window = e.cfg.Window
	}
	return Compute(series, window, e.cfg)
}

// Compute fits a decay-weighted least-squares line over the trailing window,
// using elapsed seconds as the independent variable.
func Compute(series *Series, window int, cfg Config) types.TrendResult {
	result := types.TrendResult{Direction: types.DirectionInsufficientData}
	if series == nil {
		return result
	}
	result.Metric = series.Metric()

	samples := series.Window(window)
	result.Samples = len(samples)
	if len(samples) < 2 {
		return result
	}

	first := samples[0].TakenAt
	last := samples[len(samples)-1].TakenAt
	span := last.Sub(first).Seconds()
	if span <= 0 {
		return result
	}

	halfLife := cfg.HalfLife.Seconds()
	var sw, swx, swy float64
	minV, maxV := samples[0].Value, samples[0].Value
	weights := make([]float64, len(samples))
	xs := make([]float64, len(samples))
	for i, s := range samples {
		w := 1.0
		if halfLife > 0 {
			w = math.Pow(0.5, last.Sub(s.TakenAt).Seconds()/halfLife)
		}
		x := s.TakenAt.Sub(first).Seconds()
		weights[i], xs[i] = w, x
		sw += w
		swx += w * x
		swy += w * s.Value
		minV = math.Min(minV, s.Value)
		maxV = math.Max(maxV, s.Value)
	}
	if sw == 0 {
		return result
	}
	mx, my := swx/sw, swy/sw

	var sxx, sxy, syy float64
	for i, s := range samples {
		dx, dy := xs[i]-mx, s.Value-my
		sxx += weights[i] * dx * dx
		sxy += weights[i] * dx * dy
		syy += weights[i] * dy * dy
	}
	if sxx == 0 {
		return result
	}

	slope := sxy / sxx
	result.Slope = slope * (24 * time.Hour).Seconds()

	if syy == 0 || maxV == minV {
		// Flat series: a horizontal line fits perfectly
		result.Slope = 0
		result.Direction = types.DirectionStable
		result.Confidence = 1
		return result
	}

	result.Confidence = clamp01(sxy * sxy / (sxx * syy))

	normalized := slope * span / (maxV - minV)
	switch {
	case math.Abs(normalized) < cfg.Epsilon:
		result.Direction = types.DirectionStable
	case slope > 0:
		result.Direction = types.DirectionIncreasing
	default:
		result.Direction = types.DirectionDecreasing
	}
	return result
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
