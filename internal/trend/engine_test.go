package trend

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/vitality/internal/types"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sample(metric types.MetricType, offset time.Duration, value float64) types.MetricSample {
	return types.MetricSample{SubjectID: "s1", Metric: metric, TakenAt: base.Add(offset), Value: value}
}

func mustSeries(t *testing.T, metric types.MetricType, samples ...types.MetricSample) *Series {
	t.Helper()
	s, err := NewSeries("s1", metric, samples)
	require.NoError(t, err)
	return s
}

func TestComputeInsufficientData(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name    string
		samples []types.MetricSample
		window  int
	}{
		{name: "empty"},
		{name: "singleton", samples: []types.MetricSample{sample(types.MetricCount, 0, 40)}},
		{
			name: "window of one",
			samples: []types.MetricSample{
				sample(types.MetricCount, 0, 40),
				sample(types.MetricCount, 24*time.Hour, 50),
			},
			window: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := mustSeries(t, types.MetricCount, tt.samples...)
			got := Compute(series, tt.window, cfg)
			assert.Equal(t, types.DirectionInsufficientData, got.Direction)
			assert.Zero(t, got.Confidence)
		})
	}

	t.Run("nil series", func(t *testing.T) {
		got := Compute(nil, 5, cfg)
		assert.Equal(t, types.DirectionInsufficientData, got.Direction)
		assert.Zero(t, got.Confidence)
	})
}

func TestComputeStrictlyIncreasing(t *testing.T) {
	// Irregular spacing on purpose
	offsets := []time.Duration{0, 2 * 24 * time.Hour, 3 * 24 * time.Hour, 9 * 24 * time.Hour, 30 * 24 * time.Hour}
	values := []float64{20, 24, 27, 31, 52}

	var samples []types.MetricSample
	for i := range offsets {
		samples = append(samples, sample(types.MetricMotility, offsets[i], values[i]))
	}
	series := mustSeries(t, types.MetricMotility, samples...)

	got := Compute(series, 0, DefaultConfig())
	assert.Equal(t, types.DirectionIncreasing, got.Direction)
	assert.Greater(t, got.Confidence, 0.5)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.Greater(t, got.Slope, 0.0)
	assert.Equal(t, 5, got.Samples)
}

func TestComputeDecreasing(t *testing.T) {
	series := mustSeries(t, types.MetricCount,
		sample(types.MetricCount, 0, 80),
		sample(types.MetricCount, 7*24*time.Hour, 70),
		sample(types.MetricCount, 14*24*time.Hour, 61),
		sample(types.MetricCount, 21*24*time.Hour, 50),
	)
	got := Compute(series, 0, DefaultConfig())
	assert.Equal(t, types.DirectionDecreasing, got.Direction)
	assert.Greater(t, got.Confidence, 0.9)
	assert.Less(t, got.Slope, 0.0)
}

func TestComputeStable(t *testing.T) {
	t.Run("constant values", func(t *testing.T) {
		series := mustSeries(t, types.MetricMorphology,
			sample(types.MetricMorphology, 0, 70),
			sample(types.MetricMorphology, 24*time.Hour, 70),
			sample(types.MetricMorphology, 72*time.Hour, 70),
		)
		got := Compute(series, 0, DefaultConfig())
		assert.Equal(t, types.DirectionStable, got.Direction)
		assert.Equal(t, 1.0, got.Confidence)
		assert.Zero(t, got.Slope)
	})

	t.Run("oscillation without drift", func(t *testing.T) {
		series := mustSeries(t, types.MetricMorphology,
			sample(types.MetricMorphology, 0, 70),
			sample(types.MetricMorphology, 24*time.Hour, 72),
			sample(types.MetricMorphology, 48*time.Hour, 70),
			sample(types.MetricMorphology, 72*time.Hour, 72),
			sample(types.MetricMorphology, 96*time.Hour, 70),
		)
		cfg := DefaultConfig()
		cfg.HalfLife = 0
		got := Compute(series, 0, cfg)
		assert.Equal(t, types.DirectionStable, got.Direction)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
	})
}

func TestComputeUsesTrailingWindow(t *testing.T) {
	// Long decline followed by a recent rise; a window of 3 sees only the rise
	series := mustSeries(t, types.MetricCount,
		sample(types.MetricCount, 0, 90),
		sample(types.MetricCount, 24*time.Hour, 70),
		sample(types.MetricCount, 48*time.Hour, 40),
		sample(types.MetricCount, 72*time.Hour, 45),
		sample(types.MetricCount, 96*time.Hour, 52),
	)
	got := Compute(series, 3, DefaultConfig())
	assert.Equal(t, types.DirectionIncreasing, got.Direction)
	assert.Equal(t, 3, got.Samples)
}

func TestComputeRecentSamplesWeighMore(t *testing.T) {
	samples := []types.MetricSample{
		sample(types.MetricCount, 0, 10),
		sample(types.MetricCount, 100*24*time.Hour, 60),
		sample(types.MetricCount, 101*24*time.Hour, 58),
		sample(types.MetricCount, 102*24*time.Hour, 56),
	}
	series := mustSeries(t, types.MetricCount, samples...)

	unweighted := DefaultConfig()
	unweighted.HalfLife = 0
	assert.Equal(t, types.DirectionIncreasing, Compute(series, 0, unweighted).Direction)

	decayed := DefaultConfig()
	decayed.HalfLife = 24 * time.Hour
	assert.Equal(t, types.DirectionDecreasing, Compute(series, 0, decayed).Direction)
}

func TestComputeConcurrentUse(t *testing.T) {
	series := mustSeries(t, types.MetricCount,
		sample(types.MetricCount, 0, 10),
		sample(types.MetricCount, 24*time.Hour, 20),
		sample(types.MetricCount, 48*time.Hour, 30),
	)
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	want := engine.Compute(series, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, engine.Compute(series, 0))
		}()
	}
	wg.Wait()
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Epsilon = -1
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.HalfLife = -time.Hour
	_, err := NewEngine(bad)
	assert.Error(t, err)
}
