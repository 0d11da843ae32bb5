package trend

import (
	"sort"

	"github.com/steveyegge/vitality/internal/types"
)

// Series is a time-ordered, deduplicated view over one subject's samples for one metric.
// It can only be built through NewSeries and is read-only afterwards.
type Series struct {
	subjectID string
	metric    types.MetricType
	samples   []types.MetricSample
}

// NewSeries sorts samples ascending by TakenAt and drops duplicate timestamps.
// When two samples share a timestamp the one appearing first in the input wins.
// Every sample must belong to the given subject and metric and carry a valid value.
func NewSeries(subjectID string, metric types.MetricType, samples []types.MetricSample) (*Series, error) {
	if !metric.IsValid() {
		return nil, types.NewValidationError("metric", "unknown metric type %q", string(metric))
	}

	sorted := make([]types.MetricSample, 0, len(samples))
	for i := range samples {
		s := samples[i]
		if s.SubjectID != subjectID {
			return nil, types.NewValidationError("subject_id", "sample %d belongs to %q, not %q", i, s.SubjectID, subjectID)
		}
		if s.Metric != metric {
			return nil, types.NewValidationError("metric", "sample %d is %q, not %q", i, s.Metric, metric)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		sorted = append(sorted, s)
	}

	// Stable sort keeps input order among equal timestamps so "first wins" holds
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TakenAt.Before(sorted[j].TakenAt)
	})

	deduped := sorted[:0]
	for _, s := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].TakenAt.Equal(s.TakenAt) {
			continue
		}
		deduped = append(deduped, s)
	}

	return &Series{subjectID: subjectID, metric: metric, samples: deduped}, nil
}

// SubjectID returns the owning subject
func (s *Series) SubjectID() string { return s.subjectID }

// Metric returns the series metric type
func (s *Series) Metric() types.MetricType { return s.metric }

// Len returns the number of samples
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// Samples returns a copy of the samples in ascending order
func (s *Series) Samples() []types.MetricSample {
	if s == nil {
		return nil
	}
	out := make([]types.MetricSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Latest returns the most recent sample
func (s *Series) Latest() (types.MetricSample, bool) {
	if s.Len() == 0 {
		return types.MetricSample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Window returns the trailing n samples (n <= 0 means the whole series).
// The returned slice aliases the series and must not be modified.
func (s *Series) Window(n int) []types.MetricSample {
	if s.Len() == 0 {
		return nil
	}
	if n <= 0 || n >= len(s.samples) {
		return s.samples
	}
	return s.samples[len(s.samples)-n:]
}
