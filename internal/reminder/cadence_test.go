package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/vitality/internal/types"
)

func TestOccurrence(t *testing.T) {
	anchor := time.Date(2025, 1, 31, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		freq types.Frequency
		n    int
		want time.Time
	}{
		{types.FrequencyDaily, 0, anchor},
		{types.FrequencyDaily, 3, time.Date(2025, 2, 3, 8, 30, 0, 0, time.UTC)},
		{types.FrequencyWeekly, 2, time.Date(2025, 2, 14, 8, 30, 0, 0, time.UTC)},
		{types.FrequencyMonthly, 1, time.Date(2025, 2, 28, 8, 30, 0, 0, time.UTC)},
		{types.FrequencyMonthly, 2, time.Date(2025, 3, 31, 8, 30, 0, 0, time.UTC)},
		{types.FrequencyMonthly, 3, time.Date(2025, 4, 30, 8, 30, 0, 0, time.UTC)},
		{types.FrequencyMonthly, 13, time.Date(2026, 2, 28, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := Occurrence(anchor, tt.freq, tt.n)
		require.NoError(t, err)
		assert.True(t, tt.want.Equal(got), "%s n=%d: want %v got %v", tt.freq, tt.n, tt.want, got)
	}

	_, err := Occurrence(anchor, types.Frequency("hourly"), 1)
	assert.True(t, types.IsValidation(err))
	_, err = Occurrence(anchor, types.FrequencyDaily, -1)
	assert.Error(t, err)
}

func TestMonthlyDoesNotDrift(t *testing.T) {
	// Clamping to Feb 28 must not pull later months back to the 28th
	anchor := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	next, err := NextAfter(anchor, types.FrequencyMonthly, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC), next)

	leap, err := Occurrence(anchor, types.FrequencyMonthly, 1)
	require.NoError(t, err)
	assert.Equal(t, 29, leap.Day())
}

func TestNextAfterAndLatest(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)

	for _, f := range []types.Frequency{types.FrequencyDaily, types.FrequencyWeekly, types.FrequencyMonthly} {
		t.Run(string(f), func(t *testing.T) {
			// Before the anchor the anchor itself is next and nothing is at-or-before
			before := anchor.Add(-time.Hour)
			next, err := NextAfter(anchor, f, before)
			require.NoError(t, err)
			assert.Equal(t, anchor, next)
			_, ok, err := LatestAtOrBefore(anchor, f, before)
			require.NoError(t, err)
			assert.False(t, ok)

			// Exactly on an occurrence: latest is that instant, next is strictly after
			occ, err := Occurrence(anchor, f, 5)
			require.NoError(t, err)
			latest, ok, err := LatestAtOrBefore(anchor, f, occ)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, occ, latest)
			next, err = NextAfter(anchor, f, occ)
			require.NoError(t, err)
			want, _ := Occurrence(anchor, f, 6)
			assert.Equal(t, want, next)

			// Between occurrences
			mid := occ.Add(time.Minute)
			latest, ok, err = LatestAtOrBefore(anchor, f, mid)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, occ, latest)
			next, err = NextAfter(anchor, f, mid)
			require.NoError(t, err)
			assert.Equal(t, want, next)
		})
	}
}
