package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rangeNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestResolveRangeDefaultsToThirtyDays(t *testing.T) {
	rng, err := ResolveRange(rangeNow, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, Period30Days, rng.Period)
	assert.Equal(t, rangeNow.Add(-30*24*time.Hour), rng.From)
	assert.True(t, rng.To.After(rangeNow))
}

func TestResolveRangePeriods(t *testing.T) {
	cases := map[string]int{"7d": 7, "30d": 30, "90d": 90, "1y": 365}
	for period, days := range cases {
		rng, err := ResolveRange(rangeNow, "", "", period)
		require.NoError(t, err, period)
		assert.Equal(t, rangeNow.Add(-time.Duration(days)*24*time.Hour), rng.From, period)
	}
	_, err := ResolveRange(rangeNow, "", "", "2w")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestResolveRangeExplicitDates(t *testing.T) {
	rng, err := ResolveRange(rangeNow, "2025-03-01", "2025-03-05", "7d")
	require.NoError(t, err)
	assert.Equal(t, PeriodCustom, rng.Period)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), rng.From)
	assert.Equal(t, time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), rng.To)

	rng, err = ResolveRange(rangeNow, "2025-03-01T00:00:00Z", "2025-03-01T06:00:00Z", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC), rng.To)
}

func TestResolveRangeRejectsBadDates(t *testing.T) {
	cases := []struct{ start, end string }{
		{"2025-03-01", ""},
		{"", "2025-03-01"},
		{"yesterday", "2025-03-01"},
		{"2025-03-05", "2025-03-01"},
		{"2025-03-01T06:00:00Z", "2025-03-01T06:00:00Z"},
	}
	for _, tc := range cases {
		_, err := ResolveRange(rangeNow, tc.start, tc.end, "")
		assert.ErrorIs(t, err, ErrInvalidDateRange, "%s..%s", tc.start, tc.end)
	}
}
