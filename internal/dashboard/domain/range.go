package domain

import (
	"strings"
	"time"
)

var periodDays = map[string]int{
	Period7Days:  7,
	Period30Days: 30,
	Period90Days: 90,
	Period1Year:  365,
}

// ResolveRange turns query values into a half-open range ending at now.
// Explicit dates win over period; a date-only endDate covers that whole day.
func ResolveRange(now time.Time, startRaw, endRaw, period string) (Range, error) {
	now = now.UTC()
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)

	if startRaw != "" || endRaw != "" {
		if startRaw == "" || endRaw == "" {
			return Range{}, ErrInvalidDateRange
		}
		from, _, err := parseDate(startRaw)
		if err != nil {
			return Range{}, ErrInvalidDateRange
		}
		to, dateOnly, err := parseDate(endRaw)
		if err != nil {
			return Range{}, ErrInvalidDateRange
		}
		if dateOnly {
			to = to.Add(24 * time.Hour)
		}
		if !to.After(from) {
			return Range{}, ErrInvalidDateRange
		}
		return Range{From: from, To: to, Period: PeriodCustom}, nil
	}

	period = strings.TrimSpace(period)
	if period == "" {
		period = DefaultPeriod
	}
	days, ok := periodDays[period]
	if !ok {
		return Range{}, ErrInvalidPeriod
	}
	return Range{
		From:   now.Add(-time.Duration(days) * 24 * time.Hour),
		To:     now.Add(time.Microsecond),
		Period: period,
	}, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
