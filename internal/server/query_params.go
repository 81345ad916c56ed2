package server

import (
	"errors"
	"strconv"
	"strings"
)

var errNotPositive = errors.New("value must be a positive integer")

// parsePositiveID reads a snowflake or serial id. Blank, malformed and
// non-positive values are all reported as not ok.
func parsePositiveID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseLimit returns def for a blank value and caps anything above ceiling.
func parseLimit(raw string, def, ceiling int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errNotPositive
	}
	return min(n, ceiling), nil
}

func parseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
