package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositiveID(t *testing.T) {
	id, ok := parsePositiveID(" 1789 ")
	assert.True(t, ok)
	assert.Equal(t, int64(1789), id)

	for _, raw := range []string{"", "0", "-4", "abc", "1.5"} {
		_, ok := parsePositiveID(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit("", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = parseLimit("250", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = parseLimit("0", 20, 100)
	assert.ErrorIs(t, err, errNotPositive)

	_, err = parseLimit("ten", 20, 100)
	assert.Error(t, err)
}
